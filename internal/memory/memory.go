// Package memory persists a compact record of analysis runs so each run can
// compare its risk posture against the previous one. The store is a single
// JSON file; a missing or corrupt file degrades to an empty history rather
// than failing the run.
package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Risk trend verdicts.
const (
	TrendFirstRun   = "FIRST_RUN"
	TrendIncreasing = "RISK_INCREASING"
	TrendDecreasing = "RISK_DECREASING"
	TrendStable     = "STABLE"
)

// historyLimit caps the retained run records.
const historyLimit = 50

// riskRank orders risk levels for trend comparison. Unknown levels rank -1
// and always compare as STABLE against each other.
var riskRank = map[string]int{
	"LOW":    0,
	"MEDIUM": 1,
	"HIGH":   2,
}

// Record is one completed analysis run.
type Record struct {
	RunID         string    `json:"run_id"`
	Timestamp     time.Time `json:"timestamp"`
	DataMode      string    `json:"data_mode"`
	Symbol        string    `json:"symbol"`
	MarketPosture string    `json:"market_posture"`
	RiskLevel     string    `json:"risk_level"`
	BlockedCount  int       `json:"blocked_count"`
}

// Insights summarizes history relative to the current run.
type Insights struct {
	RiskTrend string  `json:"risk_trend"`
	LastRun   *Record `json:"last_run,omitempty"`
	RunCount  int     `json:"run_count"`
}

// Store is the run-memory contract consumed by the analysis runner.
type Store interface {
	// Insights compares the current risk level against the last recorded run.
	Insights(currentRiskLevel string) Insights
	// Append records a completed run.
	Append(rec Record) error
}

// ComputeRiskTrend compares two risk levels. A nil previous record means this
// is the first run.
func ComputeRiskTrend(previous *Record, currentRiskLevel string) string {
	if previous == nil {
		return TrendFirstRun
	}
	prev, cur := riskRank[previous.RiskLevel], riskRank[currentRiskLevel]
	switch {
	case cur > prev:
		return TrendIncreasing
	case cur < prev:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// fileState is the on-disk layout.
type fileState struct {
	RunCount int      `json:"run_count"`
	History  []Record `json:"history"`
}

// FileStore is the JSON-file-backed Store.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu    sync.Mutex
	state fileState
}

// NewFileStore loads (or initializes) run memory at path.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &FileStore{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("run memory unreadable, starting empty",
				zap.String("path", path), zap.Error(err))
		}
		return s
	}
	if err := json.Unmarshal(data, &s.state); err != nil {
		logger.Warn("run memory corrupt, starting empty",
			zap.String("path", path), zap.Error(err))
		s.state = fileState{}
	}
	return s
}

// Insights compares the current risk level against the last recorded run.
func (s *FileStore) Insights(currentRiskLevel string) Insights {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *Record
	if n := len(s.state.History); n > 0 {
		rec := s.state.History[n-1]
		last = &rec
	}
	return Insights{
		RiskTrend: ComputeRiskTrend(last, currentRiskLevel),
		LastRun:   last,
		RunCount:  s.state.RunCount,
	}
}

// Append records a completed run and persists the file atomically.
func (s *FileStore) Append(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state.RunCount++
	s.state.History = append(s.state.History, rec)
	if len(s.state.History) > historyLimit {
		s.state.History = s.state.History[len(s.state.History)-historyLimit:]
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
