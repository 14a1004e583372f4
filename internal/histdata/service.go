// Package histdata serves time-windowed candle data from a read-only cache
// directory and synthesizes portfolio context from it when the market is
// closed and no live account exists.
//
// The cache holds one JSON file per symbol per date range, named
// SYMBOL_STARTDATE_ENDDATE.json, each an ascending array of candles. An
// optional manifest.json acts as an explicit index; without one the scan
// falls back to parsing filenames. The scan happens once at construction and
// the resulting metadata is immutable, so concurrent reads need no locking.
// A restart is required to pick up new files.
package histdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oakline/compass/internal/core"
	"go.uber.org/zap"
)

// DataSourceLabel is the provenance label attached to every payload built
// from this cache.
const DataSourceLabel = "Historical Cache"

// manifestName is the optional explicit index file inside the cache dir.
const manifestName = "manifest.json"

// TimeRange maps a range key to a month count and display label.
type TimeRange struct {
	Months int    `json:"months"`
	Label  string `json:"label"`
}

// timeRanges is the closed set of selectable windows. Not user-extensible.
var timeRanges = map[string]TimeRange{
	"1M": {Months: 1, Label: "1 Month"},
	"4M": {Months: 4, Label: "4 Months"},
	"6M": {Months: 6, Label: "6 Months"},
	"1Y": {Months: 12, Label: "1 Year"},
}

// Entry describes one symbol's cached file. Built once at scan time.
type Entry struct {
	Symbol      string `json:"symbol"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Filename    string `json:"filename"`
	CandleCount int    `json:"candle_count"`
	DataSource  string `json:"data_source"`
}

// Metadata describes a windowed load result.
type Metadata struct {
	Symbol             string `json:"symbol"`
	DataSource         string `json:"data_source"`
	TimeRange          string `json:"time_range"`
	TimeRangeLabel     string `json:"time_range_label"`
	CandleCount        int    `json:"candle_count"`
	TotalCachedCandles int    `json:"total_cached_candles"`
	CacheStartDate     string `json:"cache_start_date"`
	CacheEndDate       string `json:"cache_end_date"`
	DataStart          string `json:"data_start,omitempty"`
	DataEnd            string `json:"data_end,omitempty"`
}

// Result is a successful windowed load.
type Result struct {
	Candles  []core.Candle `json:"candles"`
	Metadata Metadata      `json:"metadata"`
}

// Service provides read access to the historical cache.
type Service struct {
	dir     string
	logger  *zap.Logger
	symbols []string
	entries map[string]Entry
}

// New scans the cache directory and builds the symbol index. It never fails:
// a missing directory just yields an empty symbol set, and per-file read
// errors register the symbol with a zero candle count.
func New(dir string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		dir:     dir,
		logger:  logger,
		entries: make(map[string]Entry),
	}
	s.scan()
	return s
}

func (s *Service) scan() {
	if entries, ok := s.loadManifest(); ok {
		for _, e := range entries {
			s.register(e)
		}
	} else {
		files, err := os.ReadDir(s.dir)
		if err != nil {
			s.logger.Warn("cache directory not readable", zap.String("dir", s.dir), zap.Error(err))
			return
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") || f.Name() == manifestName {
				continue
			}
			entry, ok := parseFilename(f.Name())
			if !ok {
				s.logger.Warn("skipping cache file with unparsable name", zap.String("file", f.Name()))
				continue
			}
			s.register(entry)
		}
	}

	sort.Strings(s.symbols)
	s.logger.Info("historical cache scanned",
		zap.String("dir", s.dir),
		zap.Int("symbols", len(s.symbols)),
		zap.Strings("available", s.symbols),
	)
}

// loadManifest reads the explicit index when present. The manifest is
// authoritative and avoids ambiguity for symbols containing underscores.
func (s *Service) loadManifest() ([]Entry, bool) {
	data, err := os.ReadFile(filepath.Join(s.dir, manifestName))
	if err != nil {
		return nil, false
	}
	var manifest struct {
		Entries []Entry `json:"entries"`
	}
	if err := json.Unmarshal(data, &manifest); err != nil {
		s.logger.Warn("manifest unreadable, falling back to filename scan", zap.Error(err))
		return nil, false
	}
	return manifest.Entries, true
}

// register counts the file's candles and records the entry. A read failure
// still registers the symbol, with zero candles.
func (s *Service) register(entry Entry) {
	candles, err := s.readCandles(entry.Filename)
	if err != nil {
		s.logger.Warn("error reading cache file",
			zap.String("file", entry.Filename),
			zap.Error(err),
		)
		entry.CandleCount = 0
	} else {
		entry.CandleCount = len(candles)
	}
	entry.DataSource = DataSourceLabel

	if _, exists := s.entries[entry.Symbol]; !exists {
		s.symbols = append(s.symbols, entry.Symbol)
	}
	s.entries[entry.Symbol] = entry
}

// parseFilename extracts symbol and date range from SYMBOL_STARTDATE_ENDDATE.json.
func parseFilename(name string) (Entry, bool) {
	parts := strings.Split(strings.TrimSuffix(name, ".json"), "_")
	if len(parts) < 3 {
		return Entry{}, false
	}
	return Entry{
		Symbol:    parts[0],
		StartDate: parts[1],
		EndDate:   parts[2],
		Filename:  name,
	}, true
}

// Symbols returns the cached symbols in lexicographic order.
func (s *Service) Symbols() []string {
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}

// Metadata returns the cache entry for a symbol.
func (s *Service) Metadata(symbol string) (Entry, bool) {
	e, ok := s.entries[symbol]
	return e, ok
}

// TimeRanges returns the fixed time range table.
func (s *Service) TimeRanges() map[string]TimeRange {
	out := make(map[string]TimeRange, len(timeRanges))
	for k, v := range timeRanges {
		out[k] = v
	}
	return out
}

// Load returns the symbol's candles windowed to the given range key. The
// window cutoff is anchored to the last cached candle, not to now, so a
// windowed result always has data even when the cache ends far in the past.
//
// Unknown symbols return ErrSymbolNotFound; unknown range keys return
// ErrRangeInvalid rather than silently serving the full series.
func (s *Service) Load(symbol, rangeKey string) (*Result, error) {
	entry, ok := s.entries[symbol]
	if !ok {
		return nil, core.WithMessage(core.ErrSymbolNotFound,
			fmt.Sprintf("symbol %q not found in historical cache", symbol))
	}

	window, ok := timeRanges[rangeKey]
	if !ok {
		return nil, core.WithMessage(core.ErrRangeInvalid,
			fmt.Sprintf("unknown time range %q", rangeKey))
	}

	candles, err := s.readCandles(entry.Filename)
	if err != nil {
		return nil, core.WrapError(core.ErrNoData, err)
	}

	filtered := windowFromEnd(candles, window.Months)

	meta := Metadata{
		Symbol:             symbol,
		DataSource:         DataSourceLabel,
		TimeRange:          rangeKey,
		TimeRangeLabel:     window.Label,
		CandleCount:        len(filtered),
		TotalCachedCandles: entry.CandleCount,
		CacheStartDate:     entry.StartDate,
		CacheEndDate:       entry.EndDate,
	}
	if len(filtered) > 0 {
		meta.DataStart = filtered[0].Timestamp.Format("2006-01-02")
		meta.DataEnd = filtered[len(filtered)-1].Timestamp.Format("2006-01-02")
	}

	return &Result{Candles: filtered, Metadata: meta}, nil
}

// windowFromEnd keeps candles within months*30 days of the last candle.
func windowFromEnd(candles []core.Candle, months int) []core.Candle {
	if len(candles) == 0 {
		return candles
	}
	last := candles[len(candles)-1].Timestamp
	cutoff := last.AddDate(0, 0, -months*30).Truncate(24 * time.Hour)

	for i, c := range candles {
		if !c.Timestamp.Truncate(24 * time.Hour).Before(cutoff) {
			return candles[i:]
		}
	}
	return []core.Candle{}
}

func (s *Service) readCandles(filename string) ([]core.Candle, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		return nil, err
	}

	var raw []struct {
		Timestamp string  `json:"timestamp"`
		Open      float64 `json:"open"`
		High      float64 `json:"high"`
		Low       float64 `json:"low"`
		Close     float64 `json:"close"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}

	candles := make([]core.Candle, 0, len(raw))
	for _, r := range raw {
		ts, err := parseTimestamp(r.Timestamp)
		if err != nil {
			// Malformed rows are dropped rather than failing the load.
			s.logger.Warn("dropping candle with bad timestamp",
				zap.String("file", filename),
				zap.String("timestamp", r.Timestamp),
			)
			continue
		}
		candles = append(candles, core.Candle{
			Timestamp: ts,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
		})
	}
	return candles, nil
}

// parseTimestamp accepts full RFC3339 stamps or bare dates.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
