// internal/live/mock/mock.go
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oakline/compass/internal/core"
)

// Adapter implements the live.Adapter interface for testing.
type Adapter struct {
	mu         sync.RWMutex
	portfolio  *core.Portfolio
	positions  []core.Position
	candles    map[string][]core.Candle
	headlines  []core.Headline
	heatmap    map[string]int
	candidates []core.Candidate
	failOn     map[string]error
}

// New creates a new mock adapter with sample live data.
func New() *Adapter {
	return &Adapter{
		portfolio: &core.Portfolio{
			TotalCapital:  150000.00,
			Cash:          37500.00,
			RiskTolerance: "moderate",
		},
		positions: []core.Position{
			{
				Symbol:           "AAPL",
				Sector:           "TECH",
				EntryPrice:       150.00,
				CurrentPrice:     175.00,
				ATR:              2.4,
				DaysHeld:         12,
				CapitalAllocated: 15000.00,
			},
			{
				Symbol:           "XLE",
				Sector:           "ENERGY",
				EntryPrice:       82.00,
				CurrentPrice:     80.50,
				ATR:              1.1,
				DaysHeld:         30,
				CapitalAllocated: 8000.00,
			},
		},
		candles:   map[string][]core.Candle{},
		heatmap:   map[string]int{"TECH": 60, "ENERGY": 50, "INDEX": 55},
		headlines: []core.Headline{{Title: "Chipmakers rally on earnings", Source: "mock", CreatedAt: time.Now()}},
		failOn:    map[string]error{},
	}
}

// Name returns the adapter name.
func (m *Adapter) Name() string { return "mock" }

// FailWith makes the named operation return err. Operation names match the
// Adapter methods ("GetPortfolio", "GetPositions", ...).
func (m *Adapter) FailWith(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOn[operation] = err
}

func (m *Adapter) failure(operation string) error {
	if err, ok := m.failOn[operation]; ok {
		return err
	}
	return nil
}

// SetPortfolio replaces the mock portfolio.
func (m *Adapter) SetPortfolio(p *core.Portfolio) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.portfolio = p
}

// SetPositions replaces the mock positions.
func (m *Adapter) SetPositions(positions []core.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = positions
}

// SetCandles sets the candle series returned for a symbol.
func (m *Adapter) SetCandles(symbol string, candles []core.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles[symbol] = candles
}

// SetCandidates sets the candidate list.
func (m *Adapter) SetCandidates(candidates []core.Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = candidates
}

// GetPortfolio returns the mock portfolio.
func (m *Adapter) GetPortfolio(ctx context.Context) (*core.Portfolio, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetPortfolio"); err != nil {
		return nil, err
	}
	p := *m.portfolio
	return &p, nil
}

// GetPositions returns the mock positions.
func (m *Adapter) GetPositions(ctx context.Context) ([]core.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetPositions"); err != nil {
		return nil, err
	}
	out := make([]core.Position, len(m.positions))
	copy(out, m.positions)
	return out, nil
}

// GetRecentCandles returns the configured candles, most-recent window first
// trimmed to limit.
func (m *Adapter) GetRecentCandles(ctx context.Context, symbol string, limit int, timeframe string) ([]core.Candle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetRecentCandles"); err != nil {
		return nil, err
	}
	candles, ok := m.candles[symbol]
	if !ok {
		return nil, fmt.Errorf("mock: no candles for %s", symbol)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]core.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

// GetHeadlines returns the mock headlines.
func (m *Adapter) GetHeadlines(ctx context.Context) ([]core.Headline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetHeadlines"); err != nil {
		return nil, err
	}
	out := make([]core.Headline, len(m.headlines))
	copy(out, m.headlines)
	return out, nil
}

// GetSectorHeatmap returns the mock heatmap.
func (m *Adapter) GetSectorHeatmap(ctx context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetSectorHeatmap"); err != nil {
		return nil, err
	}
	out := make(map[string]int, len(m.heatmap))
	for k, v := range m.heatmap {
		out[k] = v
	}
	return out, nil
}

// GetCandidates returns the mock candidates.
func (m *Adapter) GetCandidates(ctx context.Context) ([]core.Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failure("GetCandidates"); err != nil {
		return nil, err
	}
	out := make([]core.Candidate, len(m.candidates))
	copy(out, m.candidates)
	return out, nil
}
