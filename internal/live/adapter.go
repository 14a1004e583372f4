// Package live defines the real-time data adapter consumed by the router in
// LIVE mode. Adapter failures propagate as errors, never panics; the router
// turns them into structured error payloads without substituting historical
// data.
package live

import (
	"context"

	"github.com/oakline/compass/internal/core"
)

// Adapter exposes real-time brokerage and market data.
type Adapter interface {
	// Name returns the adapter identifier (e.g., "alpaca").
	Name() string

	// GetPortfolio returns the live account state.
	GetPortfolio(ctx context.Context) (*core.Portfolio, error)

	// GetPositions returns the current holdings.
	GetPositions(ctx context.Context) ([]core.Position, error)

	// GetRecentCandles returns up to limit most-recent candles for a symbol.
	GetRecentCandles(ctx context.Context, symbol string, limit int, timeframe string) ([]core.Candle, error)

	// GetHeadlines returns recent news headlines.
	GetHeadlines(ctx context.Context) ([]core.Headline, error)

	// GetSectorHeatmap returns per-sector strength scores.
	GetSectorHeatmap(ctx context.Context) (map[string]int, error)

	// GetCandidates returns prospective entries. An empty list is a valid
	// answer; callers decide whether to substitute synthetic placeholders.
	GetCandidates(ctx context.Context) ([]core.Candidate, error)
}

// Factory constructs an Adapter. Construction may fail (missing credentials,
// unreachable upstream); the router keeps LIVE mode and reports the failure
// rather than falling back to historical data.
type Factory func() (Adapter, error)
