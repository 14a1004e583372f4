package core

import "time"

// DataMode identifies which data source a payload came from.
type DataMode string

const (
	// DataModeLive means data is sourced from the real-time brokerage adapter.
	DataModeLive DataMode = "LIVE"
	// DataModeHistorical means data is sourced from the read-only cache.
	DataModeHistorical DataMode = "HISTORICAL"
)

// MarketState is the open/closed verdict for the exchange.
type MarketState string

const (
	MarketOpen   MarketState = "OPEN"
	MarketClosed MarketState = "CLOSED"
)

// MarketStatus is the resolved market state with provenance.
// It is computed once per staleness window and never recomputed mid-request.
type MarketStatus struct {
	State     MarketState `json:"status"`
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
}

// IsOpen reports whether the market is open.
func (s MarketStatus) IsOpen() bool {
	return s.State == MarketOpen
}

// Candle is one OHLC price-bar observation. Within any series returned to
// callers, timestamps are non-decreasing.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// IsValid checks if the candle has usable prices.
func (c Candle) IsValid() bool {
	return !c.Timestamp.IsZero() && c.High >= c.Low
}

// Headline is a single news item from the live feed. Historical mode has no
// news archive, so historical payloads always carry an empty headline list.
type Headline struct {
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Symbols   []string  `json:"symbols,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Position is a holding the decision engine evaluates. Synthetic positions
// built from historical candles use the same shape; provenance is carried by
// the surrounding payload's data mode, never embedded in the position itself.
type Position struct {
	Symbol           string  `json:"symbol"`
	Sector           string  `json:"sector"`
	EntryPrice       float64 `json:"entry_price"`
	CurrentPrice     float64 `json:"current_price"`
	ATR              float64 `json:"atr"`
	DaysHeld         int     `json:"days_held"`
	CapitalAllocated float64 `json:"capital_allocated"`
}

// Portfolio is the account-level state the decision engine evaluates.
type Portfolio struct {
	TotalCapital  float64 `json:"total_capital"`
	Cash          float64 `json:"cash"`
	RiskTolerance string  `json:"risk_tolerance"`
}

// Candidate is a prospective entry the decision engine may propose actions on.
type Candidate struct {
	Symbol              string  `json:"symbol"`
	Sector              string  `json:"sector"`
	ProjectedEfficiency float64 `json:"projected_efficiency"`
	Synthetic           bool    `json:"synthetic,omitempty"`
}

// VolatilityState classifies current volatility against a baseline.
type VolatilityState string

const (
	VolatilityExpanding   VolatilityState = "EXPANDING"
	VolatilityStable      VolatilityState = "STABLE"
	VolatilityContracting VolatilityState = "CONTRACTING"
)
