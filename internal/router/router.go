// Package router is the market-aware data routing service: the single source
// of truth for data source selection.
//
// Strict rules, enforced here and nowhere else:
//   - Market OPEN  -> LIVE data only
//   - Market CLOSED -> HISTORICAL cache only
//   - No silent fallbacks, no mixing of sources. A broken live adapter keeps
//     the mode LIVE and reports errors; it never substitutes historical data.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/live"
	"github.com/oakline/compass/internal/marketstatus"
	"go.uber.org/zap"
)

// Data source labels surfaced to callers.
const (
	DataSourceLive       = "Alpaca Live Feed"
	DataSourceHistorical = histdata.DataSourceLabel
	connectionErrorTag   = " (Connection Error)"
)

// closedStatusMessage explains historical mode to callers.
const closedStatusMessage = "Market is closed. System is operating on cached historical " +
	"market data to validate decision logic over extended periods."

// Config holds router defaults.
type Config struct {
	DefaultSymbol    string
	DefaultTimeRange string
	LiveCandleLimit  int
	LiveTimeframe    string
}

// DefaultConfig returns the standard router configuration.
func DefaultConfig() Config {
	return Config{
		DefaultSymbol:    "SPY",
		DefaultTimeRange: "6M",
		LiveCandleLimit:  50,
		LiveTimeframe:    "1Min",
	}
}

// Controls reports which selection controls are active for callers.
type Controls struct {
	SymbolSelector    bool `json:"symbol_selector"`
	TimeRangeSelector bool `json:"time_range_selector"`
}

// RoutingConfig is the caller-visible routing state.
type RoutingConfig struct {
	MarketStatus        string                        `json:"market_status"`
	Reason              string                        `json:"reason"`
	IsOpen              bool                          `json:"is_open"`
	DataMode            core.DataMode                 `json:"data_mode"`
	DataSource          string                        `json:"data_source"`
	SelectedSymbol      string                        `json:"selected_symbol"`
	SelectedTimeRange   *string                       `json:"selected_time_range"`
	AvailableSymbols    []string                      `json:"available_symbols"`
	AvailableTimeRanges map[string]histdata.TimeRange `json:"available_time_ranges"`
	ControlsEnabled     Controls                      `json:"controls_enabled"`
	StatusMessage       string                        `json:"status_message,omitempty"`
	Timestamp           time.Time                     `json:"timestamp"`
}

// DataMetadata describes the provenance of a data payload.
type DataMetadata struct {
	Symbol         string        `json:"symbol"`
	DataSource     string        `json:"data_source"`
	FeedMode       core.DataMode `json:"feed_mode"`
	CandleCount    int           `json:"candle_count"`
	TimeRange      string        `json:"time_range,omitempty"`
	TimeRangeLabel string        `json:"time_range_label,omitempty"`
	CacheStartDate string        `json:"cache_start_date,omitempty"`
	CacheEndDate   string        `json:"cache_end_date,omitempty"`
	Timestamp      time.Time     `json:"timestamp"`
}

// MarketData is a candle/headline payload tagged with its provenance.
// Status is "success" or "error"; errors never carry substitute data.
type MarketData struct {
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	DataMode   core.DataMode   `json:"data_mode"`
	DataSource string          `json:"data_source"`
	Symbol     string          `json:"symbol"`
	TimeRange  string          `json:"time_range,omitempty"`
	Candles    []core.Candle   `json:"candles"`
	Headlines  []core.Headline `json:"headlines"`
	Metadata   *DataMetadata   `json:"metadata"`
}

// PortfolioData is a portfolio/position payload tagged with its provenance.
type PortfolioData struct {
	Status     string          `json:"status"`
	Error      string          `json:"error,omitempty"`
	DataMode   core.DataMode   `json:"data_mode"`
	DataSource string          `json:"data_source"`
	Portfolio  *core.Portfolio `json:"portfolio"`
	Positions  []core.Position `json:"positions"`
	Metadata   *DataMetadata   `json:"metadata,omitempty"`
}

// Router routes data access to exactly one source per market state. All
// mutable state sits behind a mutex so concurrent requests cannot interleave
// partial selection updates.
type Router struct {
	cfg        Config
	resolver   *marketstatus.Resolver
	hist       *histdata.Service
	newAdapter live.Factory
	logger     *zap.Logger

	onTransition func(from, to core.DataMode)

	mu                sync.Mutex
	initialized       bool
	status            core.MarketStatus
	dataMode          core.DataMode
	dataSource        string
	adapter           live.Adapter
	selectedSymbol    string
	selectedTimeRange string
}

// Option customizes a Router.
type Option func(*Router)

// WithTransitionHook registers a callback fired on every mode transition.
func WithTransitionHook(hook func(from, to core.DataMode)) Option {
	return func(r *Router) { r.onTransition = hook }
}

// New creates a router. The adapter factory is invoked only when entering
// LIVE mode; a nil factory behaves like a factory that always fails.
func New(cfg Config, resolver *marketstatus.Resolver, hist *histdata.Service, factory live.Factory, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	if factory == nil {
		factory = func() (live.Adapter, error) {
			return nil, fmt.Errorf("no live adapter configured")
		}
	}
	r := &Router{
		cfg:               cfg,
		resolver:          resolver,
		hist:              hist,
		newAdapter:        factory,
		logger:            logger,
		selectedSymbol:    cfg.DefaultSymbol,
		selectedTimeRange: cfg.DefaultTimeRange,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize resolves market status and locks in the data mode. Subsequent
// calls refresh only through the resolver's staleness window.
func (r *Router) Initialize(ctx context.Context) RoutingConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)
	return r.routingConfigLocked(ctx)
}

// refreshLocked re-resolves market status and applies any mode transition.
// The resolver memoizes within its staleness window, so calling this on
// every operation keeps routing consistent without hammering the clock.
func (r *Router) refreshLocked(ctx context.Context) {
	status := r.resolver.Resolve(ctx)

	newMode := core.DataModeHistorical
	if status.IsOpen() {
		newMode = core.DataModeLive
	}

	if r.initialized && newMode == r.dataMode {
		r.status = status
		return
	}

	if r.initialized && newMode != r.dataMode {
		r.logger.Info("market status transition",
			zap.String("from", string(r.dataMode)),
			zap.String("to", string(newMode)),
			zap.String("reason", status.Reason),
		)
		if r.onTransition != nil {
			r.onTransition(r.dataMode, newMode)
		}
	}

	r.status = status
	r.dataMode = newMode

	if newMode == core.DataModeLive {
		r.dataSource = DataSourceLive
		adapter, err := r.newAdapter()
		if err != nil {
			// LIVE with a broken adapter is an error condition, not a
			// license to serve historical data under a live label.
			r.logger.Warn("live adapter initialization failed", zap.Error(err))
			r.adapter = nil
			r.dataSource = DataSourceLive + connectionErrorTag
		} else {
			r.adapter = adapter
			r.logger.Info("live adapter initialized", zap.String("adapter", adapter.Name()))
		}
	} else {
		r.adapter = nil
		r.dataSource = DataSourceHistorical
	}

	r.initialized = true
}

// Status returns the market status the router is currently operating under.
func (r *Router) Status(ctx context.Context) core.MarketStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)
	return r.status
}

// RoutingConfig returns the current routing configuration, refreshing the
// market status when stale.
func (r *Router) RoutingConfig(ctx context.Context) RoutingConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)
	return r.routingConfigLocked(ctx)
}

func (r *Router) routingConfigLocked(ctx context.Context) RoutingConfig {
	cfg := RoutingConfig{
		MarketStatus:   string(r.status.State),
		Reason:         r.status.Reason,
		IsOpen:         r.status.IsOpen(),
		DataMode:       r.dataMode,
		DataSource:     r.dataSource,
		SelectedSymbol: r.selectedSymbol,
		Timestamp:      time.Now().UTC(),
	}

	if r.dataMode == core.DataModeLive {
		// Live mode: symbols reflect portfolio holdings; selection disabled.
		cfg.AvailableSymbols = r.liveSymbolsLocked(ctx)
		cfg.AvailableTimeRanges = map[string]histdata.TimeRange{}
		cfg.SelectedTimeRange = nil
		cfg.ControlsEnabled = Controls{SymbolSelector: false, TimeRangeSelector: false}
	} else {
		selected := r.selectedTimeRange
		cfg.AvailableSymbols = r.hist.Symbols()
		cfg.AvailableTimeRanges = r.hist.TimeRanges()
		cfg.SelectedTimeRange = &selected
		cfg.ControlsEnabled = Controls{SymbolSelector: true, TimeRangeSelector: true}
		cfg.StatusMessage = closedStatusMessage
	}

	return cfg
}

// liveSymbolsLocked lists symbols from live holdings; empty when the adapter
// is unavailable or failing.
func (r *Router) liveSymbolsLocked(ctx context.Context) []string {
	if r.adapter == nil {
		return []string{}
	}
	positions, err := r.adapter.GetPositions(ctx)
	if err != nil {
		return []string{}
	}
	symbols := make([]string, 0, len(positions))
	for _, p := range positions {
		if p.Symbol != "" {
			symbols = append(symbols, p.Symbol)
		}
	}
	return symbols
}

// SetSymbol changes the analysis symbol. Selection is only valid in
// historical mode; during live hours symbols reflect portfolio holdings.
// Router state mutates only on success.
func (r *Router) SetSymbol(ctx context.Context, symbol string) (RoutingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.status.IsOpen() {
		return RoutingConfig{}, core.WithMessage(core.ErrInvalidOperation,
			"symbol selection disabled during live market hours; symbols reflect current portfolio holdings")
	}

	if _, ok := r.hist.Metadata(symbol); !ok {
		return RoutingConfig{}, core.WithMessage(core.ErrSymbolNotFound,
			fmt.Sprintf("symbol %q not found in historical cache; available: %v", symbol, r.hist.Symbols()))
	}

	r.selectedSymbol = symbol
	return r.routingConfigLocked(ctx), nil
}

// SetTimeRange changes the historical window. Same preconditions as SetSymbol.
func (r *Router) SetTimeRange(ctx context.Context, rangeKey string) (RoutingConfig, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.status.IsOpen() {
		return RoutingConfig{}, core.WithMessage(core.ErrInvalidOperation,
			"time range selection disabled during live market hours")
	}

	ranges := r.hist.TimeRanges()
	if _, ok := ranges[rangeKey]; !ok {
		keys := make([]string, 0, len(ranges))
		for k := range ranges {
			keys = append(keys, k)
		}
		return RoutingConfig{}, core.WithMessage(core.ErrRangeInvalid,
			fmt.Sprintf("invalid time range %q; available: %v", rangeKey, keys))
	}

	r.selectedTimeRange = rangeKey
	return r.routingConfigLocked(ctx), nil
}

// Selection returns the current symbol and time range.
func (r *Router) Selection() (symbol, timeRange string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.selectedSymbol, r.selectedTimeRange
}

// MarketData returns candles and headlines from the mode's single source.
func (r *Router) MarketData(ctx context.Context) MarketData {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.dataMode == core.DataModeLive {
		return r.liveMarketDataLocked(ctx)
	}
	return r.historicalMarketDataLocked()
}

func (r *Router) liveMarketDataLocked(ctx context.Context) MarketData {
	base := MarketData{
		DataMode:   core.DataModeLive,
		DataSource: r.dataSource,
		Symbol:     r.selectedSymbol,
		Candles:    []core.Candle{},
		Headlines:  []core.Headline{},
	}

	if r.adapter == nil {
		base.Status = "error"
		base.Error = core.ErrUpstreamUnavailable.Message
		return base
	}

	candles, err := r.adapter.GetRecentCandles(ctx, r.selectedSymbol, r.cfg.LiveCandleLimit, r.cfg.LiveTimeframe)
	if err != nil {
		base.Status = "error"
		base.Error = err.Error()
		return base
	}

	headlines, err := r.adapter.GetHeadlines(ctx)
	if err != nil {
		// Headlines are enrichment; candle payloads survive their absence.
		r.logger.Warn("live headlines unavailable", zap.Error(err))
		headlines = []core.Headline{}
	}

	base.Status = "success"
	base.DataSource = DataSourceLive
	base.Candles = candles
	base.Headlines = headlines
	base.Metadata = &DataMetadata{
		Symbol:      r.selectedSymbol,
		DataSource:  DataSourceLive,
		FeedMode:    core.DataModeLive,
		CandleCount: len(candles),
		Timestamp:   time.Now().UTC(),
	}
	return base
}

func (r *Router) historicalMarketDataLocked() MarketData {
	base := MarketData{
		DataMode:   core.DataModeHistorical,
		DataSource: DataSourceHistorical,
		Symbol:     r.selectedSymbol,
		TimeRange:  r.selectedTimeRange,
		Candles:    []core.Candle{},
		Headlines:  []core.Headline{}, // no historical news archive exists
	}

	res, err := r.hist.Load(r.selectedSymbol, r.selectedTimeRange)
	if err != nil {
		base.Status = "error"
		base.Error = err.Error()
		return base
	}

	base.Status = "success"
	base.Candles = res.Candles
	base.Metadata = &DataMetadata{
		Symbol:         res.Metadata.Symbol,
		DataSource:     res.Metadata.DataSource,
		FeedMode:       core.DataModeHistorical,
		CandleCount:    res.Metadata.CandleCount,
		TimeRange:      res.Metadata.TimeRange,
		TimeRangeLabel: res.Metadata.TimeRangeLabel,
		CacheStartDate: res.Metadata.CacheStartDate,
		CacheEndDate:   res.Metadata.CacheEndDate,
		Timestamp:      time.Now().UTC(),
	}
	return base
}

// PortfolioData returns the portfolio and positions from the mode's single
// source. In historical mode both are synthesized from the cached candles.
func (r *Router) PortfolioData(ctx context.Context) PortfolioData {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.dataMode == core.DataModeLive {
		return r.livePortfolioLocked(ctx)
	}
	return r.historicalPortfolioLocked()
}

func (r *Router) livePortfolioLocked(ctx context.Context) PortfolioData {
	base := PortfolioData{
		DataMode:   core.DataModeLive,
		DataSource: r.dataSource,
		Positions:  []core.Position{},
	}

	if r.adapter == nil {
		base.Status = "error"
		base.Error = core.ErrUpstreamUnavailable.Message
		return base
	}

	portfolio, err := r.adapter.GetPortfolio(ctx)
	if err != nil {
		base.Status = "error"
		base.Error = err.Error()
		return base
	}
	positions, err := r.adapter.GetPositions(ctx)
	if err != nil {
		base.Status = "error"
		base.Error = err.Error()
		return base
	}

	base.Status = "success"
	base.DataSource = DataSourceLive
	base.Portfolio = portfolio
	base.Positions = positions
	return base
}

func (r *Router) historicalPortfolioLocked() PortfolioData {
	base := PortfolioData{
		DataMode:   core.DataModeHistorical,
		DataSource: DataSourceHistorical,
		Positions:  []core.Position{},
	}

	res, err := r.hist.Load(r.selectedSymbol, r.selectedTimeRange)
	if err != nil {
		base.Status = "error"
		base.Error = err.Error()
		return base
	}

	portfolio := r.hist.GeneratePortfolio(r.selectedSymbol, res.Candles)
	base.Status = "success"
	base.Portfolio = &portfolio
	base.Positions = r.hist.GeneratePositions(r.selectedSymbol, res.Candles)
	base.Metadata = &DataMetadata{
		Symbol:      res.Metadata.Symbol,
		DataSource:  res.Metadata.DataSource,
		FeedMode:    core.DataModeHistorical,
		CandleCount: res.Metadata.CandleCount,
		TimeRange:   res.Metadata.TimeRange,
		Timestamp:   time.Now().UTC(),
	}
	return base
}

// placeholderCandidates is the fixed synthetic pair served when no live
// candidate list exists: the decision engine always needs something to
// evaluate, and the Synthetic flag keeps provenance honest.
func placeholderCandidates() []core.Candidate {
	return []core.Candidate{
		{Symbol: "CANDIDATE_A", Sector: "TECH", ProjectedEfficiency: 70.0, Synthetic: true},
		{Symbol: "CANDIDATE_B", Sector: "HEALTHCARE", ProjectedEfficiency: 65.0, Synthetic: true},
	}
}

// Candidates returns prospective entries for the decision engine. Live mode
// prefers adapter candidates and falls back to the flagged synthetic pair
// when the adapter errs or returns none.
func (r *Router) Candidates(ctx context.Context) []core.Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.dataMode == core.DataModeLive && r.adapter != nil {
		candidates, err := r.adapter.GetCandidates(ctx)
		if err == nil && len(candidates) > 0 {
			return candidates
		}
		if err != nil {
			r.logger.Warn("live candidates unavailable, serving synthetic pair", zap.Error(err))
		}
	}
	return placeholderCandidates()
}

// SectorHeatmap returns per-sector strength for the current context.
func (r *Router) SectorHeatmap(ctx context.Context) map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshLocked(ctx)

	if r.dataMode == core.DataModeLive && r.adapter != nil {
		if heatmap, err := r.adapter.GetSectorHeatmap(ctx); err == nil {
			return heatmap
		}
	}
	return r.hist.SectorHeatmap(r.selectedSymbol)
}

// Reset clears the memoized market status and re-initializes routing.
func (r *Router) Reset(ctx context.Context) RoutingConfig {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolver.Reset()
	r.initialized = false
	r.adapter = nil
	r.refreshLocked(ctx)
	return r.routingConfigLocked(ctx)
}
