// Package runner executes the market-aware analysis pipeline: routed data in,
// guardrail-filtered advisory report out.
//
// Pipeline order is fixed: routing -> signals -> decision engine -> guardrails
// -> run memory. Execution is advisory only; no orders are ever placed.
package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/engine"
	"github.com/oakline/compass/internal/guardrails"
	"github.com/oakline/compass/internal/indicator"
	"github.com/oakline/compass/internal/memory"
	"github.com/oakline/compass/internal/metrics"
	"github.com/oakline/compass/internal/router"
	"go.uber.org/zap"
)

// baselineATR anchors volatility classification for routed candle series.
const baselineATR = 2.5

// Options are per-run overrides. Selection overrides only apply in
// historical mode; rejected overrides are logged and ignored, the run
// proceeds with the router's current selection.
type Options struct {
	Symbol    string
	TimeRange string
}

// MarketStatusReport is the status block of a run report.
type MarketStatusReport struct {
	Label     string    `json:"label"`
	IsOpen    bool      `json:"is_open"`
	Timestamp time.Time `json:"timestamp"`
}

// SignalsReport carries the computed market signals with explanations.
type SignalsReport struct {
	VolatilityState       core.VolatilityState `json:"volatility_state"`
	VolatilityExplanation string               `json:"volatility_explanation"`
	NewsScore             int                  `json:"news_score"`
	NewsExplanation       string               `json:"news_explanation"`
	SectorConfidence      int                  `json:"sector_confidence"`
	ConfidenceExplanation string               `json:"confidence_explanation"`
}

// InputStats counts the data that fed the run.
type InputStats struct {
	Positions int `json:"positions"`
	Candles   int `json:"candles"`
	Headlines int `json:"headlines"`
}

// PortfolioHealth is the portfolio-level summary block.
type PortfolioHealth struct {
	PositionCount     int    `json:"position_count"`
	AvgVitals         int    `json:"avg_vitals"`
	CapitalLockIn     string `json:"capital_lockin"`
	ConcentrationRisk string `json:"concentration_risk"`
}

// Analysis is the decision section of a run report.
type Analysis struct {
	Signals           SignalsReport               `json:"signals"`
	MarketPosture     engine.Posture              `json:"market_posture"`
	Decisions         []engine.Decision           `json:"decisions"`
	AllowedActions    []guardrails.ProposedAction `json:"allowed_actions"`
	BlockedBySafety   []guardrails.BlockedAction  `json:"blocked_by_safety"`
	ConcentrationRisk guardrails.Concentration    `json:"concentration_risk"`
	ExecutionSummary  string                      `json:"execution_summary"`
	InputStats        InputStats                  `json:"input_stats"`
	Portfolio         PortfolioHealth             `json:"portfolio"`
	MemoryInsights    memory.Insights             `json:"memory_insights"`
}

// Report is one complete market-aware analysis run.
type Report struct {
	RunID           string               `json:"run_id"`
	MarketStatus    MarketStatusReport   `json:"market_status"`
	DataMode        core.DataMode        `json:"data_mode"`
	DataSource      string               `json:"data_source"`
	PortfolioSource core.DataMode        `json:"portfolio_source"`
	SymbolsUsed     []string             `json:"symbols_used"`
	RoutingConfig   router.RoutingConfig `json:"routing_config"`
	DataMetadata    *router.DataMetadata `json:"data_metadata"`
	StatusMessage   string               `json:"status_message,omitempty"`
	Analysis        Analysis             `json:"analysis"`
}

// Runner drives the analysis pipeline.
type Runner struct {
	router       *router.Router
	engine       *engine.Engine
	filter       *guardrails.Filter
	memory       memory.Store
	metrics      *metrics.Registry
	reserveRatio float64
	logger       *zap.Logger
}

// New creates a runner. The metrics registry may be nil.
func New(rt *router.Router, eng *engine.Engine, filter *guardrails.Filter, mem memory.Store, reg *metrics.Registry, reserveRatio float64, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		router:       rt,
		engine:       eng,
		filter:       filter,
		memory:       mem,
		metrics:      reg,
		reserveRatio: reserveRatio,
		logger:       logger,
	}
}

// Run executes one analysis pass over the routed data.
func (r *Runner) Run(ctx context.Context, opts Options) Report {
	start := time.Now()
	runID := uuid.NewString()

	if opts.Symbol != "" {
		if _, err := r.router.SetSymbol(ctx, opts.Symbol); err != nil {
			r.logger.Warn("symbol override ignored", zap.String("symbol", opts.Symbol), zap.Error(err))
		}
	}
	if opts.TimeRange != "" {
		if _, err := r.router.SetTimeRange(ctx, opts.TimeRange); err != nil {
			r.logger.Warn("time range override ignored", zap.String("time_range", opts.TimeRange), zap.Error(err))
		}
	}

	routingConfig := r.router.RoutingConfig(ctx)
	marketData := r.router.MarketData(ctx)
	portfolioData := r.router.PortfolioData(ctx)
	heatmap := r.router.SectorHeatmap(ctx)
	candidates := r.router.Candidates(ctx)

	candles := marketData.Candles
	headlines := marketData.Headlines
	positions := portfolioData.Positions

	signals := computeSignals(candles, headlines)

	engineInput := engine.Input{
		Portfolio:     portfolioData.Portfolio,
		Positions:     positions,
		Candidates:    candidates,
		SectorHeatmap: heatmap,
		Signals: engine.Signals{
			VolatilityState:  signals.VolatilityState,
			NewsScore:        signals.NewsScore,
			SectorConfidence: signals.SectorConfidence,
		},
	}
	engineReport := r.engine.Evaluate(engineInput)

	proposed := proposedActions(engineReport.Decisions)
	riskContext := r.riskContext(portfolioData, engineReport, signals.VolatilityState)
	filtered := r.filter.Apply(proposed, riskContext)

	insights := memory.Insights{RiskTrend: memory.TrendFirstRun}
	if r.memory != nil {
		insights = r.memory.Insights(engineReport.Posture.RiskLevel)
		if err := r.memory.Append(memory.Record{
			RunID:         runID,
			Timestamp:     time.Now().UTC(),
			DataMode:      string(marketData.DataMode),
			Symbol:        routingConfig.SelectedSymbol,
			MarketPosture: engineReport.Posture.MarketPosture,
			RiskLevel:     engineReport.Posture.RiskLevel,
			BlockedCount:  len(filtered.BlockedActions),
		}); err != nil {
			r.logger.Warn("run memory append failed", zap.Error(err))
		}
	}

	if r.metrics != nil {
		r.metrics.RecordAnalysisRun(string(marketData.DataMode), engineReport.Posture.MarketPosture, time.Since(start).Seconds())
		r.metrics.RecordStatusResolution(routingConfig.MarketStatus)
		for _, b := range filtered.BlockedActions {
			r.metrics.RecordBlockedAction(b.Reason)
		}
	}

	r.logger.Info("analysis run complete",
		zap.String("run_id", runID),
		zap.String("data_mode", string(marketData.DataMode)),
		zap.String("posture", engineReport.Posture.MarketPosture),
		zap.Int("allowed", len(filtered.AllowedActions)),
		zap.Int("blocked", len(filtered.BlockedActions)),
	)

	return Report{
		RunID: runID,
		MarketStatus: MarketStatusReport{
			Label:     routingConfig.MarketStatus,
			IsOpen:    routingConfig.IsOpen,
			Timestamp: time.Now().UTC(),
		},
		DataMode:        marketData.DataMode,
		DataSource:      routingConfig.DataSource,
		PortfolioSource: portfolioData.DataMode,
		SymbolsUsed:     []string{routingConfig.SelectedSymbol},
		RoutingConfig:   routingConfig,
		DataMetadata:    marketData.Metadata,
		StatusMessage:   routingConfig.StatusMessage,
		Analysis: Analysis{
			Signals:           signals,
			MarketPosture:     engineReport.Posture,
			Decisions:         engineReport.Decisions,
			AllowedActions:    filtered.AllowedActions,
			BlockedBySafety:   filtered.BlockedActions,
			ConcentrationRisk: engineReport.ConcentrationRisk,
			ExecutionSummary:  executionSummary(engineReport.Posture, filtered),
			InputStats: InputStats{
				Positions: len(positions),
				Candles:   len(candles),
				Headlines: len(headlines),
			},
			Portfolio:      portfolioHealth(engineReport),
			MemoryInsights: insights,
		},
	}
}

// computeSignals derives the volatility, news, and confidence signals from
// routed data. Missing data degrades to neutral values, never to errors.
func computeSignals(candles []core.Candle, headlines []core.Headline) SignalsReport {
	volState := core.VolatilityStable
	volExplanation := "No candles (stable assumed)"
	if len(candles) > 0 {
		atr := indicator.ATR(candles, 14)
		volState = indicator.ClassifyVolatility(atr, baselineATR)
		volExplanation = fmt.Sprintf("Computed from %d candles", len(candles))
	}

	newsScore := engine.ScoreNews(headlines)
	newsExplanation := "No headlines (neutral)"
	if len(headlines) > 0 {
		newsExplanation = fmt.Sprintf("Processed %d headlines", len(headlines))
	}

	confidence := engine.SectorConfidence(volState, newsScore)

	return SignalsReport{
		VolatilityState:       volState,
		VolatilityExplanation: volExplanation,
		NewsScore:             newsScore,
		NewsExplanation:       newsExplanation,
		SectorConfidence:      confidence,
		ConfidenceExplanation: "Combined volatility and news signals",
	}
}

// proposedActions converts engine decisions into the guardrail input shape.
// Passive verdicts (HOLD, MONITOR) are not proposals and skip the filter.
func proposedActions(decisions []engine.Decision) []guardrails.ProposedAction {
	actions := make([]guardrails.ProposedAction, 0, len(decisions))
	for _, d := range decisions {
		if d.Action == "HOLD" || d.Action == "MONITOR" {
			continue
		}
		actions = append(actions, guardrails.ProposedAction{
			Target: d.Target,
			Type:   d.Type,
			Action: d.Action,
			Sector: d.Sector,
			Metadata: map[string]any{
				"score":     d.Score,
				"rationale": d.Rationale,
			},
		})
	}
	return actions
}

// riskContext assembles the guardrail inputs. A failed portfolio payload
// yields a nil context, which the filter treats as block-everything.
func (r *Runner) riskContext(p router.PortfolioData, rep engine.Report, vol core.VolatilityState) *guardrails.RiskContext {
	if p.Status != "success" || p.Portfolio == nil {
		return nil
	}
	return &guardrails.RiskContext{
		Concentration:   rep.ConcentrationRisk,
		CashAvailable:   p.Portfolio.Cash,
		MinimumReserve:  p.Portfolio.TotalCapital * r.reserveRatio,
		VolatilityState: string(vol),
	}
}

// executionSummary builds the compact human-readable run summary.
func executionSummary(posture engine.Posture, filtered guardrails.FilterResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Posture %s (risk %s): %d action(s) cleared",
		posture.MarketPosture, posture.RiskLevel, len(filtered.AllowedActions))

	if len(filtered.BlockedActions) == 0 {
		b.WriteString(", none blocked.")
		return b.String()
	}

	summary := guardrails.Summarize(filtered.BlockedActions)
	reasons := make([]string, 0, len(summary))
	for reason := range summary {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)

	fmt.Fprintf(&b, ", %d blocked:", len(filtered.BlockedActions))
	for _, reason := range reasons {
		fmt.Fprintf(&b, " %s (%s);", reason, strings.Join(summary[reason], ", "))
	}
	return strings.TrimSuffix(b.String(), ";") + "."
}

// portfolioHealth summarizes the engine report for the report's health block.
func portfolioHealth(rep engine.Report) PortfolioHealth {
	scores := 0
	count := 0
	positionCount := 0
	for _, d := range rep.Decisions {
		if d.Type == engine.TypePosition {
			scores += d.Score
			count++
			positionCount++
		}
	}
	avg := 0
	if count > 0 {
		avg = scores / count
	}

	lockIn := "NONE"
	if rep.ReallocationTrigger {
		lockIn = "DETECTED"
	}
	concentration := "LOW"
	if rep.ConcentrationRisk.IsConcentrated {
		concentration = "HIGH"
	}

	return PortfolioHealth{
		PositionCount:     positionCount,
		AvgVitals:         avg,
		CapitalLockIn:     lockIn,
		ConcentrationRisk: concentration,
	}
}
