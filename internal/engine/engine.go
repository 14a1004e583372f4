// Package engine is the rule-based decision engine. Given a portfolio,
// positions, candidates, and market signals it produces a market posture and
// per-target proposed actions. It performs no I/O; safety filtering happens
// downstream in the guardrail stage.
package engine

import (
	"fmt"

	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/guardrails"
	"go.uber.org/zap"
)

// Market postures.
const (
	PostureRiskOn  = "RISK_ON"
	PostureNeutral = "NEUTRAL"
	PostureRiskOff = "RISK_OFF"
)

// Risk levels.
const (
	RiskLow    = "LOW"
	RiskMedium = "MEDIUM"
	RiskHigh   = "HIGH"
)

// Target types.
const (
	TypePosition  = "POSITION"
	TypeCandidate = "CANDIDATE"
)

// Posture thresholds and concentration limits.
const (
	crashNewsScore      = 20
	riskOnConfidence    = 65
	riskOffConfidence   = 40
	breachShare         = 0.60
	approachingShare    = 0.45
	lockInDaysHeld      = 25
	lockInReturnPercent = 1.0
)

// Signals are the per-run market inputs.
type Signals struct {
	VolatilityState  core.VolatilityState `json:"volatility_state"`
	NewsScore        int                  `json:"news_score"`
	SectorConfidence int                  `json:"sector_confidence"`
}

// Posture is the run-level stance every per-target decision hangs off.
type Posture struct {
	MarketPosture string `json:"market_posture"`
	RiskLevel     string `json:"risk_level"`
	Rationale     string `json:"rationale"`
}

// Decision is one per-target verdict.
type Decision struct {
	Target    string `json:"target"`
	Type      string `json:"type"`
	Action    string `json:"action"`
	Sector    string `json:"sector"`
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

// Input is everything the engine evaluates in one run.
type Input struct {
	Portfolio     *core.Portfolio
	Positions     []core.Position
	Candidates    []core.Candidate
	SectorHeatmap map[string]int
	Signals       Signals
}

// Report is the engine output consumed by the guardrail stage.
type Report struct {
	Posture             Posture                  `json:"market_posture"`
	Decisions           []Decision               `json:"decisions"`
	ConcentrationRisk   guardrails.Concentration `json:"concentration_risk"`
	ReallocationTrigger bool                     `json:"reallocation_trigger"`
}

// Engine evaluates rule-based portfolio decisions.
type Engine struct {
	logger *zap.Logger
}

// New creates an engine.
func New(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Evaluate runs the decision rules over one snapshot of inputs.
func (e *Engine) Evaluate(in Input) Report {
	posture := e.classifyPosture(in.Signals)
	concentration := computeConcentration(in.Positions)

	decisions := make([]Decision, 0, len(in.Positions)+len(in.Candidates))
	realloc := false
	for _, p := range in.Positions {
		d := e.evaluatePosition(p, posture, in.SectorHeatmap)
		decisions = append(decisions, d)
		if isLockedIn(p) {
			realloc = true
		}
	}
	for _, c := range in.Candidates {
		decisions = append(decisions, e.evaluateCandidate(c, posture))
	}

	e.logger.Info("decision engine evaluated",
		zap.String("posture", posture.MarketPosture),
		zap.String("risk_level", posture.RiskLevel),
		zap.Int("decisions", len(decisions)),
		zap.Bool("concentrated", concentration.IsConcentrated),
	)

	return Report{
		Posture:             posture,
		Decisions:           decisions,
		ConcentrationRisk:   concentration,
		ReallocationTrigger: realloc,
	}
}

// classifyPosture maps signals to a stance. A news crash overrides every
// other signal; expanding volatility forces risk-off.
func (e *Engine) classifyPosture(s Signals) Posture {
	switch {
	case s.NewsScore <= crashNewsScore:
		return Posture{
			MarketPosture: PostureRiskOff,
			RiskLevel:     RiskHigh,
			Rationale:     fmt.Sprintf("News crash override (score %d)", s.NewsScore),
		}
	case s.VolatilityState == core.VolatilityExpanding:
		return Posture{
			MarketPosture: PostureRiskOff,
			RiskLevel:     RiskHigh,
			Rationale:     "Volatility expanding against baseline",
		}
	case s.SectorConfidence >= riskOnConfidence:
		return Posture{
			MarketPosture: PostureRiskOn,
			RiskLevel:     RiskLow,
			Rationale:     fmt.Sprintf("Sector confidence %d with contained volatility", s.SectorConfidence),
		}
	case s.SectorConfidence <= riskOffConfidence:
		return Posture{
			MarketPosture: PostureRiskOff,
			RiskLevel:     RiskMedium,
			Rationale:     fmt.Sprintf("Sector confidence %d below floor", s.SectorConfidence),
		}
	default:
		return Posture{
			MarketPosture: PostureNeutral,
			RiskLevel:     RiskMedium,
			Rationale:     "Mixed signals",
		}
	}
}

// evaluatePosition scores a holding 0..100 and maps it to an action under
// the current posture.
func (e *Engine) evaluatePosition(p core.Position, posture Posture, heatmap map[string]int) Decision {
	score := 50

	ret := returnPercent(p)
	switch {
	case ret >= 10:
		score += 20
	case ret >= 3:
		score += 10
	case ret <= -5:
		score -= 20
	case ret < 0:
		score -= 10
	}

	if heat, ok := heatmap[p.Sector]; ok {
		score += (heat - 50) / 5
	}
	score = clamp(score, 0, 100)

	var action, rationale string
	switch {
	case posture.MarketPosture == PostureRiskOff && score < 40:
		action = "FREE_CAPITAL"
		rationale = "Weak position under risk-off posture"
	case posture.MarketPosture == PostureRiskOff:
		action = "HOLD"
		rationale = "Risk-off posture, no new exposure"
	case posture.MarketPosture == PostureRiskOn && score >= 70:
		action = "SCALE_UP"
		rationale = fmt.Sprintf("Strong position (score %d) under risk-on posture", score)
	case score < 35:
		action = "TRIM"
		rationale = fmt.Sprintf("Underperforming (return %.1f%%)", ret)
	default:
		action = "HOLD"
		rationale = "Within expected band"
	}

	return Decision{
		Target:    p.Symbol,
		Type:      TypePosition,
		Action:    action,
		Sector:    p.Sector,
		Score:     score,
		Rationale: rationale,
	}
}

// evaluateCandidate maps projected efficiency to an entry action under the
// current posture. Risk-off postures never open new exposure.
func (e *Engine) evaluateCandidate(c core.Candidate, posture Posture) Decision {
	score := clamp(int(c.ProjectedEfficiency), 0, 100)

	var action, rationale string
	switch {
	case posture.MarketPosture == PostureRiskOff:
		action = "MONITOR"
		rationale = "Risk-off posture, entries suspended"
	case posture.MarketPosture == PostureRiskOn && score >= 70:
		action = "ALLOCATE_HIGH"
		rationale = fmt.Sprintf("High projected efficiency (%d) under risk-on posture", score)
	case posture.MarketPosture == PostureRiskOn && score >= 60:
		action = "ALLOCATE"
		rationale = fmt.Sprintf("Projected efficiency %d under risk-on posture", score)
	case score >= 65:
		action = "ALLOCATE_CAUTIOUS"
		rationale = fmt.Sprintf("Projected efficiency %d under neutral posture", score)
	default:
		action = "MONITOR"
		rationale = "Projected efficiency below entry threshold"
	}

	return Decision{
		Target:    c.Symbol,
		Type:      TypeCandidate,
		Action:    action,
		Sector:    c.Sector,
		Score:     score,
		Rationale: rationale,
	}
}

// computeConcentration measures capital share by sector across positions.
func computeConcentration(positions []core.Position) guardrails.Concentration {
	total := 0.0
	bySector := map[string]float64{}
	for _, p := range positions {
		total += p.CapitalAllocated
		bySector[p.Sector] += p.CapitalAllocated
	}
	if total <= 0 {
		return guardrails.Concentration{}
	}

	dominant, dominantShare := "", 0.0
	for sector, allocated := range bySector {
		share := allocated / total
		if share > dominantShare {
			dominant, dominantShare = sector, share
		}
	}

	switch {
	case dominantShare >= breachShare:
		return guardrails.Concentration{IsConcentrated: true, DominantSector: dominant, Severity: "BREACH"}
	case dominantShare >= approachingShare:
		return guardrails.Concentration{IsConcentrated: true, DominantSector: dominant, Severity: "APPROACHING"}
	default:
		return guardrails.Concentration{}
	}
}

// isLockedIn flags capital sitting in a stale flat position.
func isLockedIn(p core.Position) bool {
	return p.DaysHeld > lockInDaysHeld && returnPercent(p) < lockInReturnPercent
}

func returnPercent(p core.Position) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}
