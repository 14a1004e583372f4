// Package guardrails applies fail-closed safety filtering to proposed
// portfolio actions. The filter is a pure function: it never mutates its
// inputs, performs no I/O, and blocks everything when the risk context is
// missing rather than guessing.
package guardrails

import (
	"go.uber.org/zap"
)

// Block reasons, stable strings consumed by reports and metrics.
const (
	ReasonMissingRiskContext = "Safety check failed: missing risk context"
	ReasonSectorBreach       = "Sector concentration breach"
	ReasonInsufficientCash   = "Insufficient cash reserve"
	ReasonVolatilityBlock    = "Aggressive action blocked during expanding volatility"
)

// Action sets evaluated by the rules. Membership is by the action verb only;
// the target and sector feed individual rule conditions.
var (
	// increasingActions grow exposure and are blocked in a concentrated
	// dominant sector, whatever the severity label says.
	increasingActions = map[string]bool{
		"ALLOCATE":            true,
		"ALLOCATE_HIGH":       true,
		"ALLOCATE_AGGRESSIVE": true,
		"SCALE_UP":            true,
		"DOUBLE_DOWN":         true,
		"ADD_POSITION":        true,
	}

	// approachingAggressive are blocked in the dominant sector when
	// concentration is merely approaching its limit.
	approachingAggressive = map[string]bool{
		"ALLOCATE_HIGH":       true,
		"ALLOCATE_AGGRESSIVE": true,
		"SCALE_UP":            true,
		"DOUBLE_DOWN":         true,
	}

	// capitalActions consume cash and require the reserve to stay intact.
	capitalActions = map[string]bool{
		"ALLOCATE":            true,
		"ALLOCATE_HIGH":       true,
		"ALLOCATE_AGGRESSIVE": true,
		"ALLOCATE_CAPPED":     true,
		"ALLOCATE_CAUTIOUS":   true,
		"SCALE_UP":            true,
		"ADD_POSITION":        true,
		"DOUBLE_DOWN":         true,
	}

	// volatilityAggressive are blocked outright while volatility expands.
	volatilityAggressive = map[string]bool{
		"ALLOCATE_AGGRESSIVE": true,
		"SCALE_UP":            true,
		"DOUBLE_DOWN":         true,
		"FREE_CAPITAL":        true,
	}
)

// ProposedAction is one decision-engine output under review.
type ProposedAction struct {
	Target   string         `json:"target"`
	Type     string         `json:"type"`
	Action   string         `json:"action"`
	Sector   string         `json:"sector,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Concentration describes sector concentration risk.
type Concentration struct {
	IsConcentrated bool   `json:"is_concentrated"`
	DominantSector string `json:"dominant_sector"`
	Severity       string `json:"severity"` // BREACH or APPROACHING
}

// RiskContext carries the portfolio risk inputs the rules evaluate against.
type RiskContext struct {
	Concentration   Concentration `json:"concentration"`
	CashAvailable   float64       `json:"cash_available"`
	MinimumReserve  float64       `json:"minimum_reserve"`
	VolatilityState string        `json:"volatility_state"`
}

// BlockedAction is a rejected action with its reasons. Reason holds the first
// matching rule for display; Reasons records every rule that matched.
type BlockedAction struct {
	ProposedAction
	Reason  string   `json:"reason"`
	Reasons []string `json:"reasons"`
}

// FilterResult partitions proposed actions into allowed and blocked.
type FilterResult struct {
	AllowedActions []ProposedAction `json:"allowed_actions"`
	BlockedActions []BlockedAction  `json:"blocked_actions"`
}

// Filter evaluates proposed actions against a risk context.
type Filter struct {
	logger *zap.Logger
}

// New creates a guardrail filter.
func New(logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{logger: logger}
}

// Apply filters the proposed actions. A nil or empty input yields an empty
// result. A nil risk context fails closed: every action is blocked.
func (f *Filter) Apply(actions []ProposedAction, risk *RiskContext) FilterResult {
	result := FilterResult{
		AllowedActions: []ProposedAction{},
		BlockedActions: []BlockedAction{},
	}
	if len(actions) == 0 {
		return result
	}

	if risk == nil {
		for _, a := range actions {
			result.BlockedActions = append(result.BlockedActions, BlockedAction{
				ProposedAction: a,
				Reason:         ReasonMissingRiskContext,
				Reasons:        []string{ReasonMissingRiskContext},
			})
		}
		f.logger.Warn("risk context missing, all actions blocked",
			zap.Int("blocked", len(actions)))
		return result
	}

	for _, a := range actions {
		reasons := f.evaluate(a, risk)
		if len(reasons) == 0 {
			result.AllowedActions = append(result.AllowedActions, a)
			continue
		}
		result.BlockedActions = append(result.BlockedActions, BlockedAction{
			ProposedAction: a,
			Reason:         reasons[0],
			Reasons:        reasons,
		})
		f.logger.Info("action blocked",
			zap.String("target", a.Target),
			zap.String("action", a.Action),
			zap.Strings("reasons", reasons),
		)
	}
	return result
}

// evaluate runs every rule and collects all matching block reasons, in rule
// order, so reports can show the full picture while the first reason stays
// stable for display.
func (f *Filter) evaluate(a ProposedAction, risk *RiskContext) []string {
	var reasons []string

	// A concentrated dominant sector blocks every exposure-increasing action
	// regardless of severity. An APPROACHING severity blocks the aggressive
	// subset on its own, even before concentration is flagged.
	if a.Sector == risk.Concentration.DominantSector {
		if risk.Concentration.IsConcentrated && increasingActions[a.Action] {
			reasons = append(reasons, ReasonSectorBreach)
		} else if risk.Concentration.Severity == "APPROACHING" && approachingAggressive[a.Action] {
			reasons = append(reasons, ReasonSectorBreach)
		}
	}

	if capitalActions[a.Action] && risk.CashAvailable < risk.MinimumReserve {
		reasons = append(reasons, ReasonInsufficientCash)
	}

	if risk.VolatilityState == "EXPANDING" && volatilityAggressive[a.Action] {
		reasons = append(reasons, ReasonVolatilityBlock)
	}

	return reasons
}

// Summarize groups blocked actions by display reason, for reporting.
func Summarize(blocked []BlockedAction) map[string][]string {
	summary := make(map[string][]string)
	for _, b := range blocked {
		summary[b.Reason] = append(summary[b.Reason], b.Target)
	}
	return summary
}
