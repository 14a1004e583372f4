package guardrails

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stableRisk() *RiskContext {
	return &RiskContext{
		Concentration:   Concentration{IsConcentrated: false},
		CashAvailable:   100000,
		MinimumReserve:  50000,
		VolatilityState: "STABLE",
	}
}

func TestApply_EmptyActions(t *testing.T) {
	f := New(nil)

	for _, actions := range [][]ProposedAction{nil, {}} {
		result := f.Apply(actions, stableRisk())
		assert.Empty(t, result.AllowedActions)
		assert.Empty(t, result.BlockedActions)
		assert.NotNil(t, result.AllowedActions)
		assert.NotNil(t, result.BlockedActions)
	}
}

func TestApply_MissingRiskContextFailsClosed(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "AAPL", Type: "POSITION", Action: "HOLD"},
		{Target: "XLE", Type: "POSITION", Action: "SELL"},
	}

	result := f.Apply(actions, nil)

	assert.Empty(t, result.AllowedActions)
	require.Len(t, result.BlockedActions, 2, "every action blocked, even passive ones")
	for _, b := range result.BlockedActions {
		assert.Equal(t, ReasonMissingRiskContext, b.Reason)
		assert.Equal(t, []string{ReasonMissingRiskContext}, b.Reasons)
	}
}

func TestApply_SectorConcentrationBreach(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "TECH_A", Action: "ALLOCATE_HIGH", Sector: "TECH"},
	}
	risk := &RiskContext{
		Concentration:   Concentration{IsConcentrated: true, DominantSector: "TECH", Severity: "BREACH"},
		CashAvailable:   100000,
		MinimumReserve:  50000,
		VolatilityState: "STABLE",
	}

	result := f.Apply(actions, risk)

	assert.Empty(t, result.AllowedActions)
	require.Len(t, result.BlockedActions, 1)
	assert.Equal(t, "TECH_A", result.BlockedActions[0].Target)
	assert.Equal(t, "Sector concentration breach", result.BlockedActions[0].Reason)
}

func TestApply_BreachOnlyBlocksDominantSector(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "TECH_A", Action: "ALLOCATE", Sector: "TECH"},
		{Target: "HC_B", Action: "ALLOCATE", Sector: "HEALTHCARE"},
		{Target: "TECH_C", Action: "SELL", Sector: "TECH"},
	}
	risk := stableRisk()
	risk.Concentration = Concentration{IsConcentrated: true, DominantSector: "TECH", Severity: "BREACH"}

	result := f.Apply(actions, risk)

	require.Len(t, result.BlockedActions, 1)
	assert.Equal(t, "TECH_A", result.BlockedActions[0].Target)
	require.Len(t, result.AllowedActions, 2, "other sectors and non-increasing actions pass")
}

func TestApply_ConcentrationBlocksIncreasingAtAnySeverity(t *testing.T) {
	f := New(nil)

	// The severity label never weakens the concentration guard: a
	// concentrated dominant sector blocks exposure growth outright.
	for _, severity := range []string{"BREACH", "APPROACHING", "NONE", ""} {
		actions := []ProposedAction{
			{Target: "TECH_A", Action: "ALLOCATE", Sector: "TECH"},
			{Target: "TECH_B", Action: "DOUBLE_DOWN", Sector: "TECH"},
		}
		risk := stableRisk()
		risk.Concentration = Concentration{IsConcentrated: true, DominantSector: "TECH", Severity: severity}

		result := f.Apply(actions, risk)

		assert.Empty(t, result.AllowedActions, "severity %q", severity)
		require.Len(t, result.BlockedActions, 2, "severity %q", severity)
		for _, b := range result.BlockedActions {
			assert.Equal(t, ReasonSectorBreach, b.Reason)
		}
	}
}

func TestApply_ApproachingAloneBlocksOnlyAggressive(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "TECH_A", Action: "ALLOCATE", Sector: "TECH"},
		{Target: "TECH_B", Action: "SCALE_UP", Sector: "TECH"},
	}
	risk := stableRisk()
	risk.Concentration = Concentration{IsConcentrated: false, DominantSector: "TECH", Severity: "APPROACHING"}

	result := f.Apply(actions, risk)

	require.Len(t, result.AllowedActions, 1)
	assert.Equal(t, "TECH_A", result.AllowedActions[0].Target, "plain ALLOCATE passes before concentration is flagged")
	require.Len(t, result.BlockedActions, 1)
	assert.Equal(t, "TECH_B", result.BlockedActions[0].Target)
}

func TestApply_CashReserve(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "SPY", Action: "ALLOCATE_CAUTIOUS", Sector: "INDEX"},
		{Target: "SPY", Action: "HOLD", Sector: "INDEX"},
	}
	risk := stableRisk()
	risk.CashAvailable = 10000
	risk.MinimumReserve = 25000

	result := f.Apply(actions, risk)

	require.Len(t, result.BlockedActions, 1)
	assert.Equal(t, "Insufficient cash reserve", result.BlockedActions[0].Reason)
	assert.Equal(t, "ALLOCATE_CAUTIOUS", result.BlockedActions[0].Action)
	require.Len(t, result.AllowedActions, 1, "HOLD needs no capital")
}

func TestApply_ExpandingVolatility(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "QQQ", Action: "FREE_CAPITAL", Sector: "TECH"},
		{Target: "QQQ", Action: "ALLOCATE_CAUTIOUS", Sector: "TECH"},
	}
	risk := stableRisk()
	risk.VolatilityState = "EXPANDING"

	result := f.Apply(actions, risk)

	require.Len(t, result.BlockedActions, 1)
	assert.Equal(t, "FREE_CAPITAL", result.BlockedActions[0].Action)
	assert.Equal(t, "Aggressive action blocked during expanding volatility", result.BlockedActions[0].Reason)
	require.Len(t, result.AllowedActions, 1, "cautious allocation survives expanding volatility")
}

func TestApply_AllMatchingReasonsRecorded(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "TECH_A", Action: "ALLOCATE_AGGRESSIVE", Sector: "TECH"},
	}
	risk := &RiskContext{
		Concentration:   Concentration{IsConcentrated: true, DominantSector: "TECH", Severity: "BREACH"},
		CashAvailable:   1000,
		MinimumReserve:  25000,
		VolatilityState: "EXPANDING",
	}

	result := f.Apply(actions, risk)

	require.Len(t, result.BlockedActions, 1)
	b := result.BlockedActions[0]
	assert.Equal(t, ReasonSectorBreach, b.Reason, "first matching rule stays the display reason")
	assert.Equal(t, []string{
		ReasonSectorBreach,
		ReasonInsufficientCash,
		ReasonVolatilityBlock,
	}, b.Reasons)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	f := New(nil)
	actions := []ProposedAction{
		{Target: "TECH_A", Action: "ALLOCATE", Sector: "TECH", Metadata: map[string]any{"confidence": 0.8}},
	}
	risk := stableRisk()

	first := f.Apply(actions, risk)
	second := f.Apply(actions, risk)

	assert.Equal(t, first, second, "pure function: identical inputs, identical outputs")
	assert.Equal(t, "TECH_A", actions[0].Target)
	assert.Equal(t, 0.8, actions[0].Metadata["confidence"])
}

func TestSummarize(t *testing.T) {
	blocked := []BlockedAction{
		{ProposedAction: ProposedAction{Target: "TECH_A"}, Reason: ReasonSectorBreach},
		{ProposedAction: ProposedAction{Target: "TECH_B"}, Reason: ReasonSectorBreach},
		{ProposedAction: ProposedAction{Target: "SPY"}, Reason: ReasonInsufficientCash},
	}

	summary := Summarize(blocked)

	assert.Equal(t, []string{"TECH_A", "TECH_B"}, summary[ReasonSectorBreach])
	assert.Equal(t, []string{"SPY"}, summary[ReasonInsufficientCash])
	assert.Len(t, summary, 2)
}
