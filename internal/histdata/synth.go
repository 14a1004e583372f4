package histdata

import (
	"math"

	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/indicator"
)

// Synthetic portfolio sizing. The decision engine always needs a portfolio to
// evaluate; when the market is closed and no live account exists, one is
// synthesized against a fixed notional with a fixed cash reserve. Provenance
// is carried by the caller's data-mode label, not by the records themselves.
const (
	NotionalCapital  = 100000.0
	AllocationRatio  = 0.75
	entryLookback    = 20
	atrPeriod        = 14
	defaultRiskLevel = "moderate"
)

// sectorTable maps cached symbols to sectors for synthetic positions.
var sectorTable = map[string]string{
	"SPY": "INDEX",
	"QQQ": "TECH",
	"IWM": "SMALL_CAP",
}

// SectorFor returns the sector for a symbol, defaulting to EQUITY.
func SectorFor(symbol string) string {
	if sector, ok := sectorTable[symbol]; ok {
		return sector
	}
	return "EQUITY"
}

// GeneratePortfolio synthesizes an account-level state from historical
// candles: fixed notional capital with the fixed cash reserve held back.
func (s *Service) GeneratePortfolio(symbol string, candles []core.Candle) core.Portfolio {
	p := core.Portfolio{
		TotalCapital:  NotionalCapital,
		Cash:          NotionalCapital,
		RiskTolerance: defaultRiskLevel,
	}
	if len(candles) > 0 {
		p.Cash = NotionalCapital * (1 - AllocationRatio)
	}
	return p
}

// GeneratePositions synthesizes exactly one position per symbol so the
// decision engine always has something to evaluate. Entry price is read
// min(entryLookback, len-1) candles before the last; current price is the
// last close; ATR comes from the trailing 14-period true-range average.
func (s *Service) GeneratePositions(symbol string, candles []core.Candle) []core.Position {
	if len(candles) == 0 {
		return []core.Position{}
	}

	last := candles[len(candles)-1]
	currentPrice := last.Close

	lookback := entryLookback
	if lookback > len(candles)-1 {
		lookback = len(candles) - 1
	}
	entryCandle := candles[0]
	if lookback > 0 {
		entryCandle = candles[len(candles)-1-lookback]
	}

	recent := candles
	if len(recent) > entryLookback {
		recent = recent[len(recent)-entryLookback:]
	}
	atr := indicator.ATR(recent, atrPeriod)

	return []core.Position{
		{
			Symbol:           symbol,
			Sector:           SectorFor(symbol),
			EntryPrice:       round2(entryCandle.Close),
			CurrentPrice:     round2(currentPrice),
			ATR:              round2(atr),
			DaysHeld:         lookback,
			CapitalAllocated: NotionalCapital * AllocationRatio,
		},
	}
}

// SectorHeatmap returns a neutral baseline heatmap weighted toward the
// selected symbol's sector. Historical mode has no live heatmap source.
func (s *Service) SectorHeatmap(symbol string) map[string]int {
	heatmaps := map[string]map[string]int{
		"SPY": {"INDEX": 60, "TECH": 55, "HEALTHCARE": 50, "ENERGY": 45},
		"QQQ": {"TECH": 70, "INDEX": 50, "HEALTHCARE": 45, "ENERGY": 40},
		"IWM": {"SMALL_CAP": 55, "INDEX": 50, "TECH": 50, "ENERGY": 50},
	}
	if hm, ok := heatmaps[symbol]; ok {
		out := make(map[string]int, len(hm))
		for k, v := range hm {
			out[k] = v
		}
		return out
	}
	return map[string]int{"EQUITY": 50, "TECH": 50, "INDEX": 50}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
