package indicator

import (
	"math"

	"github.com/oakline/compass/internal/core"
)

// DefaultATR is returned when a series is too short to compute a true range.
const DefaultATR = 2.0

// TrueRange calculates the true range for a candle given the previous close:
// max(high-low, |high-prevClose|, |low-prevClose|).
func TrueRange(c core.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if hc := math.Abs(c.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(c.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}

// ATR calculates the Average True Range over the trailing period.
// Series shorter than two candles fall back to DefaultATR.
func ATR(candles []core.Candle, period int) float64 {
	if len(candles) < 2 {
		return DefaultATR
	}
	if period < 1 {
		period = 14
	}

	trueRanges := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		trueRanges = append(trueRanges, TrueRange(candles[i], candles[i-1].Close))
	}

	// Use the last 'period' values
	if len(trueRanges) > period {
		trueRanges = trueRanges[len(trueRanges)-period:]
	}

	var sum float64
	for _, tr := range trueRanges {
		sum += tr
	}
	return sum / float64(len(trueRanges))
}

// ClassifyVolatility compares the current ATR against a baseline ATR.
// Ratios above 1.2 are expanding, below 0.8 contracting, otherwise stable.
func ClassifyVolatility(atr, baseline float64) core.VolatilityState {
	if baseline <= 0 {
		return core.VolatilityStable
	}
	ratio := atr / baseline
	switch {
	case ratio > 1.2:
		return core.VolatilityExpanding
	case ratio < 0.8:
		return core.VolatilityContracting
	default:
		return core.VolatilityStable
	}
}
