package engine

import (
	"strings"

	"github.com/oakline/compass/internal/core"
)

// NeutralScore is the news score used when no headlines are available.
const NeutralScore = 50

var positiveTerms = []string{
	"rally", "beats", "beat", "surge", "soar", "record", "upgrade", "strong", "growth",
}

var negativeTerms = []string{
	"crash", "plunge", "miss", "selloff", "sell-off", "downgrade", "warning",
	"layoff", "recession", "default",
}

// ScoreNews converts headlines into a 0..100 sentiment score, 50 neutral.
// Keyword-based on purpose: the score feeds coarse posture thresholds, not
// per-symbol ranking.
func ScoreNews(headlines []core.Headline) int {
	if len(headlines) == 0 {
		return NeutralScore
	}

	score := NeutralScore
	for _, h := range headlines {
		title := strings.ToLower(h.Title)
		for _, term := range positiveTerms {
			if strings.Contains(title, term) {
				score += 5
				break
			}
		}
		for _, term := range negativeTerms {
			if strings.Contains(title, term) {
				score -= 8
				break
			}
		}
	}
	return clamp(score, 0, 100)
}

// SectorConfidence combines the volatility state with the news score into a
// single 0..100 confidence value.
func SectorConfidence(vol core.VolatilityState, newsScore int) int {
	confidence := newsScore
	switch vol {
	case core.VolatilityExpanding:
		confidence -= 15
	case core.VolatilityContracting:
		confidence += 5
	}
	return clamp(confidence, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
