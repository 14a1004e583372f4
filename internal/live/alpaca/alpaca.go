// Package alpaca implements the live data adapter and the authoritative
// market clock over the Alpaca trading and market-data APIs.
package alpaca

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/oakline/compass/internal/config"
	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/marketstatus"
	"github.com/shopspring/decimal"
)

// Adapter implements live.Adapter over Alpaca.
type Adapter struct {
	tradeClient *alpaca.Client
	mdClient    *marketdata.Client
}

// New creates an Alpaca-backed adapter. It fails when credentials are absent
// so the router can report the LIVE connection error honestly.
func New(cfg config.AlpacaConfig) (*Adapter, error) {
	if !cfg.HasCredentials() {
		return nil, fmt.Errorf("alpaca: credentials not configured")
	}

	return &Adapter{
		tradeClient: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
		}),
		mdClient: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.SecretKey,
		}),
	}, nil
}

// Name returns the adapter identifier.
func (a *Adapter) Name() string { return "alpaca" }

// GetPortfolio returns the live account state.
func (a *Adapter) GetPortfolio(ctx context.Context) (*core.Portfolio, error) {
	acct, err := a.tradeClient.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("alpaca: fetching account: %w", err)
	}
	return &core.Portfolio{
		TotalCapital:  toFloat(acct.Equity),
		Cash:          toFloat(acct.Cash),
		RiskTolerance: "moderate",
	}, nil
}

// GetPositions returns the current holdings mapped to decision-engine shape.
func (a *Adapter) GetPositions(ctx context.Context) ([]core.Position, error) {
	alpacaPositions, err := a.tradeClient.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("alpaca: fetching positions: %w", err)
	}

	positions := make([]core.Position, 0, len(alpacaPositions))
	for _, p := range alpacaPositions {
		pos := core.Position{
			Symbol:     p.Symbol,
			Sector:     "EQUITY",
			EntryPrice: toFloat(p.AvgEntryPrice),
		}
		if p.CurrentPrice != nil {
			pos.CurrentPrice = toFloat(*p.CurrentPrice)
		}
		pos.CapitalAllocated = toFloat(p.CostBasis)
		positions = append(positions, pos)
	}
	return positions, nil
}

// GetRecentCandles returns up to limit most-recent candles for a symbol.
func (a *Adapter) GetRecentCandles(ctx context.Context, symbol string, limit int, timeframe string) ([]core.Candle, error) {
	bars, err := a.mdClient.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: toTimeFrame(timeframe),
		Start:     time.Now().AddDate(0, 0, -5),
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca: fetching bars for %s: %w", symbol, err)
	}

	if limit > 0 && len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}

	candles := make([]core.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, core.Candle{
			Timestamp: b.Timestamp,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
		})
	}
	return candles, nil
}

// GetHeadlines returns recent market news.
func (a *Adapter) GetHeadlines(ctx context.Context) ([]core.Headline, error) {
	news, err := a.mdClient.GetNews(marketdata.GetNewsRequest{
		TotalLimit: 20,
	})
	if err != nil {
		return nil, fmt.Errorf("alpaca: fetching news: %w", err)
	}

	headlines := make([]core.Headline, 0, len(news))
	for _, n := range news {
		headlines = append(headlines, core.Headline{
			Title:     n.Headline,
			Source:    n.Source,
			Symbols:   n.Symbols,
			CreatedAt: n.CreatedAt,
		})
	}
	return headlines, nil
}

// GetSectorHeatmap derives a neutral heatmap from current holdings. Alpaca
// has no sector-strength endpoint; held sectors get a mild overweight.
func (a *Adapter) GetSectorHeatmap(ctx context.Context) (map[string]int, error) {
	positions, err := a.GetPositions(ctx)
	if err != nil {
		return nil, err
	}

	heatmap := map[string]int{"EQUITY": 50, "TECH": 50, "INDEX": 50}
	for _, p := range positions {
		heatmap[p.Sector] = 55
	}
	return heatmap, nil
}

// GetCandidates returns an empty list: Alpaca exposes no candidate scanner.
// The router substitutes its flagged synthetic placeholder pair.
func (a *Adapter) GetCandidates(ctx context.Context) ([]core.Candidate, error) {
	return []core.Candidate{}, nil
}

// ClockService implements marketstatus.ClockService over the Alpaca trading
// API. It is constructed independently of the data adapter so the status
// resolver works even when the adapter fails.
type ClockService struct {
	client *alpaca.Client
}

// NewClockService creates the authoritative clock client, or nil when no
// credentials are configured (the resolver then skips straight to the local
// strategy).
func NewClockService(cfg config.AlpacaConfig) *ClockService {
	if !cfg.HasCredentials() {
		return nil
	}
	return &ClockService{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.APIKey,
			APISecret: cfg.SecretKey,
			BaseURL:   cfg.BaseURL,
		}),
	}
}

// GetClock fetches the exchange clock.
func (c *ClockService) GetClock(ctx context.Context) (*marketstatus.Clock, error) {
	clock, err := c.client.GetClock()
	if err != nil {
		return nil, fmt.Errorf("alpaca: fetching clock: %w", err)
	}
	return &marketstatus.Clock{
		Timestamp: clock.Timestamp,
		IsOpen:    clock.IsOpen,
		NextOpen:  clock.NextOpen,
		NextClose: clock.NextClose,
	}, nil
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func toTimeFrame(timeframe string) marketdata.TimeFrame {
	switch timeframe {
	case "1Min":
		return marketdata.OneMin
	case "1H", "1Hour":
		return marketdata.OneHour
	default:
		return marketdata.OneDay
	}
}
