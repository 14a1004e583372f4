package marketstatus

import (
	"context"
	"fmt"
	"time"

	"github.com/oakline/compass/internal/config"
	"github.com/oakline/compass/internal/core"
)

// Clock is the authoritative open/closed verdict from the broker.
type Clock struct {
	Timestamp time.Time
	IsOpen    bool
	NextOpen  time.Time
	NextClose time.Time
}

// ClockService fetches the authoritative exchange clock.
type ClockService interface {
	GetClock(ctx context.Context) (*Clock, error)
}

// BrokerClockStrategy queries the broker's exchange clock. Its verdict is
// authoritative and taken verbatim.
type BrokerClockStrategy struct {
	clock ClockService
	now   func() time.Time
}

// NewBrokerClockStrategy creates the authoritative clock strategy.
func NewBrokerClockStrategy(clock ClockService) *BrokerClockStrategy {
	return &BrokerClockStrategy{clock: clock, now: time.Now}
}

// Name identifies the strategy in logs.
func (s *BrokerClockStrategy) Name() string { return "broker_clock" }

// Resolve queries the clock. Any failure (network, auth, parse) is returned
// so the resolver falls through to local calculation.
func (s *BrokerClockStrategy) Resolve(ctx context.Context) (core.MarketStatus, error) {
	if s.clock == nil {
		return core.MarketStatus{}, fmt.Errorf("no clock service configured")
	}

	clock, err := s.clock.GetClock(ctx)
	if err != nil {
		return core.MarketStatus{}, fmt.Errorf("fetching exchange clock: %w", err)
	}

	status := core.MarketStatus{
		State:     core.MarketClosed,
		Reason:    "Market is Closed (Exchange Clock)",
		Timestamp: s.now().UTC(),
	}
	if clock.IsOpen {
		status.State = core.MarketOpen
		status.Reason = "Market is Open"
	}
	return status, nil
}

// LocalStrategy classifies the market state from the exchange's local wall
// clock. It never fails: missing timezone data degrades to a fixed UTC
// offset instead of erroring.
type LocalStrategy struct {
	cfg config.MarketConfig
	now func() time.Time
}

// NewLocalStrategy creates the local-time fallback strategy.
func NewLocalStrategy(cfg config.MarketConfig) *LocalStrategy {
	return &LocalStrategy{cfg: cfg, now: time.Now}
}

// NewLocalStrategyAt is like NewLocalStrategy with an injectable time source.
func NewLocalStrategyAt(cfg config.MarketConfig, now func() time.Time) *LocalStrategy {
	return &LocalStrategy{cfg: cfg, now: now}
}

// Name identifies the strategy in logs.
func (s *LocalStrategy) Name() string { return "local_clock" }

// Resolve classifies the current exchange-local time. The error return is
// always nil; it exists to satisfy the Strategy interface.
func (s *LocalStrategy) Resolve(ctx context.Context) (core.MarketStatus, error) {
	nowUTC := s.now().UTC()
	local := nowUTC.In(s.location())

	status := core.MarketStatus{Timestamp: nowUTC}

	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		status.State = core.MarketClosed
		status.Reason = "Weekend"
		return status, nil
	}

	minuteOfDay := local.Hour()*60 + local.Minute()
	openMinute := s.cfg.OpenHour*60 + s.cfg.OpenMinute
	closeMinute := s.cfg.CloseHour*60 + s.cfg.CloseMinute

	switch {
	case minuteOfDay < openMinute:
		status.State = core.MarketClosed
		status.Reason = "Pre-market"
	case minuteOfDay > closeMinute:
		status.State = core.MarketClosed
		status.Reason = "After hours"
	default:
		status.State = core.MarketOpen
		status.Reason = "Market Open (Local Time)"
	}
	return status, nil
}

// location loads the exchange timezone, degrading to the configured fixed
// UTC offset when timezone data is unavailable.
func (s *LocalStrategy) location() *time.Location {
	if loc, err := time.LoadLocation(s.cfg.Timezone); err == nil {
		return loc
	}
	return time.FixedZone("exchange-approx", s.cfg.FallbackUTCOffsetHours*3600)
}
