// Package marketstatus determines whether the target exchange is open.
//
// Resolution runs an ordered list of strategies; the first success wins and
// the chain as a whole never fails. The authoritative broker clock is tried
// first when credentials exist, then a local exchange-time calculation that
// always produces a verdict.
package marketstatus

import (
	"context"
	"sync"
	"time"

	"github.com/oakline/compass/internal/core"
	"go.uber.org/zap"
)

// Strategy resolves the market status from one source. A strategy may fail;
// the resolver moves on to the next one.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string
	// Resolve returns the market status or an error.
	Resolve(ctx context.Context) (core.MarketStatus, error)
}

// Resolver memoizes the resolved status for a staleness window so all routing
// decisions within that window are consistent.
type Resolver struct {
	strategies []Strategy
	staleness  time.Duration
	logger     *zap.Logger
	now        func() time.Time

	mu         sync.Mutex
	cached     *core.MarketStatus
	resolvedAt time.Time
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithStaleness overrides the memoization window.
func WithStaleness(d time.Duration) Option {
	return func(r *Resolver) { r.staleness = d }
}

// NewResolver creates a resolver over the given strategy chain. The chain
// must end with a strategy that cannot fail; NewLocalStrategy satisfies that.
func NewResolver(strategies []Strategy, logger *zap.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Resolver{
		strategies: strategies,
		staleness:  60 * time.Second,
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the current market status. It never fails: any strategy
// error degrades to the next strategy, and the final local strategy always
// produces a verdict. Results are memoized for the staleness window.
func (r *Resolver) Resolve(ctx context.Context) core.MarketStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != nil && r.now().Sub(r.resolvedAt) < r.staleness {
		return *r.cached
	}

	status := r.resolveLocked(ctx)
	r.cached = &status
	r.resolvedAt = r.now()
	return status
}

func (r *Resolver) resolveLocked(ctx context.Context) core.MarketStatus {
	for _, s := range r.strategies {
		status, err := s.Resolve(ctx)
		if err != nil {
			r.logger.Warn("market status strategy failed, trying next",
				zap.String("strategy", s.Name()),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("market status resolved",
			zap.String("strategy", s.Name()),
			zap.String("status", string(status.State)),
			zap.String("reason", status.Reason),
		)
		return status
	}

	// Unreachable with a well-formed chain; fail safe to CLOSED.
	return core.MarketStatus{
		State:     core.MarketClosed,
		Reason:    "Status unresolved (fail-safe)",
		Timestamp: r.now().UTC(),
	}
}

// Reset clears the memoized status, forcing re-resolution on next call.
func (r *Resolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cached = nil
}

// Age returns how old the memoized status is, and false if none is cached.
func (r *Resolver) Age() (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached == nil {
		return 0, false
	}
	return r.now().Sub(r.resolvedAt), true
}
