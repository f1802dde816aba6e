// Package refresh runs the background pulls that keep an edge node's trust
// material and pricing current, and answers whether that material has gone
// stale.
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tollgate/pkg/platform/circuit"
)

// Func pulls fresh state from an upstream source.
type Func func(ctx context.Context) error

// Refresher periodically calls a Func behind a circuit breaker and remembers
// when it last succeeded.
type Refresher struct {
	name     string
	fn       Func
	interval time.Duration
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *Metrics
	clock    func() time.Time

	mu          sync.RWMutex
	lastSuccess time.Time
	lastErr     error
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Refresher) { r.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(r *Refresher) { r.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Refresher) { r.clock = clock }
}

// WithBreaker overrides the default breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Refresher) { r.breaker = b }
}

// New creates a Refresher. Interval must be positive for Run.
func New(name string, fn Func, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		name:     name,
		fn:       fn,
		interval: interval,
		logger:   slog.Default(),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.breaker == nil {
		r.breaker = circuit.New(name,
			circuit.WithFailureThreshold(3),
			circuit.WithCooldown(interval),
			circuit.WithClock(r.clock),
		)
	}
	return r
}

// Name identifies the source in logs and metrics.
func (r *Refresher) Name() string { return r.name }

// RefreshNow performs one pull unless the breaker is open and not yet due a
// probe. A skipped pull returns the last recorded error.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	if !r.breaker.Allow() {
		r.metrics.IncSkipped(r.name)
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.lastErr
	}

	start := r.clock()
	err := r.fn(ctx)
	r.metrics.ObserveDuration(r.name, r.clock().Sub(start))

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.lastErr = err
		_, change := r.breaker.RecordFailure()
		r.metrics.IncFailure(r.name)
		if change.Opened {
			r.logger.WarnContext(ctx, "refresh circuit opened", "source", r.name, "error", err)
		} else {
			r.logger.WarnContext(ctx, "refresh failed", "source", r.name, "error", err)
		}
		r.metrics.SetOpen(r.name, r.breaker.IsOpen())
		return err
	}

	r.lastErr = nil
	r.lastSuccess = r.clock()
	_, change := r.breaker.RecordSuccess()
	if change.Closed {
		r.logger.InfoContext(ctx, "refresh recovered", "source", r.name)
	}
	r.metrics.SetOpen(r.name, r.breaker.IsOpen())
	r.metrics.SetLastSuccess(r.name, r.lastSuccess)
	return nil
}

// Run refreshes on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = r.RefreshNow(ctx)
		}
	}
}

// LastSuccess returns the time of the last successful pull.
func (r *Refresher) LastSuccess() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSuccess
}

// Reachable reports whether the most recent pull succeeded.
func (r *Refresher) Reachable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr == nil && !r.lastSuccess.IsZero()
}

// Stale reports whether the source is unreachable and its last success is
// older than grace.
func (r *Refresher) Stale(now time.Time, grace time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lastErr == nil && !r.lastSuccess.IsZero() {
		return false
	}
	return now.Sub(r.lastSuccess) > grace
}

// Group reports staleness across several sources. The node is degraded when
// any of them is stale.
type Group []*Refresher

// Stale implements the engine's health port.
func (g Group) Stale(now time.Time, grace time.Duration) bool {
	for _, r := range g {
		if r.Stale(now, grace) {
			return true
		}
	}
	return false
}

// Run starts every refresher and blocks until ctx is done.
func (g Group) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, r := range g {
		wg.Add(1)
		go func(r *Refresher) {
			defer wg.Done()
			_ = r.Run(ctx)
		}(r)
	}
	wg.Wait()
	return nil
}
