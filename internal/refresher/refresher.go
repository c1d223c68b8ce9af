// Package refresher drives periodic version aggregation into the cache.
package refresher

import (
	"context"
	"log/slog"
	"time"

	"github.com/clemenko/dzver/internal/aggregator"
	"github.com/clemenko/dzver/internal/cache"
	"github.com/clemenko/dzver/internal/fetcher"
	"github.com/clemenko/dzver/internal/telemetry"
)

// Refresher runs the aggregator on a fixed interval and publishes each
// completed snapshot into the store. The interval is measured from the end
// of one cycle to the start of the next, so cycle duration adds to the
// effective period. The refresher owns all writes to the store.
type Refresher struct {
	aggregator *aggregator.Aggregator
	store      *cache.Store
	interval   time.Duration
	metrics    *telemetry.RefreshMetrics

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option configures a Refresher
type Option func(*Refresher)

// WithMetrics sets the refresh metrics. A nil metrics value is a no-op.
func WithMetrics(m *telemetry.RefreshMetrics) Option {
	return func(r *Refresher) {
		r.metrics = m
	}
}

// New creates a refresher publishing into store every interval.
func New(agg *aggregator.Aggregator, store *cache.Store, interval time.Duration, opts ...Option) *Refresher {
	r := &Refresher{
		aggregator: agg,
		store:      store,
		interval:   interval,
		done:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// RefreshOnce runs a single aggregation cycle and, on success, atomically
// replaces the store's snapshot. On a cycle-level failure the store is left
// untouched and the error is returned. Per-source failures are already
// absorbed into sentinel values and do not fail the cycle.
func (r *Refresher) RefreshOnce(ctx context.Context) error {
	start := time.Now()
	slog.Info("Refreshing version cache")

	snapshot, err := r.aggregator.Aggregate(ctx)
	if err != nil {
		r.metrics.RecordCycle(ctx, time.Since(start), false, 0)
		return err
	}

	r.store.Replace(snapshot)

	degraded := countDegraded(snapshot)
	r.metrics.RecordCycle(ctx, time.Since(start), true, degraded)
	slog.Info("Version cache updated",
		"sources", len(snapshot),
		"degraded", degraded,
		"duration", time.Since(start).Round(time.Millisecond))
	return nil
}

// Start runs the refresh loop until the context is cancelled or Stop is
// called. The first cycle starts immediately; each subsequent cycle starts
// one interval after the previous one finished. Cycle failures are logged
// and the loop continues. Blocks for the life of the loop.
func (r *Refresher) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel
	defer func() {
		close(r.done)
		slog.Info("Refresh loop shut down")
	}()

	slog.Info("Starting refresh loop", "interval", r.interval)

	r.refresh(runCtx)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			r.refresh(runCtx)
			timer.Reset(r.interval)
		case <-runCtx.Done():
			slog.Info("Refresh loop stopping")
			return nil
		}
	}
}

// Stop cancels the refresh loop and waits for it to finish. A cycle already
// in flight runs to completion.
func (r *Refresher) Stop() error {
	if r.cancelFunc != nil {
		slog.Info("Stopping refresh loop")
		r.cancelFunc()
		<-r.done
	}
	return nil
}

func (r *Refresher) refresh(ctx context.Context) {
	if err := r.RefreshOnce(ctx); err != nil {
		slog.Error("Error refreshing version cache", "error", err)
	}
}

func countDegraded(snapshot cache.Snapshot) int64 {
	var n int64
	for _, v := range snapshot {
		if fetcher.IsSentinel(v) {
			n++
		}
	}
	return n
}
