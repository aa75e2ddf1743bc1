// Package limits keeps the latest per-student limit snapshot fresh.
package limits

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/model"
)

// DefaultPollInterval is how often the snapshot is re-fetched without a trigger.
const DefaultPollInterval = 30 * time.Second

// Fetcher loads the current snapshot from the server.
type Fetcher interface {
	FetchLimits(ctx context.Context) (*model.LimitSnapshot, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (*model.LimitSnapshot, error)

// FetchLimits implements Fetcher.
func (f FetcherFunc) FetchLimits(ctx context.Context) (*model.LimitSnapshot, error) {
	return f(ctx)
}

// Refresher re-fetches the snapshot whenever something may have changed it.
// Triggers bump a counter instead of queueing, so a burst of triggers
// collapses into fetching the latest state. Each fetch is tagged with the
// counter value it started at, and a response older than the applied one is
// dropped.
type Refresher struct {
	fetcher Fetcher
	poll    time.Duration
	logger  *slog.Logger

	trigger atomic.Uint64
	wake    chan struct{}

	mu      sync.RWMutex
	snap    *model.LimitSnapshot
	applied uint64
	lastErr error
	notify  []func(*model.LimitSnapshot)

	wg sync.WaitGroup
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithPollInterval sets the periodic refresh interval. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(r *Refresher) { r.poll = d }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

// NewRefresher creates a refresher. Nothing is fetched until Run starts.
func NewRefresher(f Fetcher, opts ...Option) *Refresher {
	r := &Refresher{
		fetcher: f,
		poll:    DefaultPollInterval,
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Snapshot returns the latest successfully fetched snapshot, or nil when none
// has been fetched yet. Callers must treat nil as "not confirmed".
func (r *Refresher) Snapshot() *model.LimitSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snap
}

// Err returns the error of the most recent failed fetch, cleared on success.
func (r *Refresher) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

// OnUpdate registers fn to be called after a newer snapshot is applied.
func (r *Refresher) OnUpdate(fn func(*model.LimitSnapshot)) {
	r.mu.Lock()
	r.notify = append(r.notify, fn)
	r.mu.Unlock()
}

// Trigger requests a refresh. It never blocks.
func (r *Refresher) Trigger(reason string) {
	seq := r.trigger.Add(1)
	r.logger.Debug("limit refresh requested", "reason", reason, "seq", seq)
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Run fetches once, then on every trigger and poll tick until ctx is done.
// Fetches run concurrently; out-of-order responses are resolved by sequence.
func (r *Refresher) Run(ctx context.Context) {
	r.Trigger("start")

	var tick <-chan time.Time
	if r.poll > 0 {
		t := time.NewTicker(r.poll)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			r.wg.Wait()
			return
		case <-r.wake:
		case <-tick:
			r.trigger.Add(1)
		}
		seq := r.trigger.Load()
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.fetch(ctx, seq)
		}()
	}
}

// Watch triggers a refresh for every bus event that can change limits, until
// the channel closes or ctx is done.
func (r *Refresher) Watch(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if ev.AffectsLimits() {
				r.Trigger(ev.Name)
			}
		}
	}
}

// Refresh fetches synchronously and applies the result. It is used at
// startup and in tests.
func (r *Refresher) Refresh(ctx context.Context) error {
	seq := r.trigger.Add(1)
	return r.fetch(ctx, seq)
}

func (r *Refresher) fetch(ctx context.Context, seq uint64) error {
	snap, err := r.fetcher.FetchLimits(ctx)
	r.apply(seq, snap, err)
	return err
}

// apply stores a fetch result unless a newer one was already applied. Errors
// keep the last good snapshot.
func (r *Refresher) apply(seq uint64, snap *model.LimitSnapshot, err error) bool {
	r.mu.Lock()
	if seq <= r.applied {
		r.mu.Unlock()
		r.logger.Debug("discarding stale limit snapshot", "seq", seq)
		return false
	}
	if err != nil {
		r.lastErr = err
		r.mu.Unlock()
		r.logger.Warn("failed to refresh limits", "seq", seq, "error", err)
		return false
	}
	r.applied = seq
	r.snap = snap
	r.lastErr = nil
	notify := r.notify
	r.mu.Unlock()

	for _, fn := range notify {
		fn(snap)
	}
	return true
}
