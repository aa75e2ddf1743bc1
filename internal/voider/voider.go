// Package voider cancels orders whose receipt expired before the student
// claimed them.
package voider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/receipt"
	"github.com/erazemk/uniforme/internal/store"
)

// DefaultInterval is how often expired receipts are swept.
const DefaultInterval = time.Hour

// Voider periodically voids expired, unclaimed orders.
type Voider struct {
	db       *sql.DB
	pub      events.Publisher
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Voider.
type Option func(*Voider)

// WithInterval sets the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(v *Voider) { v.interval = d }
}

// WithClock replaces time.Now. The clock's location decides calendar days.
func WithClock(now func() time.Time) Option {
	return func(v *Voider) { v.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(v *Voider) { v.logger = l }
}

// New creates a Voider that publishes an order:updated event for every
// voided order.
func New(db *sql.DB, pub events.Publisher, opts ...Option) *Voider {
	v := &Voider{
		db:       db,
		pub:      pub,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run sweeps immediately and then every interval until ctx is done.
func (v *Voider) Run(ctx context.Context) {
	t := time.NewTicker(v.interval)
	defer t.Stop()

	for {
		if n, err := v.Sweep(ctx); err != nil {
			v.logger.Error("void sweep failed", "error", err)
		} else if n > 0 {
			v.logger.Info("void sweep finished", "voided", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Sweep voids every candidate order whose receipt is past its weekday
// window and returns how many were voided.
func (v *Voider) Sweep(ctx context.Context) (int, error) {
	settings, err := store.GetOrderSettings(ctx, v.db)
	if err != nil {
		return 0, err
	}
	candidates, err := store.ListVoidCandidates(ctx, v.db)
	if err != nil {
		return 0, err
	}

	now := v.now()
	voided := 0
	for _, o := range candidates {
		if o.QRIssuedAt == nil || !receipt.Expired(*o.QRIssuedAt, settings.QRValidDays, now) {
			continue
		}
		order, err := store.VoidOrder(ctx, v.db, o.ID, now)
		if errors.Is(err, store.ErrInvalidTransition) || errors.Is(err, store.ErrNotFound) {
			// Claimed or cancelled since the candidates were listed.
			v.logger.Info("skipping order changed during sweep", "order", o.OrderNumber, "error", err)
			continue
		}
		if err != nil {
			return voided, fmt.Errorf("voiding order %s: %w", o.OrderNumber, err)
		}
		voided++
		v.logger.Info("order voided", "order", order.OrderNumber, "student_id", order.StudentID)
		if v.pub != nil {
			v.pub.Publish(events.ForOrder(events.OrderUpdated, *order))
		}
	}
	return voided, nil
}
