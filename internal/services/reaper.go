package services

import (
	"context"
	"log/slog"
	"time"

	"ticket-shop/internal/store"
	"ticket-shop/models"
)

// Reaper fails pending purchases that were never paid and frees their holds.
// Purchases with a verified payment are left for an operator.
type Reaper struct {
	store    store.Store
	holds    SeatHolds
	ttl      time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewReaper(st store.Store, holds SeatHolds, ttl, interval time.Duration) *Reaper {
	if holds == nil {
		holds = NopHolds{}
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reaper{store: st, holds: holds, ttl: ttl, interval: interval, now: time.Now}
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("Pending purchase reaper started", "interval", r.interval, "ttl", r.ttl)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Pending purchase sweep failed", "error", err)
		}

		select {
		case <-ctx.Done():
			slog.Info("Pending purchase reaper stopped")
			return
		case <-ticker.C:
		}
	}
}

// Sweep expires stale pending purchases and reports how many it failed.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	now := r.now()
	stale, err := r.store.ListStalePending(ctx, now.Add(-r.ttl))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, p := range stale {
		if p.PaymentVerified {
			continue
		}
		changed, err := r.store.TransitionPurchase(ctx, p.ID, models.PurchasePending, models.PurchaseFailed, models.FailureExpired, now)
		if err != nil {
			slog.Error("Failed to expire purchase", "error", err, "reference", p.Reference)
			continue
		}
		if !changed {
			continue
		}
		expired++
		if err := r.holds.Release(ctx, p.Reference, p.Items); err != nil {
			slog.Warn("Failed to release seat holds", "error", err, "reference", p.Reference)
		}
	}
	if expired > 0 {
		slog.Info("Expired stale pending purchases", "count", expired)
	}
	return expired, nil
}
