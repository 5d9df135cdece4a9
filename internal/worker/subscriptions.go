// Package worker runs the background loop that posts due subscription
// charges through the ledger engine.
package worker

import (
	"context"
	"time"

	"github.com/finbook/finbook/internal/service"

	"go.uber.org/zap"
)

// SubscriptionWorker charges due subscriptions on a fixed interval.
type SubscriptionWorker struct {
	subs     *service.Subscriptions
	interval time.Duration
	limit    int
	logger   *zap.Logger
}

// NewSubscriptionWorker creates the worker. limit caps how many charges are
// posted per tick.
func NewSubscriptionWorker(subs *service.Subscriptions, interval time.Duration, limit int, logger *zap.Logger) *SubscriptionWorker {
	return &SubscriptionWorker{subs: subs, interval: interval, limit: limit, logger: logger}
}

// Run blocks until ctx is cancelled, charging due subscriptions every tick.
// It returns nil on cancellation so an errgroup treats shutdown as clean.
func (w *SubscriptionWorker) Run(ctx context.Context) error {
	w.logger.Info("subscription worker started",
		zap.Duration("interval", w.interval),
		zap.Int("batch_limit", w.limit),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("subscription worker stopping")
			return nil
		case now := <-ticker.C:
			w.tick(ctx, now.UTC())
		}
	}
}

func (w *SubscriptionWorker) tick(ctx context.Context, now time.Time) {
	posted, err := w.subs.ChargeDue(ctx, now, w.limit)
	if err != nil {
		w.logger.Error("subscription charge pass failed", zap.Error(err))
		return
	}
	if posted > 0 {
		w.logger.Info("subscription charges posted", zap.Int("count", posted))
	}
}
