package job

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
)

// ReconcileSweepJob periodically queries the gateway for pending orders whose
// callback never arrived and settles them from the authoritative answer.
type ReconcileSweepJob struct {
	Orders     repository.OrderRepository
	Reconciler service.ReconcileService
	// PendingAge is how long an order must sit pending before the sweep
	// touches it, giving the callback a fair head start.
	PendingAge time.Duration
	Limit      int
	Logger     *slog.Logger
	now        func() time.Time
}

// NewReconcileSweepJob constructs the sweep.
func NewReconcileSweepJob(orders repository.OrderRepository, reconciler service.ReconcileService, pendingAge time.Duration, logger *slog.Logger) *ReconcileSweepJob {
	if logger == nil {
		logger = slog.Default()
	}
	if pendingAge <= 0 {
		pendingAge = time.Hour
	}
	return &ReconcileSweepJob{
		Orders:     orders,
		Reconciler: reconciler,
		PendingAge: pendingAge,
		Limit:      200,
		Logger:     logger,
		now:        time.Now,
	}
}

// Name returns the task identifier.
func (j *ReconcileSweepJob) Name() string { return "payment.reconcile_sweep" }

// Run reconciles stale pending orders one by one. A single failing order does
// not abort the batch.
func (j *ReconcileSweepJob) Run(ctx context.Context) error {
	if j == nil || j.Orders == nil || j.Reconciler == nil {
		return fmt.Errorf("reconcile sweep dependencies not configured")
	}
	cutoff := j.now().Add(-j.PendingAge).Unix()
	orders, err := j.Orders.ListPendingOlderThan(ctx, repository.PaymentMethodZaloPay, cutoff, j.Limit)
	if err != nil {
		return fmt.Errorf("list pending orders: %w", err)
	}
	if len(orders) == 0 {
		return nil
	}

	var settled, failures int
	for _, order := range orders {
		if order.AppTransID == "" {
			continue
		}
		outcome, err := j.Reconciler.Reconcile(ctx, order.AppTransID)
		if err != nil {
			failures++
			j.Logger.WarnContext(ctx, "sweep reconcile failed",
				"order_number", order.OrderNumber, "app_trans_id", order.AppTransID, "error", err)
			continue
		}
		if outcome.Result == service.ApplyApplied {
			settled++
		}
	}
	j.Logger.InfoContext(ctx, "reconcile sweep finished",
		"scanned", len(orders), "settled", settled, "failures", failures)
	return nil
}
