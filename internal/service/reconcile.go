package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/cache"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// GatewayQuerier is the read-only slice of the gateway client the reconciler
// needs.
type GatewayQuerier interface {
	QueryOrder(ctx context.Context, appTransID string) (zalopay.Status, error)
}

// ReconcileOutcome reports what a reconciliation pass did.
type ReconcileOutcome struct {
	Result  ApplyResult
	Queried bool
	Status  *zalopay.Status
	Order   *repository.Order
}

// ReconcileService resolves local state against the gateway's authoritative
// answer when the callback is late or missing.
type ReconcileService interface {
	Reconcile(ctx context.Context, appTransID string) (ReconcileOutcome, error)
}

type reconcileService struct {
	orders   repository.OrderRepository
	gateway  GatewayQuerier
	apply    PaymentService
	cooldown cache.Store
	holdoff  time.Duration
	logger   *slog.Logger
}

// NewReconcileService constructs the reconciler. cooldown may be nil; when
// set, inconclusive gateway answers suppress re-queries for holdoff so a
// polling storefront cannot hammer the gateway.
func NewReconcileService(
	orders repository.OrderRepository,
	gateway GatewayQuerier,
	apply PaymentService,
	cooldown cache.Store,
	holdoff time.Duration,
	logger *slog.Logger,
) ReconcileService {
	if logger == nil {
		logger = slog.Default()
	}
	if holdoff <= 0 {
		holdoff = 15 * time.Second
	}
	return &reconcileService{
		orders:   orders,
		gateway:  gateway,
		apply:    apply,
		cooldown: cooldown,
		holdoff:  holdoff,
		logger:   logger,
	}
}

func (s *reconcileService) Reconcile(ctx context.Context, appTransID string) (ReconcileOutcome, error) {
	order, err := s.orders.FindByAppTransID(ctx, appTransID)
	if err != nil {
		return ReconcileOutcome{Result: ApplyNoOp}, err
	}

	// Short-circuit on settled orders: no gateway call, idempotent under
	// repeated polling.
	if order.PaymentStatus == repository.PaymentStatusPaid ||
		order.PaymentStatus == repository.PaymentStatusFailed {
		return ReconcileOutcome{Result: ApplyNoOp, Order: order}, nil
	}

	if s.cooldown != nil {
		if _, held := s.cooldown.Get(ctx, appTransID); held {
			return ReconcileOutcome{Result: ApplyNoOp, Order: order}, nil
		}
	}

	status, err := s.queryWithRetry(ctx, appTransID)
	if err != nil {
		return ReconcileOutcome{Result: ApplyNoOp, Queried: true, Order: order}, err
	}

	if !status.Final() {
		// Still pending at the gateway; leave the order alone and let the
		// next sweep pick it up.
		if s.cooldown != nil {
			_ = s.cooldown.Set(ctx, appTransID, struct{}{}, s.holdoff)
		}
		return ReconcileOutcome{Result: ApplyNoOp, Queried: true, Status: &status, Order: order}, nil
	}

	obs := Observation{
		TransID: status.TransID,
		Success: status.Paid(),
		Amount:  status.Amount,
	}
	result, err := s.apply.Apply(ctx, appTransID, obs)
	return ReconcileOutcome{Result: result, Queried: true, Status: &status, Order: order}, err
}

// queryWithRetry retries network failures only; business answers and context
// cancellation pass straight through. Retry lives here rather than in the
// client because query is the one operation safe to repeat.
func (s *reconcileService) queryWithRetry(ctx context.Context, appTransID string) (zalopay.Status, error) {
	var status zalopay.Status
	op := func() error {
		reconcileQueries.Inc()
		st, err := s.gateway.QueryOrder(ctx, appTransID)
		if err != nil {
			if errors.Is(err, zalopay.ErrNetwork) {
				return err
			}
			return backoff.Permanent(err)
		}
		status = st
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 0

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, 3), ctx))
	return status, err
}
