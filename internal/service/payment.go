package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/notifier"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// ApplyResult classifies the outcome of an idempotent state update.
type ApplyResult int

const (
	// ApplyApplied means the observed state now holds locally, either because
	// this call wrote it or because an identical earlier delivery already did.
	ApplyApplied ApplyResult = iota
	// ApplyNoOp means there was nothing to do (unknown order, or a failure
	// observation against an already-failed order).
	ApplyNoOp
	// ApplyConflict means the local state machine refuses the transition.
	ApplyConflict
)

func (r ApplyResult) String() string {
	switch r {
	case ApplyApplied:
		return "applied"
	case ApplyNoOp:
		return "noop"
	case ApplyConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Observation is gateway evidence about a transaction, whether it arrived via
// callback or via a status query.
type Observation struct {
	TransID string
	Success bool
	Amount  int64
}

// PaymentService applies gateway evidence to the order store idempotently.
// Both the callback handler and the reconciler feed this single path.
type PaymentService interface {
	Apply(ctx context.Context, appTransID string, obs Observation) (ApplyResult, error)
}

type paymentService struct {
	orders   repository.OrderRepository
	notifier notifier.Service
	shopName string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPaymentService constructs the idempotent state updater. notifier is
// invoked only on a paid transition this call actually performed; its failure
// never rolls back the state.
func NewPaymentService(orders repository.OrderRepository, n notifier.Service, shopName string, logger *slog.Logger) PaymentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &paymentService{
		orders:   orders,
		notifier: n,
		shopName: shopName,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *paymentService) Apply(ctx context.Context, appTransID string, obs Observation) (ApplyResult, error) {
	// One re-read retry: if the conditional write misses, another caller won
	// the race; the second pass then lands in one of the idempotent branches.
	for attempt := 0; attempt < 2; attempt++ {
		order, err := s.orders.FindByAppTransID(ctx, appTransID)
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.WarnContext(ctx, "gateway referenced unknown order", "app_trans_id", appTransID)
			applyResults.WithLabelValues(ApplyNoOp.String()).Inc()
			return ApplyNoOp, nil
		}
		if err != nil {
			return ApplyNoOp, err
		}

		switch order.PaymentStatus {
		case repository.PaymentStatusPaid:
			if obs.Success {
				// Idempotent re-delivery: report success, skip side effects.
				applyResults.WithLabelValues(ApplyApplied.String()).Inc()
				return ApplyApplied, nil
			}
			s.logger.WarnContext(ctx, "failure observation against paid order refused",
				"app_trans_id", appTransID, "order_number", order.OrderNumber)
			applyResults.WithLabelValues(ApplyConflict.String()).Inc()
			return ApplyConflict, nil
		case repository.PaymentStatusFailed:
			if !obs.Success {
				applyResults.WithLabelValues(ApplyNoOp.String()).Inc()
				return ApplyNoOp, nil
			}
			s.logger.WarnContext(ctx, "success observation against failed order refused",
				"app_trans_id", appTransID, "order_number", order.OrderNumber)
			applyResults.WithLabelValues(ApplyConflict.String()).Inc()
			return ApplyConflict, nil
		case repository.PaymentStatusRefunded:
			// Refunds are terminal, never overwritten.
			s.logger.WarnContext(ctx, "observation against refunded order refused",
				"app_trans_id", appTransID, "order_number", order.OrderNumber, "success", obs.Success)
			applyResults.WithLabelValues(ApplyConflict.String()).Inc()
			return ApplyConflict, nil
		}

		toStatus := repository.PaymentStatusFailed
		if obs.Success {
			if obs.TransID == "" {
				// Invariant: a paid transition requires a gateway trans id.
				s.logger.ErrorContext(ctx, "success observation without transaction id refused",
					"app_trans_id", appTransID)
				applyResults.WithLabelValues(ApplyConflict.String()).Inc()
				return ApplyConflict, nil
			}
			toStatus = repository.PaymentStatusPaid
		}

		if obs.Amount > 0 && obs.Amount != order.Total {
			// The gateway is the authority on whether money moved; the local
			// amount is an alerting signal, not a gate.
			amountMismatches.Inc()
			s.logger.WarnContext(ctx, "observed amount disagrees with order total",
				"app_trans_id", appTransID, "order_number", order.OrderNumber,
				"observed", obs.Amount, "total", order.Total)
		}

		upd := repository.PaymentStatusUpdate{
			AppTransID:   appTransID,
			FromStatus:   order.PaymentStatus,
			ToStatus:     toStatus,
			AdvanceOrder: obs.Success,
			UpdatedAt:    s.now().Unix(),
		}
		if obs.TransID != "" {
			transID := obs.TransID
			upd.GatewayTransID = &transID
		}

		matched, err := s.orders.UpdatePaymentStatus(ctx, upd)
		if err != nil {
			return ApplyNoOp, fmt.Errorf("update payment status: %w", err)
		}
		if !matched {
			continue
		}

		if toStatus == repository.PaymentStatusPaid {
			s.notifyPaid(ctx, order)
		}
		applyResults.WithLabelValues(ApplyApplied.String()).Inc()
		return ApplyApplied, nil
	}

	applyResults.WithLabelValues(ApplyConflict.String()).Inc()
	return ApplyConflict, nil
}

// notifyPaid sends the confirmation email exactly for the transition this
// call performed. Delivery failures are logged, never propagated.
func (s *paymentService) notifyPaid(ctx context.Context, order *repository.Order) {
	if s.notifier == nil || order.CustomerEmail == "" {
		return
	}
	req := notifier.EmailRequest{
		To:       order.CustomerEmail,
		Subject:  fmt.Sprintf("%s: payment received for order %s", s.shopName, order.OrderNumber),
		Template: "payment_confirmed",
		Variables: map[string]any{
			"order_number": order.OrderNumber,
			"total":        order.Total,
		},
	}
	if err := s.notifier.SendEmail(ctx, req); err != nil && !errors.Is(err, notifier.ErrNotImplemented) {
		s.logger.WarnContext(ctx, "payment confirmation not delivered",
			"order_number", order.OrderNumber, "error", err)
	}
}
