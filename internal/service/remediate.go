package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

// RefundSubmitter is the refund slice of the gateway client, used only for
// human-approved refunds of open candidates.
type RefundSubmitter interface {
	RefundTransaction(ctx context.Context, input zalopay.RefundInput) (*zalopay.RefundResult, error)
}

// RemediationOptions tune a remediation run.
type RemediationOptions struct {
	// DryRun performs every read and gateway query but skips all writes.
	DryRun bool
	// OlderThan bounds the pending-order age filter (default 1h).
	OlderThan time.Duration
	// SubmitRefunds submits refunds for already-flagged candidates. This is
	// the explicit human approval step; a normal run only flags.
	SubmitRefunds bool
	Limit         int
}

// OrderReview is the per-order before/after line in the report.
type OrderReview struct {
	OrderNumber string
	AppTransID  string
	Before      string
	After       string
	Queried     bool
	Note        string
}

// RemediationReport summarizes a run. Unresolved counts orders where the
// gateway confirms a charge the local store still refuses to mark paid.
type RemediationReport struct {
	Scanned    int
	Repaired   int
	Unresolved int
	Refunded   int
	Reviews    []OrderReview
}

// RemediationService is the batch job repairing orders whose local state
// contradicts gateway evidence.
type RemediationService interface {
	Run(ctx context.Context, opts RemediationOptions) (*RemediationReport, error)
	OpenCandidates(ctx context.Context) ([]*repository.RemediationCandidate, error)
}

type remediationService struct {
	orders     repository.OrderRepository
	candidates repository.RemediationCandidateRepository
	gateway    GatewayQuerier
	refunder   RefundSubmitter
	reconcile  ReconcileService
	logger     *slog.Logger
	now        func() time.Time
}

// NewRemediationService constructs the remediator.
func NewRemediationService(
	orders repository.OrderRepository,
	candidates repository.RemediationCandidateRepository,
	gateway GatewayQuerier,
	refunder RefundSubmitter,
	reconcile ReconcileService,
	logger *slog.Logger,
) RemediationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &remediationService{
		orders:     orders,
		candidates: candidates,
		gateway:    gateway,
		refunder:   refunder,
		reconcile:  reconcile,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *remediationService) Run(ctx context.Context, opts RemediationOptions) (*RemediationReport, error) {
	olderThan := opts.OlderThan
	if olderThan <= 0 {
		olderThan = time.Hour
	}

	targets, err := s.orders.ListRemediationTargets(ctx, repository.RemediationFilter{
		PaymentMethod:    repository.PaymentMethodZaloPay,
		PendingCreatedLT: s.now().Add(-olderThan).Unix(),
		Limit:            opts.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("list remediation targets: %w", err)
	}

	report := &RemediationReport{Scanned: len(targets)}
	for _, order := range targets {
		review := OrderReview{
			OrderNumber: order.OrderNumber,
			AppTransID:  order.AppTransID,
			Before:      order.PaymentStatus,
			After:       order.PaymentStatus,
		}
		if opts.DryRun {
			s.reviewDry(ctx, order, &review)
		} else {
			s.repair(ctx, order, &review, report)
		}
		report.Reviews = append(report.Reviews, review)
	}

	if opts.SubmitRefunds && !opts.DryRun {
		if err := s.refundCandidates(ctx, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

// reviewDry queries the gateway and reports what a real run would do, without
// touching the store.
func (s *remediationService) reviewDry(ctx context.Context, order *repository.Order, review *OrderReview) {
	status, err := s.gateway.QueryOrder(ctx, order.AppTransID)
	if err != nil {
		review.Note = fmt.Sprintf("query failed: %v", err)
		return
	}
	review.Queried = true
	switch {
	case status.Paid() && order.PaymentStatus != repository.PaymentStatusPaid:
		review.After = repository.PaymentStatusPaid
		review.Note = "would mark paid"
	case status.Code == zalopay.CodeFailure && order.PaymentStatus == repository.PaymentStatusPending:
		review.After = repository.PaymentStatusFailed
		review.Note = "would mark failed"
	default:
		review.Note = "no change"
	}
}

func (s *remediationService) repair(ctx context.Context, order *repository.Order, review *OrderReview, report *RemediationReport) {
	outcome, err := s.reconcile.Reconcile(ctx, order.AppTransID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			review.Note = "order vanished mid-run"
			return
		}
		review.Note = fmt.Sprintf("reconcile failed: %v", err)
		return
	}
	review.Queried = outcome.Queried

	after, err := s.orders.FindByAppTransID(ctx, order.AppTransID)
	if err != nil {
		review.Note = fmt.Sprintf("re-read failed: %v", err)
		return
	}
	review.After = after.PaymentStatus

	if after.PaymentStatus == repository.PaymentStatusPaid && order.PaymentStatus != repository.PaymentStatusPaid {
		report.Repaired++
		review.Note = "repaired"
		return
	}

	// The reconciler short-circuits settled orders, so for an order flagged by
	// a recorded gateway transaction the authoritative answer must be fetched
	// here.
	status := outcome.Status
	if status == nil && after.PaymentStatus != repository.PaymentStatusPaid {
		st, qerr := s.gateway.QueryOrder(ctx, order.AppTransID)
		if qerr != nil {
			review.Note = fmt.Sprintf("query failed: %v", qerr)
			return
		}
		status = &st
		review.Queried = true
	}

	// The gateway confirms a charge but the local store still cannot mark
	// paid: flag for human review. Auto-refunding here risks refunding a
	// legitimately-paid order because of a local bug.
	gatewayPaid := status != nil && status.Paid()
	if gatewayPaid && after.PaymentStatus != repository.PaymentStatusPaid {
		report.Unresolved++
		review.Note = "flagged for manual refund review"
		candidate := &repository.RemediationCandidate{
			AppTransID:  order.AppTransID,
			OrderNumber: order.OrderNumber,
			LocalStatus: after.PaymentStatus,
			Reason:      fmt.Sprintf("gateway confirms charge (trans_id=%s) but local state is %s", status.TransID, after.PaymentStatus),
			CreatedAt:   s.now().Unix(),
			UpdatedAt:   s.now().Unix(),
		}
		if status.TransID != "" {
			transID := status.TransID
			candidate.GatewayTransID = &transID
		}
		if err := s.candidates.Upsert(ctx, candidate); err != nil {
			s.logger.ErrorContext(ctx, "failed to record remediation candidate",
				"app_trans_id", order.AppTransID, "error", err)
		}
		return
	}

	if review.Note == "" {
		review.Note = outcome.Result.String()
	}
}

// refundCandidates submits refunds for the open worklist. Reached only via
// the explicit --refund flag, which is the recorded human approval.
func (s *remediationService) refundCandidates(ctx context.Context, report *RemediationReport) error {
	if s.refunder == nil {
		return fmt.Errorf("refund submitter not configured")
	}
	open, err := s.candidates.ListOpen(ctx)
	if err != nil {
		return fmt.Errorf("list candidates: %w", err)
	}
	for _, candidate := range open {
		if candidate.GatewayTransID == nil {
			continue
		}
		order, err := s.orders.FindByAppTransID(ctx, candidate.AppTransID)
		if err != nil {
			s.logger.WarnContext(ctx, "candidate order missing", "app_trans_id", candidate.AppTransID, "error", err)
			continue
		}
		result, err := s.refunder.RefundTransaction(ctx, zalopay.RefundInput{
			TransID:     *candidate.GatewayTransID,
			Amount:      order.Total,
			OrderTotal:  order.Total,
			Description: fmt.Sprintf("manual remediation refund for order %s", order.OrderNumber),
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "refund submission failed",
				"app_trans_id", candidate.AppTransID, "error", err)
			continue
		}
		report.Refunded++
		s.logger.InfoContext(ctx, "refund submitted",
			"app_trans_id", candidate.AppTransID, "refund_id", result.RefundID, "code", result.Code)
		if err := s.candidates.Resolve(ctx, candidate.AppTransID, s.now().Unix()); err != nil {
			s.logger.ErrorContext(ctx, "failed to resolve candidate",
				"app_trans_id", candidate.AppTransID, "error", err)
		}
	}
	return nil
}

func (s *remediationService) OpenCandidates(ctx context.Context) ([]*repository.RemediationCandidate, error) {
	return s.candidates.ListOpen(ctx)
}
