package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

func newRemediationUnderTest(repo *fakeOrderRepo, candidates *fakeCandidateRepo, gw *fakeGateway, refunder RefundSubmitter) RemediationService {
	reconcile := newReconcileUnderTest(repo, gw, nil, 0)
	return NewRemediationService(repo, candidates, gw, refunder, reconcile, nil)
}

func staleOrder(number, appTransID string, total int64) *repository.Order {
	o := pendingOrder(number, appTransID, total)
	o.CreatedAt = time.Now().Add(-3 * time.Hour).Unix()
	return o
}

func TestRemediationDryRunWritesNothing(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(staleOrder("DH-0042", "260314DH0042", 150000))
	candidates := newFakeCandidateRepo()
	gw := newFakeGateway()
	gw.statuses["260314DH0042"] = zalopay.Status{Code: zalopay.CodeSuccess, TransID: "99", Amount: 150000}
	svc := newRemediationUnderTest(repo, candidates, gw, nil)

	report, err := svc.Run(context.Background(), RemediationOptions{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Scanned)
	assert.Zero(t, report.Repaired)
	assert.Zero(t, repo.updateCalls, "dry run must not touch the store")
	require.Len(t, report.Reviews, 1)
	assert.Equal(t, repository.PaymentStatusPending, report.Reviews[0].Before)
	assert.Equal(t, repository.PaymentStatusPaid, report.Reviews[0].After)
	assert.Equal(t, "would mark paid", report.Reviews[0].Note)

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPending, order.PaymentStatus)
}

func TestRemediationRepairsStalePending(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(staleOrder("DH-0042", "260314DH0042", 150000))
	candidates := newFakeCandidateRepo()
	gw := newFakeGateway()
	gw.statuses["260314DH0042"] = zalopay.Status{Code: zalopay.CodeSuccess, TransID: "99", Amount: 150000}
	svc := newRemediationUnderTest(repo, candidates, gw, nil)

	report, err := svc.Run(context.Background(), RemediationOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Repaired)
	assert.Zero(t, report.Unresolved)

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPaid, order.PaymentStatus)

	open, _ := candidates.ListOpen(context.Background())
	assert.Empty(t, open)
}

func TestRemediationFlagsUnrepairableOrders(t *testing.T) {
	repo := newFakeOrderRepo()
	order := staleOrder("DH-0042", "260314DH0042", 150000)
	repo.add(order)
	// The local machine already refused: a late failure landed first.
	repo.setStatus("260314DH0042", repository.PaymentStatusFailed)
	transID := "240314000001234"
	repo.mu.Lock()
	for _, o := range repo.orders {
		o.GatewayTransID = &transID
	}
	repo.mu.Unlock()

	candidates := newFakeCandidateRepo()
	gw := newFakeGateway()
	gw.statuses["260314DH0042"] = zalopay.Status{Code: zalopay.CodeSuccess, TransID: transID, Amount: 150000}
	svc := newRemediationUnderTest(repo, candidates, gw, nil)

	report, err := svc.Run(context.Background(), RemediationOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Unresolved)
	assert.Zero(t, report.Refunded, "refunds are never submitted without the explicit flag")

	open, _ := candidates.ListOpen(context.Background())
	require.Len(t, open, 1)
	assert.Equal(t, "260314DH0042", open[0].AppTransID)
	require.NotNil(t, open[0].GatewayTransID)
	assert.Equal(t, transID, *open[0].GatewayTransID)
}

func TestRemediationRefundsOnlyWithApproval(t *testing.T) {
	repo := newFakeOrderRepo()
	order := staleOrder("DH-0042", "260314DH0042", 150000)
	repo.add(order)
	repo.setStatus("260314DH0042", repository.PaymentStatusFailed)
	transID := "240314000001234"

	candidates := newFakeCandidateRepo()
	require.NoError(t, candidates.Upsert(context.Background(), &repository.RemediationCandidate{
		AppTransID:     "260314DH0042",
		OrderNumber:    "DH-0042",
		LocalStatus:    repository.PaymentStatusFailed,
		GatewayTransID: &transID,
		Reason:         "gateway confirms charge",
	}))

	gw := newFakeGateway()
	gw.statuses["260314DH0042"] = zalopay.Status{Code: zalopay.CodeSuccess, TransID: transID, Amount: 150000}
	refunder := &fakeRefunder{}
	svc := newRemediationUnderTest(repo, candidates, gw, refunder)

	report, err := svc.Run(context.Background(), RemediationOptions{SubmitRefunds: true, Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Refunded)
	require.Len(t, refunder.inputs, 1)
	assert.Equal(t, transID, refunder.inputs[0].TransID)
	assert.Equal(t, int64(150000), refunder.inputs[0].Amount)
	assert.Equal(t, int64(150000), refunder.inputs[0].OrderTotal)

	open, _ := candidates.ListOpen(context.Background())
	assert.Empty(t, open, "a submitted refund resolves the candidate")
}

func TestRemediationDryRunNeverRefunds(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(staleOrder("DH-0042", "260314DH0042", 150000))
	candidates := newFakeCandidateRepo()
	transID := "99"
	require.NoError(t, candidates.Upsert(context.Background(), &repository.RemediationCandidate{
		AppTransID:     "260314DH0042",
		GatewayTransID: &transID,
	}))
	gw := newFakeGateway()
	gw.statuses["260314DH0042"] = zalopay.Status{Code: zalopay.CodeProcessing}
	refunder := &fakeRefunder{}
	svc := newRemediationUnderTest(repo, candidates, gw, refunder)

	report, err := svc.Run(context.Background(), RemediationOptions{DryRun: true, SubmitRefunds: true})
	require.NoError(t, err)
	assert.Zero(t, report.Refunded)
	assert.Empty(t, refunder.inputs)
}
