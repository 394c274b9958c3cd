package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

func newPaymentUnderTest(repo *fakeOrderRepo) (PaymentService, *fakeNotifier) {
	n := &fakeNotifier{}
	return NewPaymentService(repo, n, "Khoahoc", nil), n
}

func TestApplySuccessMarksPaid(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	svc, notif := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{
		TransID: "240314000001234",
		Success: true,
		Amount:  150000,
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyApplied, result)

	order, err := repo.FindByAppTransID(context.Background(), "260314DH0042")
	require.NoError(t, err)
	assert.Equal(t, repository.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, repository.OrderStatusProcessing, order.OrderStatus)
	require.NotNil(t, order.GatewayTransID)
	assert.Equal(t, "240314000001234", *order.GatewayTransID)
	assert.Equal(t, 1, notif.sentCount())
}

func TestApplyDuplicateSuccessIsIdempotent(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	svc, notif := newPaymentUnderTest(repo)

	obs := Observation{TransID: "240314000001234", Success: true, Amount: 150000}

	first, err := svc.Apply(context.Background(), "260314DH0042", obs)
	require.NoError(t, err)
	second, err := svc.Apply(context.Background(), "260314DH0042", obs)
	require.NoError(t, err)

	assert.Equal(t, ApplyApplied, first)
	assert.Equal(t, ApplyApplied, second, "redelivery reports success")
	assert.Equal(t, 1, repo.updateCalls, "redelivery must not write")
	assert.Equal(t, 1, notif.sentCount(), "redelivery must not notify again")
}

func TestApplyFailureAfterPaidRefused(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	svc, _ := newPaymentUnderTest(repo)

	_, err := svc.Apply(context.Background(), "260314DH0042", Observation{TransID: "99", Success: true})
	require.NoError(t, err)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{Success: false})
	require.NoError(t, err)
	assert.Equal(t, ApplyConflict, result)

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPaid, order.PaymentStatus, "paid state must survive a late failure report")
}

func TestApplySuccessAfterFailedRefused(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	repo.setStatus("260314DH0042", repository.PaymentStatusFailed)
	svc, notif := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{TransID: "99", Success: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyConflict, result)
	assert.Zero(t, notif.sentCount())
}

func TestApplyRepeatedFailureNoOp(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	repo.setStatus("260314DH0042", repository.PaymentStatusFailed)
	svc, _ := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{Success: false})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, result)
}

func TestApplyRefundedIsTerminal(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	repo.setStatus("260314DH0042", repository.PaymentStatusRefunded)
	svc, _ := newPaymentUnderTest(repo)

	for _, success := range []bool{true, false} {
		result, err := svc.Apply(context.Background(), "260314DH0042", Observation{TransID: "99", Success: success})
		require.NoError(t, err)
		assert.Equal(t, ApplyConflict, result, "success=%v", success)
	}
}

func TestApplyUnknownOrderNoOp(t *testing.T) {
	repo := newFakeOrderRepo()
	svc, _ := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314NOPE", Observation{TransID: "99", Success: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyNoOp, result)
	assert.Zero(t, repo.updateCalls)
}

func TestApplySuccessWithoutTransIDRefused(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	svc, _ := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{Success: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyConflict, result)

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPending, order.PaymentStatus)
}

func TestApplyAmountMismatchStillApplies(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	svc, _ := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{
		TransID: "99",
		Success: true,
		Amount:  149000,
	})
	require.NoError(t, err)
	assert.Equal(t, ApplyApplied, result, "the gateway owns the money answer; mismatch only alerts")

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPaid, order.PaymentStatus)
}

func TestApplyLosingRaceConvergesIdempotently(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	// A concurrent success delivery lands between this call's read and write.
	repo.beforeUpdate = func(f *fakeOrderRepo) {
		for _, o := range f.orders {
			if o.AppTransID == "260314DH0042" {
				o.PaymentStatus = repository.PaymentStatusPaid
			}
		}
	}
	svc, notif := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{TransID: "99", Success: true})
	require.NoError(t, err)
	assert.Equal(t, ApplyApplied, result, "the re-read lands on the idempotent paid branch")
	assert.Zero(t, notif.sentCount(), "the racing winner owns the notification")
}

func TestApplyLosingRaceWithConflictingObservation(t *testing.T) {
	repo := newFakeOrderRepo()
	repo.add(pendingOrder("DH-0042", "260314DH0042", 150000))
	repo.beforeUpdate = func(f *fakeOrderRepo) {
		for _, o := range f.orders {
			if o.AppTransID == "260314DH0042" {
				o.PaymentStatus = repository.PaymentStatusPaid
			}
		}
	}
	svc, _ := newPaymentUnderTest(repo)

	result, err := svc.Apply(context.Background(), "260314DH0042", Observation{Success: false})
	require.NoError(t, err)
	assert.Equal(t, ApplyConflict, result)

	order, _ := repo.FindByAppTransID(context.Background(), "260314DH0042")
	assert.Equal(t, repository.PaymentStatusPaid, order.PaymentStatus)
}
