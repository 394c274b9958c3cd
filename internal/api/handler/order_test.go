package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
)

type fakeReconciler struct {
	mu      sync.Mutex
	calls   []string
	outcome service.ReconcileOutcome
	err     error
	// onReconcile lets a test mutate the store the way a real repair would.
	onReconcile func()
}

func (f *fakeReconciler) Reconcile(ctx context.Context, appTransID string) (service.ReconcileOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, appTransID)
	if f.onReconcile != nil {
		f.onReconcile()
	}
	return f.outcome, f.err
}

type fakeCheckout struct {
	attempt *service.PaymentAttempt
	err     error
}

func (f *fakeCheckout) StartPayment(ctx context.Context, orderNumber string) (*service.PaymentAttempt, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.attempt, nil
}

func orderRouter(h *OrderHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/orders/{orderNumber}/payment/zalopay", h.StartPayment)
	r.Get("/orders/{orderNumber}/payment", h.PaymentStatus)
	return r
}

func TestPaymentStatusReconcilesPendingOrder(t *testing.T) {
	order := &repository.Order{
		OrderNumber:   "DH-0042",
		Total:         150000,
		PaymentStatus: repository.PaymentStatusPending,
		OrderStatus:   repository.OrderStatusPending,
		AppTransID:    "260314DH0042",
	}
	orders := &fakeOrders{
		byNumber:     map[string]*repository.Order{"DH-0042": order},
		byAppTransID: map[string]*repository.Order{"260314DH0042": order},
	}
	reconciler := &fakeReconciler{
		outcome: service.ReconcileOutcome{Result: service.ApplyApplied},
		onReconcile: func() {
			order.PaymentStatus = repository.PaymentStatusPaid
			order.OrderStatus = repository.OrderStatusProcessing
		},
	}
	h := NewOrderHandler(orders, &fakeCheckout{}, reconciler, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/DH-0042/payment", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"260314DH0042"}, reconciler.calls)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, repository.PaymentStatusPaid, resp["payment_status"], "the poll reports the just-settled state")
}

func TestPaymentStatusSettledOrderSkipsReconcile(t *testing.T) {
	order := &repository.Order{
		OrderNumber:   "DH-0042",
		PaymentStatus: repository.PaymentStatusPaid,
		OrderStatus:   repository.OrderStatusProcessing,
		AppTransID:    "260314DH0042",
	}
	orders := &fakeOrders{byNumber: map[string]*repository.Order{"DH-0042": order}}
	reconciler := &fakeReconciler{}
	h := NewOrderHandler(orders, &fakeCheckout{}, reconciler, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/DH-0042/payment", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, reconciler.calls)
}

func TestPaymentStatusUnknownOrder(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, &fakeCheckout{}, &fakeReconciler{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/orders/DH-404/payment", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartPaymentEndpoint(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, &fakeCheckout{attempt: &service.PaymentAttempt{
		AppTransID: "260314DH0042",
		OrderURL:   "https://gateway.example.com/pay/abc",
	}}, &fakeReconciler{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/DH-0042/payment/zalopay", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "260314DH0042", resp["app_trans_id"])
	assert.Equal(t, "https://gateway.example.com/pay/abc", resp["order_url"])
}

func TestStartPaymentEndpointConflicts(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, &fakeCheckout{err: service.ErrAlreadySettled}, &fakeReconciler{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/DH-0042/payment/zalopay", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestStartPaymentEndpointUnknownOrder(t *testing.T) {
	h := NewOrderHandler(&fakeOrders{}, &fakeCheckout{err: repository.ErrNotFound}, &fakeReconciler{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/orders/DH-404/payment/zalopay", nil)
	rec := httptest.NewRecorder()
	orderRouter(h).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
