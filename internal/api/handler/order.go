package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
)

// OrderHandler serves the storefront-facing order payment endpoints.
type OrderHandler struct {
	Orders     repository.OrderRepository
	Checkout   service.CheckoutService
	Reconciler service.ReconcileService
	Logger     *slog.Logger
}

// NewOrderHandler constructs the handler.
func NewOrderHandler(orders repository.OrderRepository, checkout service.CheckoutService, reconciler service.ReconcileService, logger *slog.Logger) *OrderHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderHandler{Orders: orders, Checkout: checkout, Reconciler: reconciler, Logger: logger}
}

// StartPayment begins a gateway payment attempt for an order and returns the
// URL the customer should be sent to.
func (h *OrderHandler) StartPayment(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	attempt, err := h.Checkout.StartPayment(r.Context(), orderNumber)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			respondError(w, http.StatusNotFound, "payment.start", errors.New("order not found"))
		case errors.Is(err, service.ErrWrongPaymentMethod), errors.Is(err, service.ErrAlreadySettled):
			respondError(w, http.StatusConflict, "payment.start", err)
		default:
			var rejected *zalopay.RejectedError
			if errors.As(err, &rejected) {
				respondError(w, http.StatusBadGateway, "payment.start", err)
				return
			}
			h.Logger.ErrorContext(r.Context(), "start payment failed", "order_number", orderNumber, "error", err)
			respondError(w, http.StatusInternalServerError, "payment.start", err)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"app_trans_id": attempt.AppTransID,
		"order_url":    attempt.OrderURL,
	})
}

// PaymentStatus reports an order's payment state. A pending order with an
// outstanding gateway attempt is reconciled on demand first, so a customer
// polling after checkout sees the settled state as soon as the gateway has
// one. The reconciler's cooldown keeps this from hammering the gateway.
func (h *OrderHandler) PaymentStatus(w http.ResponseWriter, r *http.Request) {
	orderNumber := chi.URLParam(r, "orderNumber")
	order, err := h.Orders.FindByOrderNumber(r.Context(), orderNumber)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "payment.status", errors.New("order not found"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "payment.status", err)
		return
	}

	if order.PaymentStatus == repository.PaymentStatusPending && order.AppTransID != "" && h.Reconciler != nil {
		outcome, err := h.Reconciler.Reconcile(r.Context(), order.AppTransID)
		if err != nil {
			// Stale data beats an error page; report what we have.
			h.Logger.WarnContext(r.Context(), "on-demand reconcile failed",
				"order_number", orderNumber, "error", err)
		} else if outcome.Result == service.ApplyApplied {
			if refreshed, err := h.Orders.FindByOrderNumber(r.Context(), orderNumber); err == nil {
				order = refreshed
			}
		}
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
		"order_status":   order.OrderStatus,
		"amount":         order.Total,
	})
}
