package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
)

// CallbackVerifier authenticates inbound gateway traffic.
type CallbackVerifier interface {
	VerifyCallback(data, mac string) bool
	VerifyRedirect(params url.Values) bool
}

// PaymentHandler serves the gateway-facing endpoints: the server-to-server
// callback and the customer redirect leg.
type PaymentHandler struct {
	Verifier   CallbackVerifier
	Apply      service.PaymentService
	Classifier zalopay.SuccessClassifier
	Orders     repository.OrderRepository
	Logger     *slog.Logger
}

// NewPaymentHandler constructs the handler. classifier may be nil; the default
// production rule is used.
func NewPaymentHandler(verifier CallbackVerifier, apply service.PaymentService, classifier zalopay.SuccessClassifier, orders repository.OrderRepository, logger *slog.Logger) *PaymentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = zalopay.DefaultClassifier
	}
	return &PaymentHandler{
		Verifier:   verifier,
		Apply:      apply,
		Classifier: classifier,
		Orders:     orders,
		Logger:     logger,
	}
}

// Callback handles the gateway webhook. The body is always answered with
// HTTP 200 and a JSON ack; return_code 2 tells the gateway to retry, which we
// send only when the envelope itself cannot be authenticated or parsed. Once
// the MAC checks out, the delivery is acknowledged no matter what the local
// state machine decided, because redelivery cannot change a conflict.
func (h *PaymentHandler) Callback(w http.ResponseWriter, r *http.Request) {
	var envelope zalopay.CallbackEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		h.Logger.WarnContext(r.Context(), "callback body unreadable", "error", err)
		respondJSON(w, http.StatusOK, zalopay.CallbackAck{ReturnCode: 2, ReturnMessage: "invalid body"})
		return
	}

	if !h.Verifier.VerifyCallback(envelope.Data, envelope.MAC) {
		h.Logger.WarnContext(r.Context(), "callback mac mismatch", "remote_addr", r.RemoteAddr)
		respondJSON(w, http.StatusOK, zalopay.CallbackAck{ReturnCode: 2, ReturnMessage: "mac not matched"})
		return
	}

	var data zalopay.CallbackData
	if err := json.Unmarshal([]byte(envelope.Data), &data); err != nil {
		h.Logger.WarnContext(r.Context(), "callback data unparseable", "error", err)
		respondJSON(w, http.StatusOK, zalopay.CallbackAck{ReturnCode: 2, ReturnMessage: "invalid data"})
		return
	}

	obs := service.Observation{
		Success: h.Classifier(data),
		Amount:  data.Amount,
	}
	if data.ZpTransID != 0 {
		obs.TransID = strconv.FormatInt(data.ZpTransID, 10)
	}

	result, err := h.Apply.Apply(r.Context(), data.AppTransID, obs)
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "callback apply failed",
			"app_trans_id", data.AppTransID, "error", err)
		// The MAC was valid; redelivering the same payload will hit the same
		// storage error or the idempotent path, so ask for a retry.
		respondJSON(w, http.StatusOK, zalopay.CallbackAck{ReturnCode: 2, ReturnMessage: "internal error"})
		return
	}

	h.Logger.InfoContext(r.Context(), "callback processed",
		"app_trans_id", data.AppTransID, "success", obs.Success, "result", result.String())
	respondJSON(w, http.StatusOK, zalopay.CallbackAck{ReturnCode: 1, ReturnMessage: "success"})
}

// Return handles the customer redirect after payment. The query checksum uses
// the callback key, so a valid redirect is authenticated, but it is only shown
// to the customer; the webhook and reconciler own all state changes.
func (h *PaymentHandler) Return(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	if !h.Verifier.VerifyRedirect(params) {
		respondError(w, http.StatusBadRequest, "payment.return", errors.New("checksum not matched"))
		return
	}

	appTransID := params.Get("apptransid")
	order, err := h.Orders.FindByAppTransID(r.Context(), appTransID)
	if errors.Is(err, repository.ErrNotFound) {
		respondError(w, http.StatusNotFound, "payment.return", errors.New("order not found"))
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "payment.return", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"order_number":   order.OrderNumber,
		"payment_status": order.PaymentStatus,
		"order_status":   order.OrderStatus,
		"gateway_status": params.Get("status"),
		"amount":         order.Total,
	})
}
