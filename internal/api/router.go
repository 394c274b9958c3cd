// Package api wires the HTTP surface: middleware, health, metrics and the
// payment endpoints.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/api/handler"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/api/middleware"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/config"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/gateway/zalopay"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/service"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Warn("failed to encode response JSON", "error", err)
	}
}

// Services collects the dependencies the router hands to handlers.
type Services struct {
	Orders     repository.OrderRepository
	Checkout   service.CheckoutService
	Payment    service.PaymentService
	Reconciler service.ReconcileService
	Verifier   handler.CallbackVerifier
	Classifier zalopay.SuccessClassifier
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(logger *slog.Logger, services Services, metricsCfg config.MetricsConfig) http.Handler {
	if services.Orders == nil {
		panic("router requires OrderRepository")
	}
	if services.Payment == nil {
		panic("router requires PaymentService")
	}
	if services.Verifier == nil {
		panic("router requires CallbackVerifier")
	}

	r := chi.NewRouter()

	mCfg := middleware.DefaultMetricsConfig()
	if metricsCfg.Namespace != "" {
		mCfg.Namespace = metricsCfg.Namespace
	}
	if metricsCfg.Subsystem != "" {
		mCfg.Subsystem = metricsCfg.Subsystem
	}
	if len(metricsCfg.Buckets) > 0 {
		mCfg.Buckets = metricsCfg.Buckets
	}

	r.Use(
		chiMiddleware.RequestID,
		chiMiddleware.RealIP,
	)

	if metricsCfg.Enabled {
		metrics := middleware.NewMetrics(mCfg)
		r.Use(metrics.Middleware(mCfg))
	}

	r.Use(
		middleware.StructuredLogger(middleware.LoggingConfig{
			Logger:        logger,
			SlowThreshold: 500 * time.Millisecond,
			SkipPaths:     []string{"/healthz", "/metrics"},
		}),
		chiMiddleware.Recoverer,
		chiMiddleware.Compress(5),
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"ts":     time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	if metricsCfg.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	paymentHandler := handler.NewPaymentHandler(services.Verifier, services.Payment, services.Classifier, services.Orders, logger)
	orderHandler := handler.NewOrderHandler(services.Orders, services.Checkout, services.Reconciler, logger)

	r.Route("/payment/zalopay", func(r chi.Router) {
		r.Post("/callback", paymentHandler.Callback)
		r.Get("/return", paymentHandler.Return)
	})

	r.Route("/orders/{orderNumber}", func(r chi.Router) {
		r.Post("/payment/zalopay", orderHandler.StartPayment)
		r.Get("/payment", orderHandler.PaymentStatus)
	})

	return r
}
