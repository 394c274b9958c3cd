package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	applyResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "khoahoc",
			Subsystem: "payment",
			Name:      "apply_total",
			Help:      "Idempotent payment-state apply outcomes.",
		},
		[]string{"result"},
	)
	reconcileQueries = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "khoahoc",
			Subsystem: "payment",
			Name:      "reconcile_queries_total",
			Help:      "Gateway status queries issued by the reconciler.",
		},
	)
	amountMismatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "khoahoc",
			Subsystem: "payment",
			Name:      "amount_mismatch_total",
			Help:      "Observed amounts disagreeing with the local order total.",
		},
	)
)
