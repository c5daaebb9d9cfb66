package router

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	routesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "router_routes_total",
			Help:      "Total routed questions by final route",
		},
		[]string{"route"},
	)

	classifierDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hobi",
			Name:      "router_classifier_duration_seconds",
			Help:      "Duration of intent classification calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		},
	)

	classifierFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "router_classifier_fallbacks_total",
			Help:      "Classifier failures that fell back to the rag intent",
		},
	)

	ragGateFallthroughsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "router_rag_gate_fallthroughs_total",
			Help:      "Questions that fell through from rag to web on low similarity",
		},
	)
)
