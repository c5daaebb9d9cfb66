package knowledge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	embedCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "embed_calls_total",
			Help:      "Total embedding API calls",
		},
		[]string{"status"},
	)

	embedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hobi",
			Name:      "embed_duration_seconds",
			Help:      "Duration of embedding API calls in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	indexedChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "indexed_chunks_total",
			Help:      "Total chunks written to the knowledge index",
		},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hobi",
			Name:      "knowledge_searches_total",
			Help:      "Total knowledge searches by search path",
		},
		[]string{"path"},
	)

	searchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hobi",
			Name:      "knowledge_search_duration_seconds",
			Help:      "Duration of knowledge searches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
