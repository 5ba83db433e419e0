// Package metrics registers the process-wide prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsrag_chat_requests_total",
		Help: "Chat requests by outcome.",
	}, []string{"outcome"})

	ChatDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "newsrag_chat_duration_seconds",
		Help:    "End-to-end chat request latency.",
		Buckets: prometheus.DefBuckets,
	})

	UpstreamRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "newsrag_upstream_retries_total",
		Help: "Retries issued against upstream services.",
	})

	IngestDocs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsrag_ingest_docs_total",
		Help: "Ingested documents by outcome.",
	}, []string{"outcome"})
)
