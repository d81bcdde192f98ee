// Package observability exposes the Prometheus instrumentation of the
// sync engine: store throughput, query runs, delivery outcomes and process health.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// MessagesIngested counts appended messages, labeled by source:
	// "nats", "sync" or "local".
	MessagesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_messages_ingested_total",
		Help: "Total number of messages appended to the store",
	}, []string{"source"})

	// MessagesRejected counts ingestion failures, labeled by reason:
	// "duplicate", "invalid" or "store".
	MessagesRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_messages_rejected_total",
		Help: "Total number of messages refused by the ingestion path",
	}, []string{"reason"})

	// MessagesCensored counts messages altered by moderation, labeled by detected language.
	MessagesCensored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_messages_censored_total",
		Help: "Total number of censored messages",
	}, []string{"language"})

	QueryRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_query_runs_total",
		Help: "Total number of query executions",
	}, []string{"query", "outcome"}) // outcome = "ok", "error"

	QueryDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chatsync_query_duration_seconds",
		Help:    "Query execution latency in seconds",
		Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"query"})

	// ResultsDiscarded counts results that found no listener attached,
	// labeled by kind: "query" or "delivery".
	ResultsDiscarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_results_discarded_total",
		Help: "Total number of results dropped because no listener was attached",
	}, []string{"kind"})

	DeliveryOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_delivery_outcomes_total",
		Help: "Total number of outbound deliveries by final state",
	}, []string{"state"})

	DeliveryLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatsync_delivery_latency_seconds",
		Help:    "Time from send to transport completion",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	DeliveriesInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_deliveries_in_flight",
		Help: "Current number of outbound deliveries awaiting completion",
	})

	SyncPulled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatsync_sync_pulled_total",
		Help: "Total number of messages fetched by the periodic pull",
	})

	WorkerRestarts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatsync_worker_restarts_total",
		Help: "Total number of supervised worker restarts",
	}, []string{"worker"})

	ProcessRSS = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_process_rss_bytes",
		Help: "Resident set size of the process",
	})

	ProcessCPU = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_process_cpu_percent",
		Help: "CPU usage of the process",
	})

	ProcessGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatsync_process_goroutines",
		Help: "Number of goroutines of the process",
	})
)

func init() {
	prometheus.MustRegister(
		MessagesIngested,
		MessagesRejected,
		MessagesCensored,
		QueryRuns,
		QueryDuration,
		ResultsDiscarded,
		DeliveryOutcomes,
		DeliveryLatency,
		DeliveriesInFlight,
		SyncPulled,
		WorkerRestarts,
		ProcessRSS,
		ProcessCPU,
		ProcessGoroutines,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
