// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice_ledger"

// Classifications counts classifier outcomes by result type and command.
var Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "classifier",
	Name:      "results_total",
	Help:      "Classifier results by type (finance, clarification, voice_command) and command.",
}, []string{"type", "command"})

// Confirmations counts finance results held back for confirmation.
var Confirmations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "classifier",
	Name:      "confirmations_total",
	Help:      "Low-confidence results by outcome (requested, accepted).",
}, []string{"outcome"})

// LedgerDuration observes ledger call latency.
var LedgerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: namespace,
	Subsystem: "ledger",
	Name:      "operation_duration_seconds",
	Help:      "Ledger call latency by backend, operation and status.",
	Buckets:   prometheus.DefBuckets,
}, []string{"backend", "op", "status"})

// Undos counts undo requests by outcome (ok, expired, empty, error).
var Undos = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "assistant",
	Name:      "undo_total",
	Help:      "Undo requests by outcome.",
}, []string{"outcome"})

// BackupJobs counts backup upload jobs by final status.
var BackupJobs = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "backup_total",
	Help:      "Backup upload jobs by final status.",
}, []string{"status"})

// JobQueueDepth tracks jobs waiting in the in-memory queue.
var JobQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Subsystem: "jobs",
	Name:      "queue_depth",
	Help:      "Jobs waiting in the in-memory queue.",
})

// EventsPublished counts ledger events sent to the broker.
var EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Subsystem: "events",
	Name:      "published_total",
	Help:      "Ledger events by routing key and status.",
}, []string{"routing_key", "status"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Status maps an error to a label value.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
