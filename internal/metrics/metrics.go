// Package metrics exposes Prometheus instrumentation for the session
// pool, the query executor, and the read pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// SessionsInUse tracks the number of UNAVAILABLE slots.
	SessionsInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "shim",
		Subsystem: "sessions",
		Name:      "in_use",
		Help:      "Number of session slots currently allocated.",
	})

	// SessionsReaped counts slots reclaimed by the orphan reaper.
	SessionsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shim",
		Subsystem: "sessions",
		Name:      "reaped_total",
		Help:      "Number of session slots reclaimed from orphaned sessions.",
	})

	// QueriesTotal counts query executions by outcome class.
	QueriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shim",
		Subsystem: "queries",
		Name:      "total",
		Help:      "Number of query executions, labeled by outcome.",
	}, []string{"outcome"})

	// BytesRead counts bytes served by /read_bytes.
	BytesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shim",
		Subsystem: "read_pipeline",
		Name:      "bytes_total",
		Help:      "Total bytes streamed via read_bytes.",
	})

	// LinesRead counts lines served by /read_lines.
	LinesRead = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shim",
		Subsystem: "read_pipeline",
		Name:      "lines_total",
		Help:      "Total lines streamed via read_lines.",
	})
)

// Register registers all collectors with the given registerer. Call
// once at startup; safe to call with prometheus.DefaultRegisterer.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(SessionsInUse, SessionsReaped, QueriesTotal, BytesRead, LinesRead)
}
