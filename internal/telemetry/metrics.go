package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "hubd",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// OutboxDepth reports the current number of outbox rows by status.
var OutboxDepth = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "hubd",
		Subsystem: "outbox",
		Name:      "depth",
		Help:      "Number of outbox rows grouped by status.",
	},
	[]string{"status"},
)

// PushAttemptsTotal counts push engine delivery attempts by outcome.
var PushAttemptsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hubd",
		Subsystem: "push",
		Name:      "attempts_total",
		Help:      "Total number of push attempts by outcome.",
	},
	[]string{"entity_type", "outcome"},
)

// PullCycleRecords counts records pulled per entity per cycle.
var PullCycleRecords = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hubd",
		Subsystem: "pull",
		Name:      "records_total",
		Help:      "Total number of records pulled per entity type.",
	},
	[]string{"entity_type"},
)

// PullCycleErrors counts per-entity pull failures that did not abort the cycle.
var PullCycleErrors = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "hubd",
		Subsystem: "pull",
		Name:      "errors_total",
		Help:      "Total number of per-entity pull errors.",
	},
	[]string{"entity_type"},
)

// All returns all hub-specific metrics for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		OutboxDepth,
		PushAttemptsTotal,
		PullCycleRecords,
		PullCycleErrors,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors
// plus every hub-specific collector.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
