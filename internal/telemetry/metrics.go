package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency, shared across all routes.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "blacklistguard",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "endpoint", "status"},
)

var HTTPRequestsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	},
	[]string{"method", "endpoint", "status"},
)

var HTTPRequestsInProgress = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "blacklistguard",
		Subsystem: "http",
		Name:      "requests_inprogress",
		Help:      "Number of HTTP requests currently being served.",
	},
	[]string{"method", "endpoint"},
)

var HTTPErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "Total number of HTTP error responses.",
	},
	[]string{"method", "endpoint", "error_type", "status"},
)

var ApplicationErrorsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Name:      "application_errors_total",
		Help:      "Total number of application-level errors by type and severity.",
	},
	[]string{"error_type", "severity"},
)

var BlacklistDecisionsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "blacklist",
		Name:      "decisions_total",
		Help:      "Total number of blacklist decisions by outcome and reason.",
	},
	[]string{"decision", "reason"},
)

var WhitelistHitsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "blacklist",
		Name:      "whitelist_hits_total",
		Help:      "Total number of decisions short-circuited by whitelist membership.",
	},
)

var BlacklistEntriesTotal = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "blacklistguard",
		Subsystem: "blacklist",
		Name:      "entries_total",
		Help:      "Blacklist entries by category; category \"new\" is the number of rows first inserted by the latest collection run.",
	},
	[]string{"category"},
)

var DBOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "db",
		Name:      "operations_total",
		Help:      "Total number of database operations by kind and status.",
	},
	[]string{"operation", "status"},
)

var DBOperationDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "blacklistguard",
		Subsystem: "db",
		Name:      "operation_duration_seconds",
		Help:      "Database operation duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"operation"},
)

var CollectionRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "blacklistguard",
		Subsystem: "collection",
		Name:      "runs_total",
		Help:      "Total number of collection runs by source and outcome.",
	},
	[]string{"source", "outcome"},
)

var RateLimiterCurrentRate = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "blacklistguard",
		Subsystem: "ratelimit",
		Name:      "current_rate",
		Help:      "Current adaptive request rate in requests per second, by source.",
	},
	[]string{"source"},
)

// All returns every blacklistguard-specific metric for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		HTTPRequestDuration,
		HTTPRequestsTotal,
		HTTPRequestsInProgress,
		HTTPErrorsTotal,
		ApplicationErrorsTotal,
		BlacklistDecisionsTotal,
		WhitelistHitsTotal,
		BlacklistEntriesTotal,
		DBOperationsTotal,
		DBOperationDuration,
		CollectionRunsTotal,
		RateLimiterCurrentRate,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors
// plus every blacklistguard metric.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
