package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks the number of outbound API calls to InContact.
	InContactRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "incontact_api_requests_total",
			Help: "Total number of InContact API requests made (by endpoint and method).",
		},
		[]string{"endpoint", "method", "status"},
	)

	// Measures duration of API requests to InContact.
	InContactRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "incontact_api_request_duration_seconds",
			Help:    "Duration of InContact API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"endpoint", "method"},
	)

	// Tracks report fetch runs by terminal status.
	ReportRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "report_runs_total",
			Help: "Total number of report fetch runs by terminal status.",
		},
		[]string{"status"}, // completed | timed_out | failed
	)

	// Counts report job status checks across all runs.
	ReportStatusChecks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_status_checks_total",
			Help: "Total number of report job status checks performed.",
		},
	)

	// Counts decoded report bytes written to disk.
	ReportBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "report_download_bytes_total",
			Help: "Total decoded report bytes written to output files.",
		},
	)

	// Tracks NATS messages processed by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages processed.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks cache hits and misses for secrets / credentials.
	SecretsCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "secrets_cache_access_total",
			Help: "Number of cache hits/misses in secret cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful fetch time (seconds since epoch).
	LastFetchTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_last_fetch_timestamp",
			Help: "Timestamp (unix seconds) of the last successfully completed report fetch.",
		},
		[]string{"report_id"},
	)

	// Counts run history rows removed by the retention sweeper.
	RetentionRunsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_runs_deleted_total",
			Help: "Total report run records deleted by the retention sweeper.",
		},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncInContactRequest(endpoint, method, status string) {
	InContactRequestsTotal.WithLabelValues(endpoint, method, status).Inc()
}

func IncReportRun(status string) {
	ReportRunsTotal.WithLabelValues(status).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheHit(result string) {
	SecretsCacheHits.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastFetch(reportID string, t time.Time) {
	LastFetchTimestamp.WithLabelValues(reportID).Set(float64(t.Unix()))
}
