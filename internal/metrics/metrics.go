package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	readingsAcceptedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "meter_readings_accepted_total",
			Help: "Total number of meter readings persisted.",
		},
	)
	readingsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meter_readings_rejected_total",
			Help: "Total number of meter readings rejected, by reason.",
		},
		[]string{"reason"},
	)
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "meter_reading_batches_total",
			Help: "Total number of ingestion batches, by source and result.",
		},
		[]string{"source", "result"},
	)
	batchDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "meter_reading_batch_duration_seconds",
			Help:    "Time spent persisting one ingestion batch.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveReadings records per-row outcomes of a batch
func ObserveReadings(accepted int, rejectedByReason map[string]int) {
	readingsAcceptedTotal.Add(float64(accepted))
	for reason, n := range rejectedByReason {
		readingsRejectedTotal.WithLabelValues(reason).Add(float64(n))
	}
}

// ObserveBatch records one ingestion batch from source ("csv", "json", "queue")
func ObserveBatch(source string, err error) {
	batchesTotal.WithLabelValues(source, resultLabel(err)).Inc()
}

// ObservePersist records the duration of one persistence transaction
func ObservePersist(err error, dur time.Duration) {
	batchDurationSeconds.WithLabelValues(resultLabel(err)).Observe(dur.Seconds())
}

// ObserveHTTPRequest records one served request. route should be a route
// pattern, not a raw path, to keep label cardinality bounded.
func ObserveHTTPRequest(route, method string, status int, dur time.Duration) {
	if route == "" {
		route = "other"
	}
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(dur.Seconds())
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
