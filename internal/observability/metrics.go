// Package observability registers the Prometheus metrics shared by the sync engine.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stravasync"

var (
	tokenRefreshCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "token",
		Name:      "refreshes_total",
		Help:      "Number of OAuth refresh grants attempted, labeled by result.",
	}, []string{"result"})

	providerRequestCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "requests_total",
		Help:      "Provider API calls grouped by operation and status class.",
	}, []string{"operation", "status"})

	providerRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "provider",
		Name:      "request_duration_seconds",
		Help:      "Latency of provider API calls.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"operation"})

	syncOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "activities_total",
		Help:      "Single-activity sync outcomes.",
	}, []string{"outcome"})

	backfillCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "syncer",
		Name:      "backfilled_activities_total",
		Help:      "Activities written by full-history backfills.",
	})

	webhookCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events grouped by aspect type and result.",
	}, []string{"aspect_type", "result"})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "queue_depth",
		Help:      "Tasks waiting in the in-process queue.",
	})

	droppedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "tasks_dropped_total",
		Help:      "Tasks evicted or rejected by the dispatcher, labeled by task kind.",
	}, []string{"kind"})

	sweptCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dispatch",
		Name:      "events_swept_total",
		Help:      "Stale webhook events resubmitted by the sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		tokenRefreshCounter,
		providerRequestCounter,
		providerRequestDuration,
		syncOutcomeCounter,
		backfillCounter,
		webhookCounter,
		queueDepthGauge,
		droppedCounter,
		sweptCounter,
	)
}

// RecordTokenRefresh counts a refresh attempt.
func RecordTokenRefresh(ok bool) {
	result := "success"
	if !ok {
		result = "failure"
	}
	tokenRefreshCounter.WithLabelValues(result).Inc()
}

// RecordProviderRequest records the status class and latency of a provider call.
// A status of 0 denotes a transport failure.
func RecordProviderRequest(operation string, status int, elapsed time.Duration) {
	class := "error"
	if status > 0 {
		class = strconv.Itoa(status/100) + "xx"
	}
	providerRequestCounter.WithLabelValues(operation, class).Inc()
	providerRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordSyncOutcome counts a single-activity sync result.
func RecordSyncOutcome(outcome string) {
	syncOutcomeCounter.WithLabelValues(outcome).Inc()
}

// RecordBackfilled counts activities written by a backfill.
func RecordBackfilled(n int) {
	backfillCounter.Add(float64(n))
}

// RecordWebhook counts a processed webhook event.
func RecordWebhook(aspectType, result string) {
	webhookCounter.WithLabelValues(aspectType, result).Inc()
}

// SetQueueDepth publishes the in-process queue length.
func SetQueueDepth(n int) {
	queueDepthGauge.Set(float64(n))
}

// RecordDropped counts a task the dispatcher could not keep.
func RecordDropped(kind string) {
	droppedCounter.WithLabelValues(kind).Inc()
}

// RecordSwept counts resubmitted webhook events.
func RecordSwept(n int) {
	sweptCounter.Add(float64(n))
}
