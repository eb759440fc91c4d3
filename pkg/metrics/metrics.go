package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Registry holds every harvester collector. It is separate from the default
// registry so the one-shot CLI pushes only its own series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// --- Run Metrics ---

	// RunsTotal counts completed passes over the registry.
	RunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "runs",
			Name:      "total",
			Help:      "Total number of runs by outcome (clean or with_failures)",
		},
		[]string{"outcome"},
	)

	// RunDuration tracks wall-clock time of a whole run.
	RunDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "harvester",
			Subsystem: "runs",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a run in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1s to ~4.5h
		},
	)

	// --- Job Metrics ---

	// JobExecutionsTotal counts job invocations by status.
	JobExecutionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "jobs",
			Name:      "executions_total",
			Help:      "Total number of job executions by status",
		},
		[]string{"job_name", "status"},
	)

	// JobDuration tracks job execution duration.
	JobDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "harvester",
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Duration of job executions in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 15), // 0.1s to ~1.8h
		},
		[]string{"job_name", "status"},
	)

	// ItemsFound counts items jobs reported as collected.
	ItemsFound = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "jobs",
			Name:      "items_found_total",
			Help:      "Total number of items found per job",
		},
		[]string{"job_name"},
	)

	// ItemsPersisted counts items jobs reported as written to the store.
	ItemsPersisted = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "jobs",
			Name:      "items_persisted_total",
			Help:      "Total number of items persisted per job",
		},
		[]string{"job_name"},
	)

	// --- Notification Metrics ---

	// NotificationsTotal counts webhook deliveries by format and result.
	NotificationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "notifications",
			Name:      "total",
			Help:      "Total number of notification deliveries by format and result",
		},
		[]string{"format", "result"},
	)

	// BreakerRejections counts sends short-circuited by an open breaker.
	BreakerRejections = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "notifications",
			Name:      "breaker_rejections_total",
			Help:      "Total number of deliveries skipped because the circuit was open",
		},
	)

	// --- Archive Metrics ---

	// ArchiveErrors counts failed archive writes by backend.
	ArchiveErrors = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "harvester",
			Subsystem: "archive",
			Name:      "errors_total",
			Help:      "Total number of failed archive writes by backend",
		},
		[]string{"backend"},
	)
)

// RecordJob records metrics for a finished job.
func RecordJob(jobName, status string, durationSeconds float64, found, persisted int) {
	JobExecutionsTotal.WithLabelValues(jobName, status).Inc()
	JobDuration.WithLabelValues(jobName, status).Observe(durationSeconds)
	ItemsFound.WithLabelValues(jobName).Add(float64(found))
	ItemsPersisted.WithLabelValues(jobName).Add(float64(persisted))
}

// RecordRun records metrics for a finished run.
func RecordRun(hadFailures bool, durationSeconds float64) {
	outcome := "clean"
	if hadFailures {
		outcome = "with_failures"
	}
	RunsTotal.WithLabelValues(outcome).Inc()
	RunDuration.Observe(durationSeconds)
}

// RecordNotification records one webhook delivery attempt.
func RecordNotification(format string, delivered bool) {
	result := "failed"
	if delivered {
		result = "delivered"
	}
	NotificationsTotal.WithLabelValues(format, result).Inc()
}

// Push sends every harvester series to a Prometheus Pushgateway. Short
// lived runs have no scrape window, so this is how their metrics leave the
// process.
func Push(ctx context.Context, gatewayURL, job string) error {
	if gatewayURL == "" {
		return nil
	}
	if err := push.New(gatewayURL, job).Gatherer(Registry).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
