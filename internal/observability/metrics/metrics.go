package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricPrefix = "rapp_"

	resultSuccess = "success"
	resultError   = "error"
	resultSkipped = "skipped"
	resultEmpty   = "empty"
)

var (
	registerOnce sync.Once

	cycleTotal   *prometheus.CounterVec
	cycleLatency *prometheus.HistogramVec

	groupsSkipped *prometheus.CounterVec

	predictorRequests *prometheus.CounterVec
	predictorLatency  *prometheus.HistogramVec

	actuationTotal *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec

	telemetryRetries *prometheus.CounterVec

	notificationTotal *prometheus.CounterVec
	eventPublishTotal *prometheus.CounterVec
)

// Init registers rApp metrics and, when db is set, history-backed gauges.
func Init(db *sql.DB, logger *zap.SugaredLogger) {
	registerOnce.Do(func() {
		cycleTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "cycles_total",
				Help: "Reconciliation cycles by result",
			},
			[]string{"rapp", "result"},
		)
		cycleLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "cycle_latency_seconds",
				Help:    "Reconciliation cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"rapp", "result"},
		)

		groupsSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "groups_skipped_total",
				Help: "Groups skipped within a cycle by reason",
			},
			[]string{"rapp", "reason"},
		)

		predictorRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "predictor_requests_total",
				Help: "Predictor requests by result",
			},
			[]string{"rapp", "result"},
		)
		predictorLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "predictor_latency_seconds",
				Help:    "Predictor latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"rapp"},
		)

		actuationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "actuations_total",
				Help: "Actuation calls by action and result",
			},
			[]string{"rapp", "action", "result"},
		)
		cacheEntries = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "device_state_cache_entries",
				Help: "Entities tracked by the device state cache",
			},
			[]string{"rapp"},
		)

		telemetryRetries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "telemetry_retries_total",
				Help: "Telemetry source retries",
			},
			[]string{"source"},
		)

		notificationTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_total",
				Help: "Inbound file-ready notifications by result",
			},
			[]string{"result"},
		)
		eventPublishTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "event_publish_total",
				Help: "Actuation events published by sink and result",
			},
			[]string{"sink", "result"},
		)

		prometheus.MustRegister(
			cycleTotal,
			cycleLatency,
			groupsSkipped,
			predictorRequests,
			predictorLatency,
			actuationTotal,
			cacheEntries,
			telemetryRetries,
			notificationTotal,
			eventPublishTotal,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveCycle records a cycle outcome and its duration.
func ObserveCycle(rapp, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if cycleTotal != nil {
		cycleTotal.WithLabelValues(rapp, result).Inc()
	}
	if cycleLatency != nil && result != resultSkipped {
		cycleLatency.WithLabelValues(rapp, result).Observe(duration.Seconds())
	}
}

// IncGroupSkipped increments the skipped group counter.
func IncGroupSkipped(rapp, reason string) {
	if reason == "" {
		reason = "unknown"
	}
	if groupsSkipped != nil {
		groupsSkipped.WithLabelValues(rapp, reason).Inc()
	}
}

// ObservePredictor records a predictor call.
func ObservePredictor(rapp, result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if predictorRequests != nil {
		predictorRequests.WithLabelValues(rapp, result).Inc()
	}
	if predictorLatency != nil {
		predictorLatency.WithLabelValues(rapp).Observe(duration.Seconds())
	}
}

// IncActuation increments the actuation counter.
func IncActuation(rapp, action, result string) {
	if action == "" {
		action = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if actuationTotal != nil {
		actuationTotal.WithLabelValues(rapp, action, result).Inc()
	}
}

// SetCacheEntries sets the device state cache size.
func SetCacheEntries(rapp string, n int) {
	if cacheEntries != nil {
		cacheEntries.WithLabelValues(rapp).Set(float64(n))
	}
}

// IncTelemetryRetry increments telemetry retries.
func IncTelemetryRetry(source string) {
	if source == "" {
		source = "unknown"
	}
	if telemetryRetries != nil {
		telemetryRetries.WithLabelValues(source).Inc()
	}
}

// IncNotification increments inbound notification results.
func IncNotification(result string) {
	if result == "" {
		result = "unknown"
	}
	if notificationTotal != nil {
		notificationTotal.WithLabelValues(result).Inc()
	}
}

// IncEventPublish increments event publish results.
func IncEventPublish(sink, result string) {
	if sink == "" {
		sink = "unknown"
	}
	if eventPublishTotal != nil {
		eventPublishTotal.WithLabelValues(sink, result).Inc()
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
	ResultSkipped = resultSkipped
	ResultEmpty   = resultEmpty
)
