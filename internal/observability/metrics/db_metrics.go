package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func registerDBMetrics(db *sql.DB, logger *zap.SugaredLogger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "decision_failures_last_hour",
			Help: "Decisions recorded with error status in the last hour",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM rapp_decisions WHERE status = 'error' AND ts >= NOW() - INTERVAL '1 hour'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "decisions_recorded",
			Help: "Decisions recorded in the history store",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM rapp_decisions")
		},
	))
}

func queryCount(db *sql.DB, logger *zap.SugaredLogger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Warnw("metrics query failed", "err", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
