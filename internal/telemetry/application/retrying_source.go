package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
	"oran-rapps/internal/retry"
	telemetry "oran-rapps/internal/telemetry/domain"
)

// Source returns a snapshot of recent telemetry rows.
type Source interface {
	Snapshot(ctx context.Context) ([]telemetry.Row, error)
}

// RetryingSource blocks until the wrapped source answers or ctx ends.
type RetryingSource struct {
	next   Source
	name   string
	policy retry.Policy
	logger *zap.SugaredLogger
}

// NewRetryingSource wraps next with a fixed-interval unbounded retry.
func NewRetryingSource(next Source, name string, interval time.Duration, logger *zap.SugaredLogger) (*RetryingSource, error) {
	if next == nil {
		return nil, errors.New("telemetry: nil source")
	}
	if interval <= 0 {
		return nil, errors.New("telemetry: retry interval must be positive")
	}
	return &RetryingSource{
		next:   next,
		name:   name,
		policy: retry.Forever(interval),
		logger: logging.OrNop(logger),
	}, nil
}

// Snapshot queries the wrapped source, retrying failures indefinitely.
func (s *RetryingSource) Snapshot(ctx context.Context) ([]telemetry.Row, error) {
	return retry.Do(ctx, s.policy, s.next.Snapshot, func(err error, next time.Duration) {
		metrics.IncTelemetryRetry(s.name)
		s.logger.Errorw("telemetry query failed, retrying", "source", s.name, "err", err, "retry_in", next)
	})
}
