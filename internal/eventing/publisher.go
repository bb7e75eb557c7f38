package eventing

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"oran-rapps/internal/observability/logging"
	"oran-rapps/internal/observability/metrics"
)

// Publisher delivers actuation envelopes to a sink.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// Emit builds an envelope for event from ctx metadata and publishes it.
// Failures are logged and counted, never returned.
func Emit(ctx context.Context, pub Publisher, event ActuationEvent, logger *zap.SugaredLogger) {
	if pub == nil {
		return
	}
	logger = logging.OrNop(logger)
	env, err := BuildEnvelope(event, MetaFromContext(ctx))
	if err != nil {
		logger.Warnw("event build failed", "entity", event.Entity, "err", err)
		return
	}
	if err := pub.Publish(ctx, env); err != nil {
		logger.Warnw("event publish failed", "entity", event.Entity, "event_id", env.EventID, "err", err)
	}
}

// MultiPublisher fans an envelope out to several publishers.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher constructs a MultiPublisher; nil entries are dropped.
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish forwards env to every publisher and joins their errors.
func (m *MultiPublisher) Publish(ctx context.Context, env Envelope) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, env); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of wrapped publishers.
func (m *MultiPublisher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.publishers)
}

// LoggingPublisher writes envelopes to the log.
type LoggingPublisher struct {
	logger *zap.SugaredLogger
}

// NewLoggingPublisher constructs a LoggingPublisher.
func NewLoggingPublisher(logger *zap.SugaredLogger) *LoggingPublisher {
	return &LoggingPublisher{logger: logging.OrNop(logger)}
}

// Publish logs env.
func (p *LoggingPublisher) Publish(_ context.Context, env Envelope) error {
	p.logger.Infow("actuation event",
		"event_id", env.EventID,
		"cycle_id", env.CorrelationID,
		"rapp", env.RApp,
		"entity", env.Entity,
		"payload", json.RawMessage(env.Payload),
	)
	metrics.IncEventPublish("log", metrics.ResultSuccess)
	return nil
}
