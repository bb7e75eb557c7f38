package kafkabus

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"

	"oran-rapps/internal/eventing"
	"oran-rapps/internal/observability/metrics"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes actuation envelopes to a Kafka topic keyed by entity, so
// events for one entity stay ordered on a partition.
type Publisher struct {
	writer messageWriter
}

// NewPublisher constructs a Publisher for topic on brokers.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafkabus: no brokers")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafkabus: empty topic")
	}
	return newPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}), nil
}

func newPublisherWithWriter(writer messageWriter) *Publisher {
	return &Publisher{writer: writer}
}

// Publish writes env as a JSON message.
func (p *Publisher) Publish(ctx context.Context, env eventing.Envelope) error {
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(env.Entity),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(env.EventType)},
			{Key: "correlation_id", Value: []byte(env.CorrelationID)},
		},
	})
	if err != nil {
		metrics.IncEventPublish("kafka", metrics.ResultError)
		return err
	}
	metrics.IncEventPublish("kafka", metrics.ResultSuccess)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
