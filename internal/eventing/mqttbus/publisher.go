package mqttbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"oran-rapps/internal/eventing"
	"oran-rapps/internal/observability/metrics"
)

const qosAtLeastOnce = 1

type tokenPublisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher sends actuation envelopes to <topic>/<rapp> with QoS 1.
type Publisher struct {
	client  tokenPublisher
	topic   string
	timeout time.Duration
	close   func()
}

// NewPublisher connects to broker and returns a Publisher.
func NewPublisher(broker, topic, clientID string) (*Publisher, error) {
	if broker == "" {
		return nil, errors.New("mqttbus: empty broker")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("mqttbus: empty topic")
	}
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second)
	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, errors.New("mqttbus: connect timed out")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqttbus: connect: %w", err)
	}
	p := newPublisher(client, topic)
	p.close = func() { client.Disconnect(250) }
	return p, nil
}

func newPublisher(client tokenPublisher, topic string) *Publisher {
	return &Publisher{
		client:  client,
		topic:   strings.TrimRight(topic, "/"),
		timeout: 5 * time.Second,
	}
}

// Publish sends env and waits for the broker acknowledgement.
func (p *Publisher) Publish(ctx context.Context, env eventing.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	topic := p.topic
	if env.RApp != "" {
		topic += "/" + env.RApp
	}
	token := p.client.Publish(topic, qosAtLeastOnce, false, payload)

	timeout := p.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}
	if !token.WaitTimeout(timeout) {
		metrics.IncEventPublish("mqtt", metrics.ResultError)
		return errors.New("mqttbus: publish timed out")
	}
	if err := token.Error(); err != nil {
		metrics.IncEventPublish("mqtt", metrics.ResultError)
		return err
	}
	metrics.IncEventPublish("mqtt", metrics.ResultSuccess)
	return nil
}

// Close disconnects from the broker.
func (p *Publisher) Close() error {
	if p.close != nil {
		p.close()
	}
	return nil
}
