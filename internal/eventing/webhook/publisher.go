// Package webhook posts actuation summaries to a chat-style webhook.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"oran-rapps/internal/eventing"
	"oran-rapps/internal/observability/metrics"
)

// Publisher sends a text message per actuation envelope.
type Publisher struct {
	url    string
	client *http.Client
}

type payload struct {
	MsgType string `json:"msgtype"`
	Text    text   `json:"text"`
}

type text struct {
	Content string `json:"content"`
}

// NewPublisher constructs a Publisher posting to url.
func NewPublisher(url string) (*Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("webhook: empty url")
	}
	return &Publisher{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Publish posts a summary of env.
func (p *Publisher) Publish(ctx context.Context, env eventing.Envelope) error {
	err := p.post(ctx, env)
	if err != nil {
		metrics.IncEventPublish("webhook", metrics.ResultError)
		return err
	}
	metrics.IncEventPublish("webhook", metrics.ResultSuccess)
	return nil
}

func (p *Publisher) post(ctx context.Context, env eventing.Envelope) error {
	body, err := json.Marshal(payload{MsgType: "text", Text: text{Content: formatMessage(env)}})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook: http %d", resp.StatusCode)
	}
	return nil
}

func formatMessage(env eventing.Envelope) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] actuation\n", env.RApp)
	fmt.Fprintf(&b, "Entity: %s\n", env.Entity)
	var event eventing.ActuationEvent
	if err := json.Unmarshal(env.Payload, &event); err == nil {
		if event.Tag != "" {
			fmt.Fprintf(&b, "Tag: %s\n", event.Tag)
		}
		fmt.Fprintf(&b, "Action: %s -> %s\n", event.Action, event.Target)
		if event.Previous != "" {
			fmt.Fprintf(&b, "Previous: %s\n", event.Previous)
		}
	}
	fmt.Fprintf(&b, "Cycle: %s\n", env.CorrelationID)
	fmt.Fprintf(&b, "At: %s", env.OccurredAt.Format(time.RFC3339))
	return b.String()
}
