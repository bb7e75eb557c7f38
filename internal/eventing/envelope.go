package eventing

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// EventTypeActuation marks an envelope carrying an ActuationEvent.
const EventTypeActuation = "rapp.actuation"

// ActuationEvent reports a state change applied to a managed entity.
type ActuationEvent struct {
	RApp     string `json:"rapp"`
	Entity   string `json:"entity"`
	Tag      string `json:"tag,omitempty"`
	Action   string `json:"action"`
	Target   string `json:"target"`
	Previous string `json:"previous,omitempty"`
}

// Envelope wraps event payload with metadata.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id"`
	RApp          string          `json:"rapp"`
	Entity        string          `json:"entity"`
	SchemaVersion int             `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}

// Meta provides envelope overrides.
type Meta struct {
	EventID       string
	OccurredAt    time.Time
	CorrelationID string
}

// BuildEnvelope wraps an actuation event. Missing metadata is filled with a
// fresh id and the current time; the correlation id defaults to the event id.
func BuildEnvelope(event ActuationEvent, meta Meta) (Envelope, error) {
	if event.Entity == "" {
		return Envelope{}, errors.New("eventing: empty entity")
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return Envelope{}, err
	}

	eventID := meta.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	occurredAt := meta.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}
	correlationID := meta.CorrelationID
	if correlationID == "" {
		correlationID = eventID
	}

	return Envelope{
		EventID:       eventID,
		EventType:     EventTypeActuation,
		OccurredAt:    occurredAt.UTC(),
		CorrelationID: correlationID,
		RApp:          event.RApp,
		Entity:        event.Entity,
		SchemaVersion: 1,
		Payload:       payload,
	}, nil
}
