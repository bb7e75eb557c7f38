package eventing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	envs []Envelope
	err  error
}

func (r *recordingPublisher) Publish(_ context.Context, env Envelope) error {
	r.envs = append(r.envs, env)
	return r.err
}

func TestBuildEnvelope(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("x", 3600))
	env, err := BuildEnvelope(ActuationEvent{RApp: "energy-saving", Entity: "S1/B13/C1_me", Action: "deactivate", Target: "off"},
		Meta{OccurredAt: at, CorrelationID: "cycle-1"})
	require.NoError(t, err)

	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, EventTypeActuation, env.EventType)
	assert.Equal(t, "cycle-1", env.CorrelationID)
	assert.Equal(t, at.UTC(), env.OccurredAt)
	assert.Equal(t, 1, env.SchemaVersion)

	var payload ActuationEvent
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, "off", payload.Target)
}

func TestBuildEnvelope_DefaultsCorrelationToEventID(t *testing.T) {
	env, err := BuildEnvelope(ActuationEvent{Entity: "nssi"}, Meta{})
	require.NoError(t, err)
	assert.Equal(t, env.EventID, env.CorrelationID)

	_, err = BuildEnvelope(ActuationEvent{}, Meta{})
	assert.Error(t, err)
}

func TestEmit_UsesCycleIDFromContext(t *testing.T) {
	pub := &recordingPublisher{}
	ctx := WithCycleID(context.Background(), "cycle-42")
	Emit(ctx, pub, ActuationEvent{RApp: "slice-prb", Entity: "nssi-1", Action: "increase", Target: "300"}, zaptest.NewLogger(t).Sugar())

	require.Len(t, pub.envs, 1)
	assert.Equal(t, "cycle-42", pub.envs[0].CorrelationID)
	assert.Equal(t, "nssi-1", pub.envs[0].Entity)
}

func TestMultiPublisher_JoinsErrors(t *testing.T) {
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: errors.New("broker down")}
	multi := NewMultiPublisher(ok, nil, failing, NewLoggingPublisher(nil))
	assert.Equal(t, 3, multi.Len())

	env, _ := BuildEnvelope(ActuationEvent{Entity: "e"}, Meta{})
	err := multi.Publish(context.Background(), env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
	assert.Len(t, ok.envs, 1)
	assert.Len(t, failing.envs, 1)
}
