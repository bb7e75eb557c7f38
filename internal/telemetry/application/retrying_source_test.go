package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	telemetry "oran-rapps/internal/telemetry/domain"
)

type flakySource struct {
	mu       sync.Mutex
	failures int
	calls    int
	rows     []telemetry.Row
}

func (s *flakySource) Snapshot(context.Context) ([]telemetry.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection refused")
	}
	return s.rows, nil
}

func TestRetryingSource_BlocksUntilHealthy(t *testing.T) {
	inner := &flakySource{failures: 2, rows: []telemetry.Row{{Measurement: "m"}}}
	src, err := NewRetryingSource(inner, "influx", time.Millisecond, zaptest.NewLogger(t).Sugar())
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	rows, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if inner.calls != 3 {
		t.Fatalf("expected 3 calls, got %d", inner.calls)
	}
}

func TestRetryingSource_EmptyIsNotAnError(t *testing.T) {
	src, err := NewRetryingSource(&flakySource{}, "influx", time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	rows, err := src.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty snapshot, got %d rows", len(rows))
	}
}

func TestRetryingSource_StopsOnCancel(t *testing.T) {
	src, err := NewRetryingSource(&flakySource{failures: 1 << 30}, "influx", 5*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new source: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := src.Snapshot(ctx); err == nil {
		t.Fatalf("expected error after cancellation")
	}
}

func TestNewRetryingSource_Validates(t *testing.T) {
	if _, err := NewRetryingSource(nil, "x", time.Second, nil); err == nil {
		t.Fatalf("expected nil source error")
	}
	if _, err := NewRetryingSource(&flakySource{}, "x", 0, nil); err == nil {
		t.Fatalf("expected interval error")
	}
}
