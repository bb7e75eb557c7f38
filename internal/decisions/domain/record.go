package decisions

import (
	"context"
	"encoding/json"
	"time"
)

// Status is the outcome of one group decision.
type Status string

const (
	StatusActuated Status = "actuated"
	StatusNoAction Status = "no_action"
	StatusSkipped  Status = "skipped"
	StatusError    Status = "error"
)

// Record is one group decision taken in a reconciliation cycle.
type Record struct {
	ID       string          `json:"id"`
	CycleID  string          `json:"cycle_id"`
	RApp     string          `json:"rapp"`
	Entity   string          `json:"entity"`
	Tag      string          `json:"tag,omitempty"`
	Decision string          `json:"decision"`
	Target   string          `json:"target,omitempty"`
	Previous string          `json:"previous,omitempty"`
	Status   Status          `json:"status"`
	Detail   json.RawMessage `json:"detail,omitempty"`
	TS       time.Time       `json:"ts"`
}

// Recorder stores decisions.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// Lister reads decisions of one rApp in [from, to).
type Lister interface {
	List(ctx context.Context, rapp string, from, to time.Time) ([]Record, error)
}

// Store is a Recorder that can also be listed.
type Store interface {
	Recorder
	Lister
}
