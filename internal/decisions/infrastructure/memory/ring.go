package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	decisions "oran-rapps/internal/decisions/domain"
)

// DefaultCapacity bounds the ring when no capacity is given.
const DefaultCapacity = 4096

// Ring keeps the most recent decisions in memory.
type Ring struct {
	mu    sync.Mutex
	buf   []decisions.Record
	next  int
	full  bool
	limit int
}

// NewRing returns a Ring holding up to capacity records.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]decisions.Record, capacity), limit: capacity}
}

// Record stores rec, evicting the oldest record when full.
func (r *Ring) Record(_ context.Context, rec decisions.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.TS.IsZero() {
		rec.TS = time.Now()
	}
	rec.TS = rec.TS.UTC()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rec
	r.next = (r.next + 1) % r.limit
	if r.next == 0 {
		r.full = true
	}
	return nil
}

// List returns retained records of rapp in [from, to), oldest first.
func (r *Ring) List(_ context.Context, rapp string, from, to time.Time) ([]decisions.Record, error) {
	r.mu.Lock()
	n := r.next
	if r.full {
		n = r.limit
	}
	var result []decisions.Record
	for i := 0; i < n; i++ {
		rec := r.buf[i]
		if rec.RApp != rapp || rec.TS.Before(from) || !rec.TS.Before(to) {
			continue
		}
		result = append(result, rec)
	}
	r.mu.Unlock()

	sort.SliceStable(result, func(i, j int) bool { return result[i].TS.Before(result[j].TS) })
	return result, nil
}

// Len returns the number of retained records.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return r.limit
	}
	return r.next
}
