package reconcile

import "sync"

// Guard is a single-slot, non-blocking mutual exclusion. A release taken
// before Reset does not free a slot acquired after it.
type Guard struct {
	mu   sync.Mutex
	held bool
	gen  uint64
}

// TryAcquire takes the slot if it is free. The returned release func is
// idempotent.
func (g *Guard) TryAcquire() (release func(), ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held {
		return nil, false
	}
	g.held = true
	gen := g.gen
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.gen == gen {
				g.held = false
			}
		})
	}, true
}

// Held reports whether the slot is taken.
func (g *Guard) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}

// Reset frees the slot whoever holds it.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	g.gen++
}
