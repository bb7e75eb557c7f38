package reconcile

// StateCache maps entity ids to their last actuated state. It is not
// synchronized; only a guarded cycle mutates it.
type StateCache[S comparable] struct {
	entries map[string]S
}

// NewStateCache returns an empty cache.
func NewStateCache[S comparable]() *StateCache[S] {
	return &StateCache[S]{entries: make(map[string]S)}
}

// Get returns the cached state of id.
func (c *StateCache[S]) Get(id string) (S, bool) {
	s, ok := c.entries[id]
	return s, ok
}

// Set records state for id.
func (c *StateCache[S]) Set(id string, state S) {
	c.entries[id] = state
}

// Len returns the number of tracked entities.
func (c *StateCache[S]) Len() int {
	return len(c.entries)
}

// Differs reports whether target must be applied to id. An entity that was
// never actuated always differs, so the first decision is always applied.
func (c *StateCache[S]) Differs(id string, target S) bool {
	current, ok := c.entries[id]
	return !ok || current != target
}
