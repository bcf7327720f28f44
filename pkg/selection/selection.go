// Package selection tracks which single user is focused in the dashboard.
// The tracker holds an id only; records are always looked up through a
// Resolver so they never go stale.
package selection

import (
	"sync"

	"github.com/ha1tch/friendgraph/pkg/models"
)

// State is the tracker state
type State int

const (
	Empty State = iota
	Focused
)

func (s State) String() string {
	if s == Focused {
		return "focused"
	}
	return "empty"
}

// Resolver looks users up by id
type Resolver interface {
	FindByID(id string) (models.User, bool)
}

// Tracker is a two-state machine: Empty or Focused(id)
type Tracker struct {
	mu sync.RWMutex
	id string
}

// New creates an empty tracker
func New() *Tracker {
	return &Tracker{}
}

// State returns the current state
func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.id == "" {
		return Empty
	}
	return Focused
}

// ID returns the focused id, or "" when empty
func (t *Tracker) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

// Is reports whether id is the focused id
func (t *Tracker) Is(id string) bool {
	return id != "" && t.ID() == id
}

// Select focuses id if it resolves, otherwise empties the tracker
func (t *Tracker) Select(id string, r Resolver) (models.User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := r.FindByID(id)
	if !ok || id == "" {
		t.id = ""
		return models.User{}, false
	}
	t.id = id
	return u, true
}

// Clear empties the tracker
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = ""
}

// Reconcile re-resolves the held id after a refresh. The tracker stays
// focused if the id still resolves and becomes empty otherwise.
func (t *Tracker) Reconcile(r Resolver) (models.User, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.id == "" {
		return models.User{}, false
	}
	u, ok := r.FindByID(t.id)
	if !ok {
		t.id = ""
		return models.User{}, false
	}
	return u, true
}

// Current returns the live record for the focused id
func (t *Tracker) Current(r Resolver) (models.User, bool) {
	id := t.ID()
	if id == "" {
		return models.User{}, false
	}
	return r.FindByID(id)
}
