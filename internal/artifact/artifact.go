// Package artifact defines the entries a resource node owns and persists
// through the metadata store (spec §3 "Artifact entry").
package artifact

import "time"

// State is the lifecycle of an artifact entry. Transitions only ever move
// forward: new -> current -> old.
type State string

const (
	StateNew     State = "new"
	StateCurrent State = "current"
	StateOld     State = "old"
)

// next returns the state an entry advances to when the metadata store
// closes a run (spec §4.4 "Entry-state rule"), or "" if the state does not
// advance (old stays old).
func (s State) next() State {
	switch s {
	case StateNew:
		return StateCurrent
	case StateCurrent:
		return StateOld
	default:
		return ""
	}
}

// Entry is an artifact entry, owned by a resource node and persisted via
// the metadata store.
type Entry struct {
	ID        string
	RunID     *int
	Resource  string
	Location  string
	State     State
	CreatedAt time.Time
	EndTime   *time.Time
}

// Advance applies the new->current->old rule in place. It is a no-op on an
// entry already in StateOld, enforcing the "never backwards" invariant.
func (e *Entry) Advance(at time.Time) {
	next := e.State.next()
	if next == "" {
		return
	}
	e.State = next
	if next == StateOld {
		e.EndTime = &at
	}
}

// Key is the dedup key merge_artifacts_table uses: (resource_node,
// location) per spec §9's resolved Open Question.
func (e *Entry) Key() string {
	return e.Resource + "\x00" + e.Location
}
