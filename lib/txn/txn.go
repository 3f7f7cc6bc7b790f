package txn

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Change is a reversible modification registered with a Txn.
// Either callback may be nil.
type Change struct {
	Commit   func()
	Rollback func()
}

// State of a unit of work
type State uint8

const (
	StateActive State = iota
	StateCommitted
	StateRolledBack
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateCommitted:
		return "committed"
	case StateRolledBack:
		return "rolled back"
	default:
		return "unknown"
	}
}

var lastID atomic.Uint64

// Txn is a unit of work (see package documentation)
type Txn struct {
	id      uint64
	mu      sync.Mutex
	changes []Change
	state   State
}

// New creates a new active unit of work
func New() *Txn {
	return &Txn{id: lastID.Add(1)}
}

// ID returns the process-unique id of the unit of work
func (tx *Txn) ID() uint64 {
	return tx.id
}

// State returns the current state
func (tx *Txn) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Len returns the number of registered changes
func (tx *Txn) Len() int {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return len(tx.changes)
}

// RegisterChange adds a change to the unit of work.
// Registering on a finished Txn is a programming error and panics.
func (tx *Txn) RegisterChange(change Change) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != StateActive {
		panic(fmt.Sprintf("txn %d: register change on %s unit of work", tx.id, tx.state))
	}
	tx.changes = append(tx.changes, change)
}

// Commit finalizes all registered changes in registration order.
// Return a boolean indicating whether this call committed the unit of work.
func (tx *Txn) Commit() bool {
	changes, ok := tx.finish(StateCommitted)
	if !ok {
		return false
	}
	for _, c := range changes {
		if c.Commit != nil {
			c.Commit()
		}
	}
	return true
}

// Rollback undoes all registered changes in reverse registration order.
// Return a boolean indicating whether this call rolled the unit of work back.
func (tx *Txn) Rollback() bool {
	changes, ok := tx.finish(StateRolledBack)
	if !ok {
		return false
	}
	for i := len(changes) - 1; i >= 0; i-- {
		if changes[i].Rollback != nil {
			changes[i].Rollback()
		}
	}
	return true
}

// finish moves the Txn into a final state and hands out the registered changes
func (tx *Txn) finish(state State) ([]Change, bool) {
	tx.mu.Lock()
	defer tx.mu.Unlock()

	if tx.state != StateActive {
		return nil, false
	}
	tx.state = state
	changes := tx.changes
	tx.changes = nil
	return changes, true
}
