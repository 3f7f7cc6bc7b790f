package visibility

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/db/util"
	"github.com/ValentinKolb/dCap/lib/txn"
)

var (
	// ErrBelowBoundary is returned for ids at or below the highest id the tracker has seen.
	// Readers may already have moved past them.
	ErrBelowBoundary = errors.New("visibility: id at or below the highest seen id")

	// ErrAlreadyPending is returned for ids that are pending on another unit of work
	ErrAlreadyPending = errors.New("visibility: id is pending on another unit of work")
)

// --------------------------------------------------------------------------
// Shared tracker state
// --------------------------------------------------------------------------

// idTracker holds the pending ids, their units of work and the highest id seen so far
type idTracker struct {
	mu          sync.Mutex
	pending     *util.MapHeap[db.RecordID, db.RecordID] // uncommitted ids, min on top
	owners      map[db.RecordID]*txn.Txn                // unit of work of every pending id (nil = none)
	highestSeen db.RecordID
}

func (t *idTracker) init(highestSeen db.RecordID) {
	t.pending = util.NewMapHeap[db.RecordID, db.RecordID]()
	t.owners = make(map[db.RecordID]*txn.Txn)
	t.highestSeen = highestSeen
}

// add marks id as pending and binds it to tx.
// Adding an id that tx already holds is a no-op.
func (t *idTracker) add(tx *txn.Txn, id db.RecordID) error {
	t.mu.Lock()
	if owner, ok := t.owners[id]; ok {
		t.mu.Unlock()
		if tx != nil && owner == tx {
			return nil
		}
		return fmt.Errorf("%w: %d", ErrAlreadyPending, id)
	}
	if id <= t.highestSeen {
		highestSeen := t.highestSeen
		t.mu.Unlock()
		return fmt.Errorf("%w: %d <= %d", ErrBelowBoundary, id, highestSeen)
	}
	t.pending.AddItem(id, id)
	t.owners[id] = tx
	t.highestSeen = id
	t.mu.Unlock()

	if tx != nil {
		tx.RegisterChange(txn.Change{
			Commit:   func() { t.remove(id) },
			Rollback: func() { t.remove(id) },
		})
	}
	return nil
}

func (t *idTracker) remove(id db.RecordID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending.RemoveByKey(id)
	delete(t.owners, id)
}

// canEvict reports whether id is not pending or pending on tx itself
func (t *idTracker) canEvict(tx *txn.Txn, id db.RecordID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	owner, ok := t.owners[id]
	return !ok || (tx != nil && owner == tx)
}

func (t *idTracker) lowestInvisible() db.RecordID {
	t.mu.Lock()
	defer t.mu.Unlock()

	if lowest, _, ok := t.pending.Peek(); ok {
		return lowest
	}
	return t.highestSeen + 1
}

func (t *idTracker) size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}

// --------------------------------------------------------------------------
// Capped tracker (live restriction)
// --------------------------------------------------------------------------

// CappedTracker is the tracker for generic capped stores
type CappedTracker struct {
	idTracker
}

// NewCappedTracker creates a tracker whose ids up to highestSeen are visible
func NewCappedTracker(highestSeen db.RecordID) *CappedTracker {
	t := &CappedTracker{}
	t.init(highestSeen)
	return t
}

// Interface Methods (docu see ITracker)

func (t *CappedTracker) AddUncommittedID(tx *txn.Txn, id db.RecordID) error { return t.add(tx, id) }

func (t *CappedTracker) Commit(id db.RecordID) { t.remove(id) }

func (t *CappedTracker) Rollback(id db.RecordID) { t.remove(id) }

func (t *CappedTracker) LowestInvisible() db.RecordID { return t.lowestInvisible() }

func (t *CappedTracker) CanRead(id db.RecordID) bool { return id < t.lowestInvisible() }

func (t *CappedTracker) Pending() int { return t.size() }

func (t *CappedTracker) CanEvict(tx *txn.Txn, id db.RecordID) bool { return t.canEvict(tx, id) }

// Restriction re-evaluates the boundary for every record
func (t *CappedTracker) Restriction() Restriction {
	return func(id db.RecordID) Verdict {
		if t.CanRead(id) {
			return Visible
		}
		return Skip
	}
}

// --------------------------------------------------------------------------
// Oplog tracker (snapshot restriction)
// --------------------------------------------------------------------------

// OplogTracker is the tracker for log-ordered capped stores
type OplogTracker struct {
	idTracker
}

// NewOplogTracker creates a tracker whose ids up to highestSeen are visible
func NewOplogTracker(highestSeen db.RecordID) *OplogTracker {
	t := &OplogTracker{}
	t.init(highestSeen)
	return t
}

// Interface Methods (docu see ITracker)

func (t *OplogTracker) AddUncommittedID(tx *txn.Txn, id db.RecordID) error { return t.add(tx, id) }

func (t *OplogTracker) Commit(id db.RecordID) { t.remove(id) }

func (t *OplogTracker) Rollback(id db.RecordID) { t.remove(id) }

func (t *OplogTracker) LowestInvisible() db.RecordID { return t.lowestInvisible() }

func (t *OplogTracker) CanRead(id db.RecordID) bool { return id < t.lowestInvisible() }

func (t *OplogTracker) Pending() int { return t.size() }

func (t *OplogTracker) CanEvict(tx *txn.Txn, id db.RecordID) bool { return t.canEvict(tx, id) }

// Restriction freezes the boundary now and stops the iteration when it is reached
func (t *OplogTracker) Restriction() Restriction {
	boundary := t.lowestInvisible()
	return func(id db.RecordID) Verdict {
		if id < boundary {
			return Visible
		}
		return Stop
	}
}

// --------------------------------------------------------------------------
// Noop tracker
// --------------------------------------------------------------------------

// NoopTracker makes every id visible
type NoopTracker struct{}

// NewNoopTracker creates a tracker that never hides a record
func NewNoopTracker() NoopTracker {
	return NoopTracker{}
}

// Interface Methods (docu see ITracker)

func (NoopTracker) AddUncommittedID(*txn.Txn, db.RecordID) error { return nil }

func (NoopTracker) Commit(db.RecordID) {}

func (NoopTracker) Rollback(db.RecordID) {}

func (NoopTracker) LowestInvisible() db.RecordID { return db.MaxID }

func (NoopTracker) CanRead(db.RecordID) bool { return true }

func (NoopTracker) Restriction() Restriction { return nil }

func (NoopTracker) Pending() int { return 0 }

func (NoopTracker) CanEvict(*txn.Txn, db.RecordID) bool { return true }

// compile time interface checks
var (
	_ ITracker = (*CappedTracker)(nil)
	_ ITracker = (*OplogTracker)(nil)
	_ ITracker = NoopTracker{}
)
