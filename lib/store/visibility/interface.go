package visibility

import (
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/txn"
)

// Verdict is the decision of a Restriction for a single record
type Verdict uint8

const (
	Visible Verdict = iota // return the record
	Skip                   // hide the record, continue with the next one
	Stop                   // hide the record and end the iteration
)

func (v Verdict) String() string {
	switch v {
	case Visible:
		return "visible"
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Restriction decides whether an iterator may return a record.
// A nil Restriction admits every record.
type Restriction func(id db.RecordID) Verdict

// Check applies the restriction, a nil restriction returns Visible
func (r Restriction) Check(id db.RecordID) Verdict {
	if r == nil {
		return Visible
	}
	return r(id)
}

// ITracker tracks uncommitted record ids (see package documentation)
type ITracker interface {
	// AddUncommittedID marks id as pending.
	// When tx is not nil, committing tx calls Commit(id) and rolling it back calls Rollback(id).
	// Ids must be higher than every id seen before (ErrBelowBoundary), unless tx already
	// holds the id. Ids pending on another unit of work are rejected with ErrAlreadyPending.
	AddUncommittedID(tx *txn.Txn, id db.RecordID) error

	// Commit makes a pending id visible
	Commit(id db.RecordID)

	// Rollback drops a pending id
	Rollback(id db.RecordID)

	// LowestInvisible returns the lowest id a reader must not see
	LowestInvisible() db.RecordID

	// CanRead reports whether id lies below the visibility boundary
	CanRead(id db.RecordID) bool

	// Restriction returns the restriction for a new forward iterator
	Restriction() Restriction

	// Pending returns the number of uncommitted ids
	Pending() int

	// CanEvict reports whether id may be deleted on behalf of tx: it is either
	// committed or pending on tx itself
	CanEvict(tx *txn.Txn, id db.RecordID) bool
}
