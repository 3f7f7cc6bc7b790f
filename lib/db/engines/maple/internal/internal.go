package internal

import (
	"fmt"
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Entry Type (record with its id)
// --------------------------------------------------------------------------

// Entry stores a record inside the tree
type Entry struct {
	ID    db.RecordID // Record identifier (tree ordering key)
	Value []byte      // Record payload
}

func (e Entry) String() string {
	return fmt.Sprintf("Entry{ID: %d, Len: %d}", e.ID, len(e.Value))
}

// Pivot returns an entry that can be used to search the tree for the given id
func Pivot(id db.RecordID) Entry {
	return Entry{ID: id}
}

// lessByID orders entries by their record id
func lessByID(a, b Entry) bool {
	return a.ID < b.ID
}

// --------------------------------------------------------------------------
// Tree helpers
// --------------------------------------------------------------------------

// NewTree creates an empty entry tree with the given degree
func NewTree(degree int) *btree.BTreeG[Entry] {
	return btree.NewG[Entry](degree, lessByID)
}

// Seek returns the first entry at or after pos (Forward) or at or before pos (Backward).
//
// Thread-safety: The caller must hold at least a read lock on the tree.
func Seek(tree *btree.BTreeG[Entry], pos db.RecordID, dir db.Direction) (Entry, bool) {
	var (
		found Entry
		ok    bool
	)
	visit := func(e Entry) bool {
		found = e
		ok = true
		return false // stop after the first entry
	}

	if dir == db.Backward {
		tree.DescendLessOrEqual(Pivot(pos), visit)
	} else {
		tree.AscendGreaterOrEqual(Pivot(pos), visit)
	}
	return found, ok
}
