package capped

import (
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store/visibility"
)

// Iterator is a cursor over the records of a capped store.
// Forward iterators hide records that are not visible yet (see visibility.Restriction).
//
// Thread-safety: An iterator must only be used by one goroutine.
type Iterator struct {
	inner       db.Iterator
	restriction visibility.Restriction
	peeked      *db.Record // record fetched by IsEOF but not returned yet
	done        bool       // set once the restriction ended the iteration
}

func newIterator(inner db.Iterator, restriction visibility.Restriction) *Iterator {
	return &Iterator{
		inner:       inner,
		restriction: restriction,
	}
}

// Next returns the next visible record.
// The boolean return value is false once the iterator is exhausted.
func (it *Iterator) Next() (db.Record, bool) {
	if it.peeked != nil {
		rec := *it.peeked
		it.peeked = nil
		return rec, true
	}
	return it.advance()
}

// IsEOF reports whether a following Next call would return no record
func (it *Iterator) IsEOF() bool {
	if it.peeked != nil {
		return false
	}
	rec, ok := it.advance()
	if !ok {
		return true
	}
	it.peeked = &rec
	return false
}

// Close releases the iterator
func (it *Iterator) Close() {
	it.done = true
	it.peeked = nil
	it.inner.Close()
}

// advance pulls records from the engine until one passes the restriction
func (it *Iterator) advance() (db.Record, bool) {
	for !it.done {
		rec, ok := it.inner.Next()
		if !ok {
			return db.Record{}, false
		}

		switch it.restriction.Check(rec.ID) {
		case visibility.Visible:
			return rec, true
		case visibility.Skip:
			continue
		case visibility.Stop:
			it.done = true
		}
	}
	return db.Record{}, false
}
