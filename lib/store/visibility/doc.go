// Package visibility tracks which record ids of a capped store may be read.
//
// Inserts into a capped store become durable in the storage engine before the caller
// commits its unit of work. Until then the record must stay invisible to readers, and
// so must every record with a higher id, otherwise a reader that tails the store could
// skip over a record that commits later and never see it.
//
// A tracker keeps the set of uncommitted ids and the highest id it has ever seen.
// The visibility boundary is
//
//	LowestInvisible = min(pending)        if pending is not empty
//	LowestInvisible = highestSeen + 1     otherwise
//
// and an id is readable when it lies strictly below the boundary.
//
// Variants:
//
//   - Capped tracker (NewCappedTracker): the restriction handed to iterators is a live
//     predicate. Every record is checked against the boundary at the time it is
//     visited. Invisible records are skipped and the iterator keeps going.
//
//   - Oplog tracker (NewOplogTracker): the restriction snapshots the boundary when the
//     iterator is created and ends the iteration there. Tailing readers therefore never
//     observe a gap: they stop in front of the oldest pending log position and resume
//     from there with a new iterator.
//
//   - Noop tracker (NewNoopTracker): every id is readable. Used when visibility tracking
//     is disabled.
//
// Units of work:
//
// AddUncommittedID binds the pending id to a txn.Txn. Committing the Txn makes the id
// visible, rolling it back removes it from the pending set. A pending id belongs to
// exactly one Txn (ErrAlreadyPending), and new ids must lie above every id the tracker
// has seen (ErrBelowBoundary), which keeps LowestInvisible from moving backwards.
// CanEvict tells the store whether a record may be deleted on behalf of a Txn.
//
// Thread Safety:
//
//	All trackers are safe for concurrent use. State changes are serialized by one mutex
//	per tracker.
package visibility
