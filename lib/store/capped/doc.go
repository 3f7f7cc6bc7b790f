// Package capped implements a bounded, self-truncating record store on top of a
// db.RecordDB.
//
// A capped store has a byte capacity and an optional record capacity. Every insert
// is followed by an eviction pass that deletes the oldest records until the store is
// back within its capacity. Records are never updated in place, the store is an
// append-only log with a moving tail.
//
// Modes:
//
//   - Generic: the database assigns increasing ids on insert.
//   - Log-ordered: the id is derived from the ordering token ("ts") inside the payload
//     (see package oplog). Stores named "local.oplog.*" are log-ordered automatically.
//     An entry must lie after every position written or reserved before, otherwise it
//     is rejected with RetCInvalidOperation (RetCDuplicateKey if the record exists).
//
// Units of work:
//
// Every write is bound to a txn.Txn. Inserted records stay invisible to forward
// iterators until the Txn commits. Rolling the Txn back removes the record and
// restores records that were evicted or deleted on its behalf. Visibility is tracked
// by a visibility.ITracker that is chosen once, when the store is created.
//
// Eviction:
//
//   - Only one caller evicts at a time. The permit (lockmgr.IPermit) is acquired
//     without waiting, callers that do not get it skip eviction. Under contention the
//     store can therefore exceed its capacity for a while. The next uncontended
//     insert brings it back within bounds.
//   - A pass stops at an oldest record that another unfinished Txn still owns. Such a
//     record is never deleted on behalf of someone else, so a rollback cannot bring it
//     back. A later insert retries once the owner finished.
//   - Every delete asks the DeleteNotifier first. A veto aborts the eviction pass
//     with RetCAboutToDeleteRejected but never fails the insert that triggered it.
//   - Eviction failures are logged and counted (dcap_eviction_errors_total).
//
// Iteration:
//
// ForwardIterator applies the tracker's restriction. For generic stores records
// that are not committed yet are skipped. For log-ordered stores the iteration ends
// at the oldest uncommitted log position, so tailing readers never miss an entry that
// commits late. BackwardIterator is never restricted.
//
// Usage Example:
//
//	s, err := capped.NewCappedStore(maple.NewMapleDB(nil), capped.Options{
//	    Name:     "events",
//	    MaxBytes: 1 << 20,
//	    MaxDocs:  1000,
//	})
//
//	tx := txn.New()
//	defer tx.Rollback()
//	id, err := s.Insert(tx, []byte("event"), true)
//	tx.Commit()
//
//	iter := s.ForwardIterator(db.NullID)
//	defer iter.Close()
//	for rec, ok := iter.Next(); ok; rec, ok = iter.Next() {
//	    // ...
//	}
//
// Metrics:
//
// Every store owns a metrics.Set (github.com/VictoriaMetrics/metrics) with insert,
// eviction and size metrics labeled by the store name, see WritePrometheus.
package capped
