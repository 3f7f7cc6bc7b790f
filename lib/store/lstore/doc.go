// Package lstore implements the local store.ICappedStore on top of a capped.Store.
//
// The capped store binds every write to a caller provided unit of work (txn.Txn).
// Callers that only want one record written, read or deleted at a time (the RPC
// server, the CLI, most applications) use the local store instead: each method
// creates its own unit of work and commits it before it returns.
//
// Key Features:
//   - Auto-committed Insert, Delete and TruncateAfter
//   - InsertMany writes a batch as a single unit of work. A failing payload (too
//     large, malformed ordering token, duplicate id) rolls back the whole batch,
//     including the records that were evicted on its behalf.
//   - Scan collects up to limit records from a visibility aware iterator
//   - Database errors are converted into store.Error values with a matching return
//     code, so the code survives serialization over the RPC layer
//
// Thread Safety:
//
//	All operations are thread-safe, the capped store provides the synchronization.
//	TruncateAfter is administrative and must not run concurrently with other writes.
//
// Usage Example:
//
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	events, err := lstore.NewLocalStoreWithFactory(factory, capped.Options{Name: "events", MaxDocs: 1000})
//
//	id, err := events.Insert([]byte("event"))
//	records, err := events.Scan(db.NullID, db.Forward, 10)
package lstore
