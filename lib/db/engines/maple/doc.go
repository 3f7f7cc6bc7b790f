// Package maple implements an ordered in-memory record database. It provides a
// complete implementation of the db.RecordDB interface with a focus on thread safety,
// cheap appends at the high end of the id space and cheap deletes at the low end,
// which is exactly the access pattern of a capped collection.
//
// The package focuses on:
//   - Ordered storage of records in a B-tree (github.com/google/btree)
//   - Monotonic id assignment that never reuses ids
//   - Iterators that stay valid while records are deleted concurrently
//   - Persistent storage with consistent snapshots and an efficient binary encoding
//   - Lock-free size accounting for capacity checks
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.RecordDB. It owns the
//     tree, the next id handed out by Insert and atomic byte and document counters.
//     Inserts with a caller chosen id (InsertAt) move the next id past the written id,
//     so engine assigned ids are always above every stored id.
//
//   - Entry: The tree item, a record id and its payload. Entries are ordered by id only.
//
//   - iterator: A cursor that does not pin any tree node. Each Next re-seeks from the
//     id following the last returned record (or preceding it for backward iterators),
//     so records removed in the meantime are skipped and records appended after the
//     cursor position are picked up.
//
// Internal Mechanisms:
//
//   - Locking: A single RWMutex guards the tree. Reads and iterator steps take the read
//     lock, writes take the write lock. Size counters are atomics and can be read
//     without any lock.
//
//   - Snapshots: Save clones the tree under the read lock. The copy-on-write clone
//     is then written without blocking concurrent writers.
//
// Persistence Format:
//
// The serialization format consists of:
//  1. Magic number "MAPLERS\0" (8 bytes) for format identification
//  2. Version number (1 byte)
//  3. Next id (8 bytes)
//  4. Record count (8 bytes)
//  5. For each record in id order:
//     - Id (8 bytes)
//     - Value length (4 bytes) and value bytes
//
// Usage Example:
//
//	database := maple.NewMapleDB(nil) // Use default options
//
//	id, _ := database.Insert([]byte("value"))
//	value, found := database.Get(id)
//
//	iter := database.NewIterator(db.NullID, db.Forward)
//	defer iter.Close()
//	for rec, ok := iter.Next(); ok; rec, ok = iter.Next() {
//		fmt.Println(rec.ID, string(rec.Data))
//	}
package maple
