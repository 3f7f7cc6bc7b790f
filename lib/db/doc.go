// Package db provides a standardized interface for ordered record database implementations.
// It defines the RecordDB interface that the capped store is layered on, so that the
// capacity and visibility logic never depends on a concrete storage engine.
//
// The package focuses on:
//   - A unified interface for ordered record operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - RecordID: A totally ordered int64 identifier. The zero value is the null id,
//     InvalidID is the explicit "no record" sentinel and every valid id lies strictly
//     between MinID and MaxID.
//
//   - RecordDB Interface: The core interface that all database implementations must satisfy.
//     It provides methods for inserting records with engine assigned ids (Insert) or
//     caller chosen ids (InsertAt), point reads (Get), deletion (Delete), ordered
//     iteration in both directions (NewIterator), size accounting (TotalBytes, TotalDocs)
//     and persistence (Save, Load).
//
//   - Iterator: A cursor over records in id order. Iterators must tolerate concurrent
//     deletes: a record removed after the iterator was opened is skipped.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports size statistics,
//     implementation type and implementation-specific metadata.
//
// Note on Id Assignment:
//   - Ids assigned by Insert are strictly increasing and always greater than every id
//     present in the database, including ids written with InsertAt.
//   - InsertAt never overwrites: writing an existing id fails with ErrDuplicateID.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/dCap/lib/db/engines/maple) provides an
// in-memory implementation of the RecordDB interface backed by a B-tree.
//
// The testing package (github.com/ValentinKolb/dCap/lib/db/testing) provides
// standardized tests and benchmarks for database implementations that satisfy the db.RecordDB interface.
//   - RunRecordDBTests: Runs a standardized test suite to validate implementations
//   - RunRecordDBBenchmarks: Provides performance benchmarks for comparing implementations
package db
