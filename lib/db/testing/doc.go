// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.RecordDB interface.
//
// The package contains:
//   - testing: A comprehensive test suite for validating conformance to the RecordDB interface contract
//     (id assignment, InsertAt, deletes, size accounting, iteration in both directions,
//     iterators under concurrent deletes, persistence and concurrent inserts)
//   - benchmark: Performance tests for measuring throughput of common database operations,
//     including the delete-oldest pattern used by capped stores
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.RecordDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunRecordDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunRecordDBBenchmarks(b, "MyDatabase", factory)
package testing
