// Package util provides utility components for
// database implementations that satisfy the db.RecordDB interface
// and for the store layers built on top of them.
//
// The package contains:
//   - statistics: A SizeHistogram for tracking the distribution of record payload sizes
//   - mapheap: A generic priority queue that also supports key-based access, used to keep
//     the lowest pending log position available while positions finish out of order
//
// This package is particularly useful for:
//   - Database developers implementing the RecordDB interface
//   - Visibility tracking and other priority queue systems
//   - Monitoring systems that need to track payload size distribution metrics
package util
