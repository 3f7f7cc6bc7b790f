// Package lockmgr implements the non-blocking permits used to serialize
// eviction in capped stores.
//
// A permit is exclusive but never blocks: a caller that finds the permit taken
// simply gives up and continues. The capped store relies on this to keep inserts
// fast under contention. Only one inserter evicts at a time, the others skip
// eviction and leave the store transiently above its capacity until the next
// insert that wins the permit.
//
// Core Functionality:
//   - TryAcquire / Release with a single winner guaranteed by compare-and-swap
//   - Held to observe the permit state (used by diagnostics and tests)
//   - A permit manager that hands out exactly one permit per store name
//
// Scope:
//
//	Permits are per store. Two stores never share a permit unless the caller
//	passes the same permit to both of them. The permit manager makes it easy
//	to create the permit for a store by name, e.g. when the RPC server opens
//	its shards, while keeping that guarantee.
//
// Thread Safety:
//
//	All operations are safe for concurrent use. The manager is backed by a
//	concurrent map (github.com/puzpuzpuz/xsync/v3), so looking up a permit
//	never blocks other lookups.
//
// Usage Example:
//
//	permits := lockmgr.NewPermitManager()
//	permit := permits.Permit("events")
//
//	if permit.TryAcquire() {
//	    defer permit.Release()
//	    // evict
//	}
//	// permit taken: skip, someone else is evicting
package lockmgr
