// Package store provides the interface and error handling shared by all capped
// record stores. A capped store is a bounded, append-mostly collection of records
// that deletes its oldest records once a byte or record capacity is exceeded.
//
// The package focuses on:
//   - A unified interface (ICappedStore) for capped store operations across local and remote stores
//   - Pluggable storage backend architecture through the DBFactory pattern
//   - Typed error codes that survive transport over the RPC layer
//
// Key Components:
//
//   - ICappedStore Interface: The auto-commit surface of a capped store. Every method
//     is its own unit of work. Applications that need to group several writes use
//     the capped.Store directly and pass a txn.Txn.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages. IsCode and CodeOf look through wrapped errors, so callers
//     can react to RetCPayloadTooLarge or RetCAboutToDeleteRejected without string matching.
//
//   - DBFactory: A function type that abstracts the creation of the underlying db.RecordDB.
//
// Sub Packages:
//
//   - capped: The capped store itself (capacity enforcement, eviction, truncation,
//     visibility restricted iteration and log-ordered mode).
//
//   - visibility: Trackers for ids that were written but whose unit of work has not
//     finished yet. Readers must not see past the lowest such id.
//
//   - lstore: The local implementation of ICappedStore on top of a capped.Store.
//
// The RPC client (github.com/ValentinKolb/dCap/rpc/client) implements ICappedStore as
// well, so applications can switch between an embedded and a remote store without
// code changes.
package store
