// Package common provides the data structures and utilities shared by the RPC
// client and server of dCap.
//
// The package focuses on:
//   - Message protocol definition for the capped store operations
//   - Configuration structures for client and server components
//   - Custom logging implementation integrated with the Dragonboat logger facade
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication. Record ids travel as
//     int64, batches (InsertMany payloads, Scan results) as parallel Values and IDs
//     slices. Errors carry the store.RetCode next to the message, so clients can
//     rebuild a store.Error with the original code.
//
//   - MessageType: Enumeration of all supported operations.
//
//   - ServerConfig: Configuration of a server node, mainly the list of shards. Each
//     shard is one capped store, configured with ParseShards from a string like
//     "100=capped(4096),101=capped(1048576:1000),200=oplog(1048576)".
//
//   - ClientConfig: Configuration for client components, controlling endpoints,
//     timeouts and retry behavior.
//
//   - Logger: Custom logging implementation that plugs into Dragonboat's logger
//     factory and writes "LEVEL | name | message" lines.
package common
