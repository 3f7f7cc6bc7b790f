// Package rpc makes capped stores available over the network. It is the
// communication layer between clients and a dCap server.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions and the HTTP implementation,
//     which also serves the Prometheus metrics of the server.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RPC client implementing store.ICappedStore, so applications can switch
//     between an embedded and a remote store transparently.
//
//   - server: RPC server that creates one capped store per configured shard and
//     dispatches incoming requests to it.
package rpc
