// Package transport defines the interfaces for RPC communication in dCap. It
// provides a common contract that all transport implementations must fulfill,
// so the server and client do not depend on a protocol.
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles connection management and request sending.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     receive requests and route them to the handler together with their shard id.
//     Transports that can serve more than one route also expose the server metrics.
//
//   - ServerHandleFunc: Function type for request handling callbacks.
//
// The only implementation is the HTTP transport in the http sub package.
package transport
