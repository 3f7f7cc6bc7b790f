// Package http implements the HTTP transport layer for RPC communication in dCap.
// It provides implementations of the transport interfaces defined in the parent
// package.
//
// Routes:
//
//	POST /{shardId}   serialized request for the shard, the body of the response is the serialized reply
//	GET  /metrics     Prometheus text format metrics of the process and of every served store
//
// Key Components:
//
//   - httpClientTransport: Implements IRPCClientTransport. Endpoints are selected
//     round-robin, failed requests are retried up to the configured retry count.
//     Endpoints without scheme are treated as http.
//
//   - httpServerTransport: Implements IRPCServerTransport. Requests are routed to the
//     registered handler based on the shard ID in the URL path. With log level debug
//     every request is logged with its status code and duration.
//
// Thread Safety:
//
//	The client transport is thread-safe and can be used concurrently. It uses
//	an atomic counter for the round-robin endpoint selection.
package http
