// Package server implements the RPC server of dCap. It creates one capped store per
// configured shard and routes incoming requests to it.
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.ICappedStore.
//
//   - NewICappedStoreServerAdapter: Factory function creating an adapter that
//     translates RPC requests to store.ICappedStore method calls.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Shards:
//
//	Every shard is an in-memory capped store (maple engine) wrapped into a local
//	auto-commit store. Shards of type oplog are log-ordered: record ids are derived
//	from the "ts" field of the payload. Each store gets its own eviction permit from
//	a shared permit manager, so eviction in one shard never blocks another one.
//
// Usage Example:
//
//	shards, _ := common.ParseShards("100=capped(4096),200=oplog(1048576)")
//	config := common.ServerConfig{
//		Shards:        shards,
//		Endpoint:      "0.0.0.0:8080",
//		TimeoutSecond: 5,
//		LogLevel:      "info",
//	}
//
//	s := server.NewRPCServer(
//		config,
//		http.NewHttpServerTransport(),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		log.Fatalf("Server error: %v", err)
//	}
//
// Metrics:
//
//	The server registers a metrics function with the transport. It writes the
//	process metrics of github.com/VictoriaMetrics/metrics followed by the counters
//	and gauges of every shard, ordered by shard id.
//
// Thread Safety:
//
//	The server handles concurrent requests. Serve is not thread-safe and should be
//	called only once.
package server
