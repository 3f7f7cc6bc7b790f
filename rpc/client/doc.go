// Package client implements the RPC client of dCap. NewRPCStore returns a
// store.ICappedStore that forwards every operation to a shard of a remote server.
//
// Errors returned by the server keep their store.RetCode, so store.IsCode works on
// remote errors the same way as on local ones:
//
//	_, err := events.Insert(payload)
//	if store.IsCode(err, store.RetCPayloadTooLarge) {
//		// split the payload
//	}
//
// Usage Example:
//
//	config := common.ClientConfig{
//		Endpoints:     []string{"http://localhost:8080"},
//		TimeoutSecond: 5,
//		RetryCount:    3,
//	}
//
//	events, _ := client.NewRPCStore(100, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//
//	id, _ := events.Insert([]byte("event"))
//	records, _ := events.Scan(db.NullID, db.Backward, 10)
//
// Thread Safety:
//
//	The client is thread-safe as long as the transport is, which holds for the
//	HTTP transport.
package client
