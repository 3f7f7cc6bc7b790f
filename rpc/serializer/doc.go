// Package serializer provides message serialization for the dCap RPC system. It
// defines a common interface and multiple implementations for converting
// common.Message values to bytes and back.
//
// Key Components:
//
//   - IRPCSerializer: Core interface that all serializer implementations must satisfy.
//
//   - binarySerializerImpl: Custom binary format. A 16 bit flag field marks the
//     present fields, boolean fields live in the flags only. Batches (InsertMany
//     payloads, Scan results) are written as a count followed by the elements. The
//     format keeps the difference between nil and empty slices.
//
//   - gobSerializerImpl: Implementation using Go's gob encoding.
//
//   - jsonSerializerImpl: Implementation using JSON encoding, useful for debugging
//     with curl. Message types are written by name, payloads as base64.
//
// Deserialize always overwrites every field of the target message, so messages can
// be reused between calls.
//
// Thread Safety:
//
//	All serializer implementations are stateless and safe for concurrent use
//	across multiple goroutines without additional synchronization.
//
// Usage:
//
//	serializer := serializer.NewBinarySerializer()
//	data, err := serializer.Serialize(*common.NewInsertRequest(payload))
//	// ... send data ...
//	var resp common.Message
//	err = serializer.Deserialize(receivedData, &resp)
package serializer
