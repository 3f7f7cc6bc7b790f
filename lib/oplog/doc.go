// Package oplog derives record ids for log-ordered capped stores.
//
// Records of a log-ordered store are not numbered by the storage engine. Their id is
// derived from the ordering token ("ts") carried inside the payload, so that the id
// order is the log order. An ordering token is an OpTime, a pair of a seconds value
// and an increment that orders operations within the same second.
//
// Key layout:
//
//	id = secs << 32 | inc
//
// Both halves must fit into a signed 32 bit integer and the resulting id must be a
// valid db.RecordID (strictly between db.MinID and db.MaxID), so the zero OpTime is
// rejected.
//
// Payload format:
//
// The default KeyDeriver expects JSON payloads carrying the token as an object:
//
//	{"ts": {"t": 1700000000, "i": 3}, "op": "i", ...}
//
// The token is extracted with github.com/buger/jsonparser without decoding the rest
// of the payload.
//
// Namespaces:
//
// Stores named "local.oplog.<name>" are log-ordered by convention, see IsOplogNamespace.
package oplog
