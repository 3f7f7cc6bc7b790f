package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for both requests and responses.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// General fields
	ID        int64  `json:"id,omitempty"`        // Used for: Delete, Get, Scan (start), Truncate (end), LowerBound (start and response), Insert (response)
	Limit     int64  `json:"limit,omitempty"`     // Used for: Scan
	Backward  bool   `json:"backward,omitempty"`  // Used for: Scan
	Inclusive bool   `json:"inclusive,omitempty"` // Used for: Truncate
	Value     []byte `json:"value,omitempty"`     // Used for: Insert (request), Get (response), Stats (response, json)

	// Batch fields
	Values [][]byte `json:"values,omitempty"` // Used for: InsertMany (request), Scan (response)
	IDs    []int64  `json:"ids,omitempty"`    // Used for: InsertMany (response), Scan (response)

	// Response only fields
	Ok   bool   `json:"ok,omitempty"`   // Used for: Get responses
	Code uint64 `json:"code,omitempty"` // store.RetCode of the error, 0 if no error
	Err  string `json:"err,omitempty"`  // Empty if no error, otherwise contains the error message

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Unused, can be used for additional Adapters
}

// SetError stores err in the message. Store errors keep their code and message.
func (m *Message) SetError(err error) {
	if err == nil {
		return
	}
	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		m.Code = uint64(storeErr.Code)
		m.Err = storeErr.Msg
		return
	}
	m.Code = uint64(store.RetCInternalError)
	m.Err = err.Error()
}

// ResponseError converts the error fields of the message back into a store.Error (nil if there is none)
func (m *Message) ResponseError() error {
	if m.MsgType != MsgTError && m.Err == "" && m.Code == 0 {
		return nil
	}
	code := store.RetCode(m.Code)
	if code == store.RetCSuccess {
		code = store.RetCInternalError
	}
	return store.NewError(code, m.Err)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// response creates a response of the given type with the error set
func response(t MessageType, err error) *Message {
	msg := &Message{
		MsgType: t,
	}
	msg.SetError(err)
	return msg
}

// NewInsertRequest creates a new Insert request
func NewInsertRequest(payload []byte) *Message {
	return &Message{
		MsgType: MsgTCapInsert,
		Value:   payload,
	}
}

// NewInsertResponse creates a new Insert response
func NewInsertResponse(id db.RecordID, err error) *Message {
	msg := response(MsgTCapInsert, err)
	msg.ID = int64(id)
	return msg
}

// NewInsertManyRequest creates a new InsertMany request
func NewInsertManyRequest(payloads [][]byte) *Message {
	return &Message{
		MsgType: MsgTCapInsertMany,
		Values:  payloads,
	}
}

// NewInsertManyResponse creates a new InsertMany response
func NewInsertManyResponse(ids []db.RecordID, err error) *Message {
	msg := response(MsgTCapInsertMany, err)
	msg.IDs = toInt64s(ids)
	return msg
}

// NewDeleteRequest creates a new Delete request
func NewDeleteRequest(id db.RecordID) *Message {
	return &Message{
		MsgType: MsgTCapDelete,
		ID:      int64(id),
	}
}

// NewDeleteResponse creates a new Delete response
func NewDeleteResponse(err error) *Message {
	return response(MsgTCapDelete, err)
}

// NewGetRequest creates a new Get request
func NewGetRequest(id db.RecordID) *Message {
	return &Message{
		MsgType: MsgTCapGet,
		ID:      int64(id),
	}
}

// NewGetResponse creates a new Get response
func NewGetResponse(value []byte, ok bool, err error) *Message {
	msg := response(MsgTCapGet, err)
	msg.Value = value
	msg.Ok = ok
	return msg
}

// NewScanRequest creates a new Scan request
func NewScanRequest(start db.RecordID, dir db.Direction, limit int) *Message {
	return &Message{
		MsgType:  MsgTCapScan,
		ID:       int64(start),
		Backward: dir == db.Backward,
		Limit:    int64(limit),
	}
}

// NewScanResponse creates a new Scan response, ids and payloads are stored in parallel slices
func NewScanResponse(records []db.Record, err error) *Message {
	msg := response(MsgTCapScan, err)
	if len(records) > 0 {
		msg.IDs = make([]int64, len(records))
		msg.Values = make([][]byte, len(records))
		for i, rec := range records {
			msg.IDs[i] = int64(rec.ID)
			msg.Values[i] = rec.Data
		}
	}
	return msg
}

// Records returns the records of a Scan response
func (m *Message) Records() ([]db.Record, error) {
	if len(m.IDs) != len(m.Values) {
		return nil, fmt.Errorf("scan response has %d ids but %d values", len(m.IDs), len(m.Values))
	}
	records := make([]db.Record, len(m.IDs))
	for i := range m.IDs {
		records[i] = db.Record{ID: db.RecordID(m.IDs[i]), Data: m.Values[i]}
	}
	return records, nil
}

// Direction returns the scan direction of the message
func (m *Message) Direction() db.Direction {
	if m.Backward {
		return db.Backward
	}
	return db.Forward
}

// NewTruncateRequest creates a new TruncateAfter request
func NewTruncateRequest(end db.RecordID, inclusive bool) *Message {
	return &Message{
		MsgType:   MsgTCapTruncate,
		ID:        int64(end),
		Inclusive: inclusive,
	}
}

// NewTruncateResponse creates a new TruncateAfter response
func NewTruncateResponse(err error) *Message {
	return response(MsgTCapTruncate, err)
}

// NewLowerBoundRequest creates a new FindLowerBoundBefore request
func NewLowerBoundRequest(start db.RecordID) *Message {
	return &Message{
		MsgType: MsgTCapLowerBound,
		ID:      int64(start),
	}
}

// NewLowerBoundResponse creates a new FindLowerBoundBefore response
func NewLowerBoundResponse(id db.RecordID, err error) *Message {
	msg := response(MsgTCapLowerBound, err)
	msg.ID = int64(id)
	return msg
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{
		MsgType: MsgTCapStats,
	}
}

// NewStatsResponse creates a new Stats response, the stats are json encoded in the value
func NewStatsResponse(stats store.CappedStats, err error) *Message {
	if err != nil {
		return response(MsgTCapStats, err)
	}
	value, err := json.Marshal(stats)
	msg := response(MsgTCapStats, err)
	msg.Value = value
	return msg
}

// Stats decodes the value of a Stats response
func (m *Message) Stats() (store.CappedStats, error) {
	var stats store.CappedStats
	if err := json.Unmarshal(m.Value, &stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

// NewCustomRequest creates a new Custom request
func NewCustomRequest(meta []byte) *Message {
	return &Message{
		MsgType: MsgTCustom,
		Meta:    meta,
	}
}

// NewCustomResponse creates a new Custom response
func NewCustomResponse(meta []byte, err error) *Message {
	msg := response(MsgTCustom, err)
	msg.Meta = meta
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(code store.RetCode, err string) *Message {
	return &Message{
		MsgType: MsgTError,
		Code:    uint64(code),
		Err:     err,
	}
}

func toInt64s(ids []db.RecordID) []int64 {
	if ids == nil {
		return nil
	}
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

// RecordIDs converts the IDs of the message
func (m *Message) RecordIDs() []db.RecordID {
	out := make([]db.RecordID, len(m.IDs))
	for i, id := range m.IDs {
		out[i] = db.RecordID(id)
	}
	return out
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in RPC communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTUnknown:       "unknown",
	MsgTSuccess:       "success",
	MsgTError:         "error",
	MsgTCapInsert:     "insert",
	MsgTCapInsertMany: "insertMany",
	MsgTCapDelete:     "delete",
	MsgTCapGet:        "get",
	MsgTCapScan:       "scan",
	MsgTCapTruncate:   "truncate",
	MsgTCapLowerBound: "lowerBound",
	MsgTCapStats:      "stats",
	MsgTCustom:        "custom",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// ICappedStore operations

	MsgTCapInsert     // Append a record
	MsgTCapInsertMany // Append a batch of records as one unit of work
	MsgTCapDelete     // Delete a record by id
	MsgTCapGet        // Read a record by id
	MsgTCapScan       // Read visible records in id order
	MsgTCapTruncate   // Delete all records after an id
	MsgTCapLowerBound // Find the highest visible id before an id
	MsgTCapStats      // Read capacity and size information

	// Custom operations

	MsgTCustom // Custom operation type
)
