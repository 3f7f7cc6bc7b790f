package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

// testMessages creates a set of test messages with different fields filled
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Insert request and response
		*common.NewInsertRequest([]byte(`{"ts":{"t":1,"i":1}}`)),
		*common.NewInsertResponse(42, nil),

		// Batch insert
		*common.NewInsertManyRequest([][]byte{[]byte("a"), []byte("bb"), []byte("ccc")}),
		*common.NewInsertManyResponse([]db.RecordID{1, 2, 3}, nil),

		// Backward scan with limit and its response
		*common.NewScanRequest(db.MaxID, db.Backward, 10),
		*common.NewScanResponse([]db.Record{{ID: 7, Data: []byte("x")}, {ID: 5, Data: []byte("y")}}, nil),

		// Inclusive truncate, negative id
		*common.NewTruncateRequest(99, true),
		*common.NewLowerBoundResponse(db.InvalidID, nil),

		// Get response
		*common.NewGetResponse([]byte("payload"), true, nil),

		// Error response with code
		*common.NewInsertResponse(db.InvalidID, store.NewError(store.RetCPayloadTooLarge, "too large")),

		// Message with all fields filled
		{
			MsgType:   common.MsgTCustom,
			ID:        1 << 40,
			Limit:     3,
			Backward:  true,
			Inclusive: true,
			Value:     []byte("value"),
			Values:    [][]byte{[]byte("v1"), []byte("v2")},
			IDs:       []int64{-1, 0, 1},
			Ok:        true,
			Code:      uint64(store.RetCMalformedKey),
			Err:       "error",
			Meta:      []byte("test-meta-data"),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				if err = serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTCustom; msgType++ {
				data, err := serializer.Serialize(common.Message{MsgType: msgType})
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType, err)
					continue
				}

				var result common.Message
				if err = serializer.Deserialize(data, &result); err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType, err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s", msgType, result.MsgType)
				}
			}
		})
	}
}

// TestErrorCodeSurvivesRoundTrip checks that a client can rebuild the store error
func TestErrorCodeSurvivesRoundTrip(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			resp := common.NewDeleteResponse(store.Errorf(store.RetCAboutToDeleteRejected, "delete of %d rejected", 3))
			data, err := serializer.Serialize(*resp)
			if err != nil {
				t.Fatal(err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatal(err)
			}

			err = result.ResponseError()
			if !store.IsCode(err, store.RetCAboutToDeleteRejected) {
				t.Errorf("expected RetCAboutToDeleteRejected, got %v", err)
			}
		})
	}
}

// TestDeserializeOverwrites checks that fields of a reused message are reset
func TestDeserializeOverwrites(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			data, err := serializer.Serialize(*common.NewStatsRequest())
			if err != nil {
				t.Fatal(err)
			}

			reused := common.Message{ID: 5, Err: "old", Values: [][]byte{[]byte("old")}}
			if err := serializer.Deserialize(data, &reused); err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(reused, *common.NewStatsRequest()) {
				t.Errorf("expected a clean stats request, got %+v", reused)
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty slices but not nil",
			msg: common.Message{
				MsgType: common.MsgTCapInsertMany,
				Value:   []byte{},
				Values:  [][]byte{},
				IDs:     []int64{},
				Meta:    []byte{},
			},
		},
		{
			name: "Empty payload inside a batch",
			msg: common.Message{
				MsgType: common.MsgTCapInsertMany,
				Values:  [][]byte{{}, []byte("x")},
			},
		},
		{
			name: "Only boolean flags",
			msg: common.Message{
				MsgType:   common.MsgTCapScan,
				Backward:  true,
				Inclusive: true,
				Ok:        true,
			},
		},
		{
			name: "Extreme ids",
			msg: common.Message{
				MsgType: common.MsgTCapLowerBound,
				ID:      int64(db.MaxID),
				IDs:     []int64{int64(db.InvalidID), int64(db.MaxID)},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps the difference between nil and empty slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message doesn't match after round trip:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0},
			expectError: false,
		},
		{
			name:        "Missing id",
			data:        []byte{1, 0, byte(hasID), 0, 0, 0}, // claims an id but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for value",
			data:        []byte{1, 0, byte(hasValue), 0, 0, 0, 10}, // claims value length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Batch count larger than data",
			data:        []byte{1, 0, byte(hasIDs), 0xff, 0xff, 0xff, 0xff},
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
