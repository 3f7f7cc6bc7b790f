package serializer

import "github.com/ValentinKolb/dCap/rpc/common"

// IRPCSerializer is the interface for all Message Serializers
type IRPCSerializer interface {
	// Serialize serializes a Message into a byte array
	// It returns the serialized byte array and an error if any
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize deserializes a byte array into a Message.
	// All fields of msg are overwritten.
	Deserialize(b []byte, msg *common.Message) error
}
