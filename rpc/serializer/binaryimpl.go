package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dCap/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), flags (2 bytes, big endian), then every present field
// in flag order. Boolean fields are stored in the flags only.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasID uint16 = 1 << iota
	hasLimit
	isBackward
	isInclusive
	hasValue
	hasValues
	hasIDs
	isOk
	hasCode
	hasErr
	hasMeta
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	out := make([]byte, headerSize, b.sizeBytes(msg))
	out[0] = byte(msg.MsgType)

	var flags uint16
	if msg.ID != 0 {
		flags |= hasID
		out = binary.BigEndian.AppendUint64(out, uint64(msg.ID))
	}
	if msg.Limit != 0 {
		flags |= hasLimit
		out = binary.BigEndian.AppendUint64(out, uint64(msg.Limit))
	}
	if msg.Backward {
		flags |= isBackward
	}
	if msg.Inclusive {
		flags |= isInclusive
	}
	if msg.Value != nil {
		flags |= hasValue
		out = appendBytes(out, msg.Value)
	}
	if msg.Values != nil {
		flags |= hasValues
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.Values)))
		for _, v := range msg.Values {
			out = appendBytes(out, v)
		}
	}
	if msg.IDs != nil {
		flags |= hasIDs
		out = binary.BigEndian.AppendUint32(out, uint32(len(msg.IDs)))
		for _, id := range msg.IDs {
			out = binary.BigEndian.AppendUint64(out, uint64(id))
		}
	}
	if msg.Ok {
		flags |= isOk
	}
	if msg.Code != 0 {
		flags |= hasCode
		out = binary.BigEndian.AppendUint64(out, msg.Code)
	}
	if msg.Err != "" {
		flags |= hasErr
		out = appendBytes(out, []byte(msg.Err))
	}
	if msg.Meta != nil {
		flags |= hasMeta
		out = appendBytes(out, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(out[1:headerSize], flags)
	return out, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:headerSize])
	r := reader{data: data, pos: headerSize}

	if flags&hasID != 0 {
		msg.ID = int64(r.uint64("id"))
	}
	if flags&hasLimit != 0 {
		msg.Limit = int64(r.uint64("limit"))
	}
	msg.Backward = flags&isBackward != 0
	msg.Inclusive = flags&isInclusive != 0
	if flags&hasValue != 0 {
		msg.Value = r.bytes("value")
	}
	if flags&hasValues != 0 {
		n := r.count("values", 4)
		msg.Values = make([][]byte, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Values = append(msg.Values, r.bytes("values"))
		}
	}
	if flags&hasIDs != 0 {
		n := r.count("ids", 8)
		msg.IDs = make([]int64, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.IDs = append(msg.IDs, int64(r.uint64("ids")))
		}
	}
	msg.Ok = flags&isOk != 0
	if flags&hasCode != 0 {
		msg.Code = r.uint64("code")
	}
	if flags&hasErr != 0 {
		msg.Err = string(r.bytes("err"))
	}
	if flags&hasMeta != 0 {
		msg.Meta = r.bytes("meta")
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	if msg.ID != 0 {
		size += 8
	}
	if msg.Limit != 0 {
		size += 8
	}
	if msg.Value != nil {
		size += 4 + len(msg.Value)
	}
	if msg.Values != nil {
		size += 4
		for _, v := range msg.Values {
			size += 4 + len(v)
		}
	}
	if msg.IDs != nil {
		size += 4 + 8*len(msg.IDs)
	}
	if msg.Code != 0 {
		size += 8
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}
	return size
}

// appendBytes writes a length prefixed byte slice
func appendBytes(out []byte, b []byte) []byte {
	out = binary.BigEndian.AppendUint32(out, uint32(len(b)))
	return append(out, b...)
}

// reader reads fields from a serialized message and remembers the first error
type reader struct {
	data []byte
	pos  int
	err  error
}

func (r *reader) need(field string, n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *reader) uint32(field string) uint32 {
	if !r.need(field, 4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v
}

func (r *reader) uint64(field string) uint64 {
	if !r.need(field, 8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v
}

// count reads an element count and checks that the remaining data can hold it
func (r *reader) count(field string, minElemSize int) int {
	n := int(r.uint32(field))
	if !r.need(field, n*minElemSize) {
		return 0
	}
	return n
}

// bytes reads a length prefixed byte slice, the result is a copy and never nil
func (r *reader) bytes(field string) []byte {
	n := int(r.uint32(field))
	if !r.need(field, n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.pos:r.pos+n])
	r.pos += n
	return b
}
