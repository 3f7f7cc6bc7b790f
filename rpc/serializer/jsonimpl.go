package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/dCap/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding.
// Payloads are base64 encoded, message types are written by name.
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return json.Marshal(msg)
}

func (j jsonSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return json.Unmarshal(b, msg)
}
