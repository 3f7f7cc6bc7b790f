package oplog

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/buger/jsonparser"
)

// NamespacePrefix marks log-ordered stores
const NamespacePrefix = "local.oplog."

var (
	ErrMissingTimestamp = errors.New("oplog: no ts field")
	ErrInvalidTimestamp = errors.New("oplog: ts must be an object with integer fields t and i")
	ErrOpTimeOutOfRange = errors.New("oplog: ts out of range")
)

// --------------------------------------------------------------------------
// OpTime
// --------------------------------------------------------------------------

// OpTime is the ordering token of a log entry
type OpTime struct {
	Secs uint32 `json:"t"`
	Inc  uint32 `json:"i"`
}

func (t OpTime) String() string {
	return fmt.Sprintf("Timestamp(%d, %d)", t.Secs, t.Inc)
}

// Less orders op times by seconds, then increment
func (t OpTime) Less(other OpTime) bool {
	if t.Secs != other.Secs {
		return t.Secs < other.Secs
	}
	return t.Inc < other.Inc
}

// KeyForOpTime converts an OpTime into the record id it is stored under
func KeyForOpTime(t OpTime) (db.RecordID, error) {
	if t.Secs > math.MaxInt32 {
		return db.InvalidID, fmt.Errorf("%w: ts secs too high (%d)", ErrOpTimeOutOfRange, t.Secs)
	}
	if t.Inc > math.MaxInt32 {
		return db.InvalidID, fmt.Errorf("%w: ts inc too high (%d)", ErrOpTimeOutOfRange, t.Inc)
	}

	id := db.RecordID(int64(t.Secs)<<32 | int64(t.Inc))
	if id <= db.MinID {
		return db.InvalidID, fmt.Errorf("%w: ts too low (%s)", ErrOpTimeOutOfRange, t)
	}
	if id >= db.MaxID {
		return db.InvalidID, fmt.Errorf("%w: ts too high (%s)", ErrOpTimeOutOfRange, t)
	}
	return id, nil
}

// OpTimeForKey is the inverse of KeyForOpTime
func OpTimeForKey(id db.RecordID) OpTime {
	return OpTime{
		Secs: uint32(uint64(id) >> 32),
		Inc:  uint32(uint64(id) & math.MaxUint32),
	}
}

// IsOplogNamespace reports whether a store name selects log-ordered mode
func IsOplogNamespace(ns string) bool {
	return strings.HasPrefix(ns, NamespacePrefix)
}

// --------------------------------------------------------------------------
// Key Derivation
// --------------------------------------------------------------------------

// KeyDeriver derives record ids for log-ordered stores
type KeyDeriver interface {
	// ExtractKey reads the ordering token from a payload and returns its record id
	ExtractKey(payload []byte) (id db.RecordID, err error)

	// KeyForOpTime converts an ordering token into a record id
	KeyForOpTime(t OpTime) (id db.RecordID, err error)
}

type jsonKeyDeriver struct{}

// NewJSONKeyDeriver returns a KeyDeriver for JSON payloads with a {"ts": {"t": .., "i": ..}} field
func NewJSONKeyDeriver() KeyDeriver {
	return jsonKeyDeriver{}
}

func (jsonKeyDeriver) ExtractKey(payload []byte) (db.RecordID, error) {
	t, err := ExtractOpTime(payload)
	if err != nil {
		return db.InvalidID, err
	}
	return KeyForOpTime(t)
}

func (jsonKeyDeriver) KeyForOpTime(t OpTime) (db.RecordID, error) {
	return KeyForOpTime(t)
}

// ExtractOpTime reads the ts field of a JSON payload
func ExtractOpTime(payload []byte) (OpTime, error) {
	value, dataType, _, err := jsonparser.Get(payload, "ts")
	if errors.Is(err, jsonparser.KeyPathNotFoundError) || dataType == jsonparser.NotExist {
		return OpTime{}, ErrMissingTimestamp
	}
	if err != nil {
		return OpTime{}, fmt.Errorf("%w: %v", ErrInvalidTimestamp, err)
	}
	if dataType != jsonparser.Object {
		return OpTime{}, fmt.Errorf("%w: got %s", ErrInvalidTimestamp, dataType)
	}

	secs, err := jsonparser.GetInt(value, "t")
	if err != nil {
		return OpTime{}, fmt.Errorf("%w: t: %v", ErrInvalidTimestamp, err)
	}
	inc, err := jsonparser.GetInt(value, "i")
	if err != nil {
		return OpTime{}, fmt.Errorf("%w: i: %v", ErrInvalidTimestamp, err)
	}

	if secs < 0 || secs > math.MaxUint32 || inc < 0 || inc > math.MaxUint32 {
		return OpTime{}, fmt.Errorf("%w: ts (%d, %d)", ErrOpTimeOutOfRange, secs, inc)
	}
	return OpTime{Secs: uint32(secs), Inc: uint32(inc)}, nil
}
