package store

import (
	"errors"
	"fmt"

	"github.com/ValentinKolb/dCap/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.RecordDB

// ICappedStore is the generic interface for interacting with a capped record store.
// Every operation is its own unit of work: writes are committed (or rolled back on
// failure) before the method returns.
type ICappedStore interface {
	// Insert appends a record and returns its id.
	// Log-ordered stores derive the id from the payload's ordering token.
	Insert(payload []byte) (id db.RecordID, err error)
	// InsertMany appends all payloads as one unit of work.
	// Either every payload is inserted or none is.
	InsertMany(payloads [][]byte) (ids []db.RecordID, err error)
	// Delete removes a single record. Deleting an unknown id is not an error.
	Delete(id db.RecordID) (err error)
	// Get returns the payload for an id. The boolean return value indicates whether the record was found.
	Get(id db.RecordID) (value []byte, loaded bool, err error)
	// Scan returns up to limit visible records starting at start in the given direction.
	// A limit <= 0 returns all records.
	Scan(start db.RecordID, dir db.Direction, limit int) (records []db.Record, err error)
	// TruncateAfter removes all records after end (and end itself if inclusive).
	TruncateAfter(end db.RecordID, inclusive bool) (err error)
	// FindLowerBoundBefore returns the highest visible id <= start, or db.InvalidID.
	FindLowerBoundBefore(start db.RecordID) (id db.RecordID, err error)
	// Stats returns capacity and size information about the store.
	// It is not guaranteed that all fields are up-to-date!
	Stats() (stats CappedStats, err error)
}

// CappedStats reports the configuration and state of a capped store
type CappedStats struct {
	Name            string          `json:"name"`
	Capped          bool            `json:"capped"`
	LogOrdered      bool            `json:"log_ordered"`
	MaxBytes        int64           `json:"maxSize"`
	MaxDocs         int64           `json:"max"`
	LowestInvisible db.RecordID     `json:"lowest_invisible"`
	Pending         int             `json:"pending"`
	Inserts         uint64          `json:"inserts"`
	Evictions       uint64          `json:"evictions"`
	EvictionSkips   uint64          `json:"eviction_skips"`
	EvictionErrors  uint64          `json:"eviction_errors"`
	DB              db.DatabaseInfo `json:"db"`
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("CappedStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code RetCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// IsCode reports whether err is (or wraps) an *Error with the given code.
func IsCode(err error, code RetCode) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.Code == code
}

// CodeOf returns the code of an *Error in err's chain.
// Nil errors map to RetCSuccess, other errors to RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	return RetCInternalError
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess               RetCode = iota // 0: Command executed successfully.
	RetCInternalError                        // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                 // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                     // 3: Invalid operation.
	RetCPayloadTooLarge                      // 4: Payload exceeds the byte capacity of the store.
	RetCMalformedKey                         // 5: Ordering token missing or out of range.
	RetCAboutToDeleteRejected                // 6: A delete notifier vetoed a deletion.
	RetCDuplicateKey                         // 7: A record with the derived id already exists.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCPayloadTooLarge:
		return "PayloadTooLarge"
	case RetCMalformedKey:
		return "MalformedKey"
	case RetCAboutToDeleteRejected:
		return "AboutToDeleteRejected"
	case RetCDuplicateKey:
		return "DuplicateKey"
	default:
		return "Unknown"
	}
}
