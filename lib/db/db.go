package db

import (
	"errors"
	"io"
	"math"
	"strconv"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureInsert   Feature = 1 << iota // Support for Insert operations (engine assigned ids)
	FeatureInsertAt                     // Support for InsertAt operations (caller chosen ids)
	FeatureGet                          // Support for Get operations
	FeatureDelete                       // Support for Delete operations
	FeatureIterate                      // Support for forward and backward iterators
	FeatureSave                         // Support for Save operations
	FeatureLoad                         // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureInsert:
		return "Insert"
	case FeatureInsertAt:
		return "InsertAt"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureIterate:
		return "Iterate"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int64          `json:"size_bytes"`
	DocCount          int64          `json:"doc_count"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Record Identifiers
// --------------------------------------------------------------------------

// RecordID is the totally ordered identifier of a record.
// The zero value is the null id, which is never assigned to a record.
type RecordID int64

const (
	NullID    RecordID = 0             // Unset id, also used as "from the start/end" for iterators
	InvalidID RecordID = -1            // Explicit "no such record" sentinel
	MinID     RecordID = 0             // Every valid id is strictly greater than MinID
	MaxID     RecordID = math.MaxInt64 // Every valid id is strictly lower than MaxID
)

// IsValid reports whether the id can address a record
func (id RecordID) IsValid() bool {
	return id > MinID && id < MaxID
}

func (id RecordID) String() string {
	switch id {
	case InvalidID:
		return "RecordID(invalid)"
	case NullID:
		return "RecordID(null)"
	default:
		return "RecordID(" + strconv.FormatInt(int64(id), 10) + ")"
	}
}

// Record is a single payload together with its identifier
type Record struct {
	ID   RecordID
	Data []byte
}

// Direction defines the order in which an iterator visits records
type Direction int8

const (
	Forward  Direction = 1  // ascending ids
	Backward Direction = -1 // descending ids
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// --------------------------------------------------------------------------
// Errors
// --------------------------------------------------------------------------

var (
	ErrDuplicateID = errors.New("db: record id already exists")
	ErrInvalidID   = errors.New("db: record id out of range")
	ErrClosed      = errors.New("db: database is closed")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// Iterator is a cursor over the records of a RecordDB in id order.
// An iterator must stay usable while the database is modified concurrently: records
// deleted after the iterator was created are skipped, never returned twice.
type Iterator interface {
	// Next returns the next record in iteration order.
	// The boolean return value is false once the iterator is exhausted.
	Next() (rec Record, ok bool)

	// IsEOF reports whether a following Next call would return no record.
	IsEOF() bool

	// Close releases the iterator. Calling Next after Close returns no record.
	Close()
}

// RecordDB defines an interface for ordered record database implementations.
// Records are opaque byte payloads addressed by a RecordID, iteration always follows id order.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type RecordDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Insert stores a new record and returns the id assigned by the database.
	// Assigned ids are strictly increasing and always greater than every id present in the database.
	Insert(value []byte) (id RecordID, err error)

	// InsertAt stores a new record with an id chosen by the caller.
	// It returns ErrDuplicateID if the id is already used and ErrInvalidID if the id is not valid.
	InsertAt(id RecordID, value []byte) (err error)

	// Delete removes the record with the given id.
	// The return value indicates whether a record existed.
	Delete(id RecordID) (deleted bool)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves a copy of the payload stored for the id.
	// The boolean return value indicates whether the record was found.
	Get(id RecordID) (value []byte, loaded bool)

	// NewIterator returns an iterator positioned at start.
	// A forward iterator begins at the first id >= start, a backward iterator at the last id <= start.
	// The NullID start means "from the beginning" (forward) or "from the end" (backward).
	NewIterator(start RecordID, dir Direction) (iter Iterator)

	// TotalBytes returns the sum of all payload lengths.
	TotalBytes() (size int64)

	// TotalDocs returns the number of records.
	TotalDocs() (count int64)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
