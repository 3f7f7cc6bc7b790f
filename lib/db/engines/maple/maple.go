package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/dCap/lib/db/util"
	"github.com/google/btree"
	"io"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum      = "MAPLERS\x00" // File format identifier
	mapleVersion  = 4             // Database version
	defaultDegree = 32            // Default B-tree degree
	firstID       = db.RecordID(1)
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements an ordered in-memory record database
type mapleImpl struct {
	mu     sync.RWMutex                  // guards tree and nextID
	tree   *btree.BTreeG[internal.Entry] // records ordered by id
	degree int                           // B-tree degree
	nextID db.RecordID                   // next id handed out by Insert

	// size accounting, readable without the lock
	totalBytes atomic.Int64
	totalDocs  atomic.Int64

	closed atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	Degree int // B-tree degree (0 = use default: 32)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.RecordDB {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Degree <= 1 {
		opts.Degree = defaultDegree
	}

	return &mapleImpl{
		tree:   internal.NewTree(opts.Degree),
		degree: opts.Degree,
		nextID: firstID,
	}
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Insert stores a new record under the next free id.
// The value is copied, the caller may reuse the slice afterward.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Insert(value []byte) (db.RecordID, error) {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	if maple.closed.Load() {
		return db.InvalidID, db.ErrClosed
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	if maple.nextID >= db.MaxID {
		return db.InvalidID, db.ErrInvalidID
	}

	id := maple.nextID
	maple.nextID++
	maple.tree.ReplaceOrInsert(internal.Entry{ID: id, Value: valueCopy})
	maple.account(len(valueCopy), 1)

	return id, nil
}

// InsertAt stores a new record under an id chosen by the caller.
// Existing records are never overwritten.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) InsertAt(id db.RecordID, value []byte) error {
	if !id.IsValid() {
		return fmt.Errorf("%w: %d", db.ErrInvalidID, id)
	}

	if maple.closed.Load() {
		return db.ErrClosed
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.mu.Lock()
	defer maple.mu.Unlock()

	if maple.tree.Has(internal.Pivot(id)) {
		return fmt.Errorf("%w: %d", db.ErrDuplicateID, id)
	}

	maple.tree.ReplaceOrInsert(internal.Entry{ID: id, Value: valueCopy})
	maple.account(len(valueCopy), 1)

	// keep engine assigned ids above every stored id
	if id >= maple.nextID {
		maple.nextID = id + 1
	}
	return nil
}

// Delete removes the record with the given id.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(id db.RecordID) bool {
	maple.mu.Lock()
	defer maple.mu.Unlock()

	old, ok := maple.tree.Delete(internal.Pivot(id))
	if ok {
		maple.account(-len(old.Value), -1)
	}
	return ok
}

// account updates the size counters
//
// Thread-safety: The caller must hold the write lock.
func (maple *mapleImpl) account(bytes int, docs int64) {
	maple.totalBytes.Add(int64(bytes))
	maple.totalDocs.Add(docs)
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get retrieves the payload for an id.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(id db.RecordID) ([]byte, bool) {
	maple.mu.RLock()
	defer maple.mu.RUnlock()

	e, ok := maple.tree.Get(internal.Pivot(id))
	if !ok {
		return nil, false
	}

	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return data, true
}

// NewIterator returns a cursor positioned at start (see db.RecordDB).
//
// Thread-safety: The iterator itself must only be used by one goroutine,
// any number of iterators may be used concurrently with writes.
func (maple *mapleImpl) NewIterator(start db.RecordID, dir db.Direction) db.Iterator {
	pos := start
	if dir == db.Backward && start == db.NullID {
		pos = db.MaxID
	}
	return &iterator{
		maple: maple,
		dir:   dir,
		pos:   pos,
	}
}

// TotalBytes returns the sum of all payload lengths
func (maple *mapleImpl) TotalBytes() int64 {
	return maple.totalBytes.Load()
}

// TotalDocs returns the number of stored records
func (maple *mapleImpl) TotalDocs() int64 {
	return maple.totalDocs.Load()
}

// --------------------------------------------------------------------------
// Iterator
// --------------------------------------------------------------------------

// iterator does not pin a tree position. Every call re-seeks from the last
// returned id, so records deleted in the meantime are skipped.
type iterator struct {
	maple  *mapleImpl
	dir    db.Direction
	pos    db.RecordID // inclusive bound for the next seek
	closed bool
}

func (it *iterator) seek() (internal.Entry, bool) {
	if it.closed {
		return internal.Entry{}, false
	}

	it.maple.mu.RLock()
	defer it.maple.mu.RUnlock()
	return internal.Seek(it.maple.tree, it.pos, it.dir)
}

func (it *iterator) Next() (db.Record, bool) {
	e, ok := it.seek()
	if !ok {
		return db.Record{}, false
	}

	// move past the returned record
	if it.dir == db.Backward {
		it.pos = e.ID - 1
	} else {
		it.pos = e.ID + 1
	}

	data := make([]byte, len(e.Value))
	copy(data, e.Value)
	return db.Record{ID: e.ID, Data: data}, true
}

func (it *iterator) IsEOF() bool {
	_, ok := it.seek()
	return !ok
}

func (it *iterator) Close() {
	it.closed = true
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer
//
// Thread-safety: Save copies the tree (copy-on-write clone) under the read lock
// and writes the copy without blocking concurrent modifications.
func (maple *mapleImpl) Save(w io.Writer) error {
	// Use a buffered writer for better performance
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	maple.mu.RLock()
	snapshot := maple.tree.Clone()
	nextID := maple.nextID
	maple.mu.RUnlock()

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}

	// Write maple version
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}

	// Write next id
	if err := binary.Write(bw, binary.LittleEndian, int64(nextID)); err != nil {
		return err
	}

	// Write total entry count
	if err := binary.Write(bw, binary.LittleEndian, uint64(snapshot.Len())); err != nil {
		return err
	}

	// Write entries in id order
	var writeErr error
	snapshot.Ascend(func(e internal.Entry) bool {
		// Write id
		if writeErr = binary.Write(bw, binary.LittleEndian, int64(e.ID)); writeErr != nil {
			return false
		}

		// Write value length
		if writeErr = binary.Write(bw, binary.LittleEndian, uint32(len(e.Value))); writeErr != nil {
			return false
		}

		// Write value bytes
		_, writeErr = bw.Write(e.Value)
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader, replacing the current content
//
// Thread-safety: The new tree is built without holding the lock and swapped in at the end.
// Writes that happen during Load are lost.
func (maple *mapleImpl) Load(r io.Reader) error {

	// Use a buffered reader for better performance
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}

	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}

	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	// Read next id
	var nextID int64
	if err := binary.Read(br, binary.LittleEndian, &nextID); err != nil {
		return err
	}

	// Read entry count
	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	tree := internal.NewTree(maple.degree)
	var totalBytes int64

	for i := uint64(0); i < count; i++ {
		// Read id
		var id int64
		if err := binary.Read(br, binary.LittleEndian, &id); err != nil {
			return err
		}

		// Read value length
		var valueLen uint32
		if err := binary.Read(br, binary.LittleEndian, &valueLen); err != nil {
			return err
		}

		// Read value bytes
		value := make([]byte, valueLen)
		if _, err := io.ReadFull(br, value); err != nil {
			return err
		}

		recordID := db.RecordID(id)
		if !recordID.IsValid() {
			return fmt.Errorf("%w: %d (entry %d)", db.ErrInvalidID, id, i)
		}
		if recordID >= db.RecordID(nextID) {
			nextID = id + 1
		}

		tree.ReplaceOrInsert(internal.Entry{ID: recordID, Value: value})
		totalBytes += int64(valueLen)
	}

	maple.mu.Lock()
	defer maple.mu.Unlock()

	maple.tree = tree
	maple.nextID = max(db.RecordID(nextID), firstID)
	maple.totalBytes.Store(totalBytes)
	maple.totalDocs.Store(int64(tree.Len()))

	return nil
}

// --------------------------------------------------------------------------
// RecordDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// sample the record sizes from the oldest records
	histogram := util.NewSizeHistogram()
	samples := 1000

	maple.mu.RLock()
	sampled := 0
	minID, maxID := db.NullID, db.NullID
	if e, ok := maple.tree.Min(); ok {
		minID = e.ID
	}
	if e, ok := maple.tree.Max(); ok {
		maxID = e.ID
	}
	maple.tree.Ascend(func(e internal.Entry) bool {
		histogram.AddSample(len(e.Value))
		sampled++
		return sampled < samples
	})
	nextID := maple.nextID
	maple.mu.RUnlock()

	// Metadata for this specific database implementation
	meta := &struct {
		NextID     db.RecordID `json:"next_id"`
		MinID      db.RecordID `json:"min_id"`
		MaxID      db.RecordID `json:"max_id"`
		Degree     int         `json:"degree"`
		MedianSize int         `json:"median_size"`
		P99Size    int         `json:"p99_size"`
		Samples    int64       `json:"samples"`
		Info       string      `json:"info"`
	}{
		NextID:     nextID,
		MinID:      minID,
		MaxID:      maxID,
		Degree:     maple.degree,
		MedianSize: histogram.MedianEstimate(),
		P99Size:    histogram.GetPercentileEstimate(99),
		Samples:    histogram.GetCount(),
		Info:       "Size distribution values are estimates sampled from the oldest records.",
	}

	// features
	supportedFeatures := []db.Feature{
		db.FeatureInsert, db.FeatureInsertAt,
		db.FeatureGet, db.FeatureDelete,
		db.FeatureIterate,
		db.FeatureSave, db.FeatureLoad,
	}

	return db.DatabaseInfo{
		SizeBytes:         maple.totalBytes.Load(),
		DocCount:          maple.totalDocs.Load(),
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific RecordDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureInsert |
		db.FeatureInsertAt |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureIterate |
		db.FeatureSave |
		db.FeatureLoad
	return supportedFeatures&feature == feature
}

// Close marks the database as closed. Inserts fail afterward, the data stays readable.
func (maple *mapleImpl) Close() error {
	maple.closed.Store(true)
	return nil
}
