package capped

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/lockmgr"
	"github.com/ValentinKolb/dCap/lib/oplog"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/lib/store/visibility"
	"github.com/ValentinKolb/dCap/lib/txn"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// requiredFeatures are the engine features every capped store needs
const requiredFeatures = db.FeatureInsert | db.FeatureGet | db.FeatureDelete | db.FeatureIterate

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

// Store is a bounded record store that evicts its oldest records (see package documentation)
type Store struct {
	db         db.RecordDB
	name       string
	maxBytes   int64
	maxDocs    int64
	logOrdered bool
	visibility bool

	keys     oplog.KeyDeriver
	notifier DeleteNotifier
	permit   lockmgr.IPermit
	tracker  visibility.ITracker

	// insertMu makes writing a record and registering its id atomic for readers
	insertMu sync.Mutex

	metrics *storeMetrics
}

// InsertResult is the outcome of InsertWithEviction
type InsertResult struct {
	ID          db.RecordID // id of the inserted record
	Evicted     int         // number of records evicted after the insert
	EvictionErr error       // eviction failure, the insert itself succeeded
}

// NewCappedStore wraps database into a capped store.
// The database may already contain records, they count against the capacity
// and are visible from the start.
func NewCappedStore(database db.RecordDB, opts Options) (*Store, error) {
	if database == nil {
		return nil, store.NewError(store.RetCInvalidOperation, "capped store needs a database")
	}

	opts, err := opts.withDefaults()
	if err != nil {
		return nil, store.NewError(store.RetCInvalidOperation, err.Error())
	}

	features := requiredFeatures
	if opts.LogOrdered {
		features |= db.FeatureInsertAt
	}
	if !database.SupportsFeature(features) {
		return nil, store.Errorf(store.RetCUnsupportedOperation,
			"database %s does not support the features required by a capped store", database.GetInfo().DbType)
	}

	s := &Store{
		db:         database,
		name:       opts.Name,
		maxBytes:   opts.MaxBytes,
		maxDocs:    opts.MaxDocs,
		logOrdered: opts.LogOrdered,
		visibility: !opts.DisableVisibility,
		keys:       opts.KeyDeriver,
		notifier:   opts.DeleteNotifier,
		permit:     opts.Permit,
	}

	// ids already in the database are committed
	highestSeen := db.NullID
	iter := database.NewIterator(db.NullID, db.Backward)
	if rec, ok := iter.Next(); ok {
		highestSeen = rec.ID
	}
	iter.Close()

	switch {
	case opts.DisableVisibility:
		s.tracker = visibility.NewNoopTracker()
	case opts.LogOrdered:
		s.tracker = visibility.NewOplogTracker(highestSeen)
	default:
		s.tracker = visibility.NewCappedTracker(highestSeen)
	}

	s.metrics = newStoreMetrics(s)

	Logger.Infof("opened capped store %q (maxBytes=%d, maxDocs=%d, logOrdered=%v, visibility=%v)",
		s.name, s.maxBytes, s.maxDocs, s.logOrdered, s.visibility)

	return s, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Insert writes a record and evicts the oldest records if the store is over capacity.
// The record stays invisible to forward iterators until tx commits, rolling tx back
// removes it again. A nil tx commits the insert before Insert returns.
//
// Eviction failures never fail the insert: they are logged and counted, use
// InsertWithEviction to observe them. With enforceQuota set to false the eviction pass
// is skipped and the store may stay above its capacity until the next EvictIfNeeded.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Insert(tx *txn.Txn, payload []byte, enforceQuota bool) (db.RecordID, error) {
	res, err := s.InsertWithEviction(tx, payload, enforceQuota)
	if err != nil {
		return db.InvalidID, err
	}
	return res.ID, nil
}

// InsertWithEviction works like Insert but also reports the outcome of the eviction pass
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) InsertWithEviction(tx *txn.Txn, payload []byte, enforceQuota bool) (InsertResult, error) {
	if int64(len(payload)) > s.maxBytes {
		return InsertResult{ID: db.InvalidID}, store.Errorf(store.RetCPayloadTooLarge,
			"object to insert exceeds cappedMaxSize (%d > %d)", len(payload), s.maxBytes)
	}

	autoCommit := tx == nil
	if autoCommit {
		tx = txn.New()
		defer tx.Rollback() // no-op after commit
	}

	id, err := s.write(tx, payload)
	if err != nil {
		return InsertResult{ID: db.InvalidID}, err
	}
	s.metrics.inserts.Inc()

	res := InsertResult{ID: id}
	if enforceQuota {
		res.Evicted, res.EvictionErr = s.EvictIfNeeded(tx)
		if res.EvictionErr != nil {
			Logger.Warningf("capped store %q: eviction after insert of %d failed: %v", s.name, id, res.EvictionErr)
		}
	}

	if autoCommit {
		tx.Commit()
	}
	return res, nil
}

// write stores the payload and registers the id as uncommitted
func (s *Store) write(tx *txn.Txn, payload []byte) (db.RecordID, error) {
	var (
		key db.RecordID
		err error
	)
	if s.logOrdered {
		if key, err = s.keys.ExtractKey(payload); err != nil {
			return db.InvalidID, store.NewError(store.RetCMalformedKey, err.Error())
		}
	}

	s.insertMu.Lock()
	defer s.insertMu.Unlock()

	if s.logOrdered {
		// the position is claimed before the write, so readers never see a record
		// below a boundary they were already handed
		if err := s.tracker.AddUncommittedID(tx, key); err != nil {
			return db.InvalidID, s.trackerError(key, err)
		}
		if err := s.db.InsertAt(key, payload); err != nil {
			return db.InvalidID, err
		}
	} else {
		if key, err = s.db.Insert(payload); err != nil {
			return db.InvalidID, err
		}
		if err := s.tracker.AddUncommittedID(tx, key); err != nil {
			s.db.Delete(key)
			return db.InvalidID, s.trackerError(key, err)
		}
	}

	// registered after the tracker change, so a rollback removes the record
	// before its id leaves the pending set
	id := key
	tx.RegisterChange(txn.Change{
		Rollback: func() {
			s.db.Delete(id)
		},
	})
	return id, nil
}

// trackerError converts a rejected id into a store error
func (s *Store) trackerError(id db.RecordID, err error) error {
	switch {
	case errors.Is(err, visibility.ErrAlreadyPending):
		return store.Errorf(store.RetCDuplicateKey, "id %d is reserved by another unit of work", id)
	case errors.Is(err, visibility.ErrBelowBoundary):
		if _, exists := s.db.Get(id); exists {
			return store.Errorf(store.RetCDuplicateKey, "id %d already exists", id)
		}
		return store.Errorf(store.RetCInvalidOperation, "id %d lies behind the log position readers have seen: %v", id, err)
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// NeedsEviction reports whether the store is above its byte or record capacity
func (s *Store) NeedsEviction() bool {
	if s.db.TotalBytes() > s.maxBytes {
		return true
	}
	return s.maxDocs > 0 && s.db.TotalDocs() > s.maxDocs
}

// EvictIfNeeded deletes the oldest records until the store is within its capacity.
// Only one caller evicts at a time: if the eviction permit is taken the call returns
// immediately without evicting. The pass also stops at an oldest record that is still
// pending on another unit of work. Deletes are registered with tx (nil = not undoable).
// A vetoed delete aborts the pass with RetCAboutToDeleteRejected.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) EvictIfNeeded(tx *txn.Txn) (evicted int, err error) {
	if !s.NeedsEviction() {
		return 0, nil
	}

	if !s.permit.TryAcquire() {
		s.metrics.evictionSkips.Inc()
		Logger.Debugf("capped store %q: eviction permit taken, skipping", s.name)
		return 0, nil
	}
	defer s.permit.Release()

	for s.NeedsEviction() {
		iter := s.db.NewIterator(db.NullID, db.Forward)
		oldest, ok := iter.Next()
		iter.Close()
		if !ok {
			break
		}
		if !s.tracker.CanEvict(tx, oldest.ID) {
			// the oldest record belongs to an unfinished unit of work, a later insert retries
			Logger.Debugf("capped store %q: oldest record %d is not committed, stopping eviction", s.name, oldest.ID)
			break
		}

		deleted, err := s.delete(tx, oldest.ID)
		if err != nil {
			s.metrics.evictionErrors.Inc()
			return evicted, err
		}
		if deleted {
			evicted++
			s.metrics.evictions.Inc()
		}
	}

	if evicted > 0 {
		Logger.Debugf("capped store %q: evicted %d records", s.name, evicted)
	}
	return evicted, nil
}

// Delete removes a record after asking the delete notifier.
// Rolling tx back restores the record under the same id (nil tx = not undoable).
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) Delete(tx *txn.Txn, id db.RecordID) error {
	_, err := s.delete(tx, id)
	return err
}

func (s *Store) delete(tx *txn.Txn, id db.RecordID) (bool, error) {
	payload, ok := s.db.Get(id)
	if !ok {
		return false, nil
	}
	if err := s.notifier.AboutToDelete(id); err != nil {
		return false, store.Errorf(store.RetCAboutToDeleteRejected, "delete of %d rejected: %v", id, err)
	}
	if !s.db.Delete(id) {
		return false, nil
	}

	if tx != nil {
		tx.RegisterChange(txn.Change{
			Rollback: func() {
				if err := s.db.InsertAt(id, payload); err != nil {
					Logger.Errorf("capped store %q: failed to restore %d on rollback: %v", s.name, id, err)
				}
			},
		})
	}
	return true, nil
}

// TruncateAfter deletes every record after end, and end itself if inclusive.
// Each delete is its own unit of work. The first failure stops the truncation,
// records deleted before it stay deleted.
//
// Thread-safety: Not safe for concurrent use with other writes.
func (s *Store) TruncateAfter(end db.RecordID, inclusive bool) error {
	iter := s.db.NewIterator(end, db.Forward)
	defer iter.Close()

	truncated := 0
	for {
		rec, ok := iter.Next()
		if !ok {
			break
		}
		if rec.ID == end && !inclusive {
			continue
		}

		tx := txn.New()
		if err := s.Delete(tx, rec.ID); err != nil {
			tx.Rollback()
			return fmt.Errorf("truncate after %d stopped at %d: %w", end, rec.ID, err)
		}
		tx.Commit()
		truncated++
	}

	Logger.Infof("capped store %q: truncated %d records after %d (inclusive=%v)", s.name, truncated, end, inclusive)
	return nil
}

// LogKeyRegister reserves the log position of ts as uncommitted until tx finishes.
// Readers stop in front of the position even though no record was written yet.
// The position must lie above every position seen before.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Store) LogKeyRegister(tx *txn.Txn, ts oplog.OpTime) error {
	if !s.logOrdered {
		return store.Errorf(store.RetCUnsupportedOperation, "capped store %q is not log-ordered", s.name)
	}
	if tx == nil {
		return store.NewError(store.RetCInvalidOperation, "log key registration needs a unit of work")
	}

	id, err := s.keys.KeyForOpTime(ts)
	if err != nil {
		return store.NewError(store.RetCMalformedKey, err.Error())
	}

	if err := s.tracker.AddUncommittedID(tx, id); err != nil {
		return s.trackerError(id, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Get returns the payload of a record, ignoring visibility
func (s *Store) Get(id db.RecordID) ([]byte, bool) {
	return s.db.Get(id)
}

// FindLowerBoundBefore returns the highest visible id <= start.
// It returns db.InvalidID if there is none or visibility tracking is disabled.
func (s *Store) FindLowerBoundBefore(start db.RecordID) db.RecordID {
	if !s.visibility || start <= db.NullID {
		return db.InvalidID
	}

	boundary := s.tracker.LowestInvisible()
	iter := s.db.NewIterator(start, db.Backward)
	defer iter.Close()

	for {
		rec, ok := iter.Next()
		if !ok {
			return db.InvalidID
		}
		if rec.ID < boundary {
			return rec.ID
		}
	}
}

// ForwardIterator returns a visibility restricted iterator starting at the first id >= start
func (s *Store) ForwardIterator(start db.RecordID) *Iterator {
	return newIterator(s.db.NewIterator(start, db.Forward), s.tracker.Restriction())
}

// BackwardIterator returns an unrestricted iterator starting at the last id <= start
// (db.NullID = from the newest record)
func (s *Store) BackwardIterator(start db.RecordID) *Iterator {
	return newIterator(s.db.NewIterator(start, db.Backward), nil)
}

// LowestInvisible returns the current visibility boundary
func (s *Store) LowestInvisible() db.RecordID {
	return s.tracker.LowestInvisible()
}

// Stats returns the configuration of the store merged with the database info
func (s *Store) Stats() store.CappedStats {
	return store.CappedStats{
		Name:            s.name,
		Capped:          true,
		LogOrdered:      s.logOrdered,
		MaxBytes:        s.maxBytes,
		MaxDocs:         s.maxDocs,
		LowestInvisible: s.tracker.LowestInvisible(),
		Pending:         s.tracker.Pending(),
		Inserts:         s.metrics.inserts.Get(),
		Evictions:       s.metrics.evictions.Get(),
		EvictionSkips:   s.metrics.evictionSkips.Get(),
		EvictionErrors:  s.metrics.evictionErrors.Get(),
		DB:              s.db.GetInfo(),
	}
}

// Name returns the name of the store
func (s *Store) Name() string {
	return s.name
}

// Close closes the underlying database
func (s *Store) Close() error {
	Logger.Infof("closing capped store %q", s.name)
	return s.db.Close()
}
