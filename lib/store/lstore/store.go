package lstore

import (
	"errors"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/lib/store/capped"
	"github.com/ValentinKolb/dCap/lib/txn"
)

type storeImpl struct {
	capped *capped.Store
}

// NewLocalStore creates a new local store instance.
// Every operation runs in its own unit of work that is committed before the method returns.
func NewLocalStore(cappedStore *capped.Store) store.ICappedStore {
	return &storeImpl{
		capped: cappedStore,
	}
}

// NewLocalStoreWithFactory creates the database with factory and wraps it into a capped store
func NewLocalStoreWithFactory(factory store.DBFactory, opts capped.Options) (store.ICappedStore, error) {
	cappedStore, err := capped.NewCappedStore(factory(), opts)
	if err != nil {
		return nil, err
	}
	return NewLocalStore(cappedStore), nil
}

// toStoreError converts database errors into store errors with a matching return code
func toStoreError(err error) error {
	var storeErr *store.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &storeErr):
		return err
	case errors.Is(err, db.ErrDuplicateID):
		return store.NewError(store.RetCDuplicateKey, err.Error())
	case errors.Is(err, db.ErrInvalidID):
		return store.NewError(store.RetCInvalidOperation, err.Error())
	default:
		return store.NewError(store.RetCInternalError, err.Error())
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Insert(payload []byte) (db.RecordID, error) {
	id, err := s.capped.Insert(nil, payload, true)
	return id, toStoreError(err)
}

func (s *storeImpl) InsertMany(payloads [][]byte) ([]db.RecordID, error) {
	tx := txn.New()
	defer tx.Rollback() // no-op after commit

	ids := make([]db.RecordID, 0, len(payloads))
	for _, payload := range payloads {
		id, err := s.capped.Insert(tx, payload, true)
		if err != nil {
			return nil, toStoreError(err)
		}
		ids = append(ids, id)
	}

	tx.Commit()
	return ids, nil
}

func (s *storeImpl) Delete(id db.RecordID) error {
	tx := txn.New()
	if err := s.capped.Delete(tx, id); err != nil {
		tx.Rollback()
		return toStoreError(err)
	}
	tx.Commit()
	return nil
}

func (s *storeImpl) Get(id db.RecordID) ([]byte, bool, error) {
	value, ok := s.capped.Get(id)
	return value, ok, nil
}

func (s *storeImpl) Scan(start db.RecordID, dir db.Direction, limit int) ([]db.Record, error) {
	var iter *capped.Iterator
	if dir == db.Backward {
		iter = s.capped.BackwardIterator(start)
	} else {
		iter = s.capped.ForwardIterator(start)
	}
	defer iter.Close()

	records := make([]db.Record, 0)
	for limit <= 0 || len(records) < limit {
		rec, ok := iter.Next()
		if !ok {
			break
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *storeImpl) TruncateAfter(end db.RecordID, inclusive bool) error {
	return toStoreError(s.capped.TruncateAfter(end, inclusive))
}

func (s *storeImpl) FindLowerBoundBefore(start db.RecordID) (db.RecordID, error) {
	return s.capped.FindLowerBoundBefore(start), nil
}

func (s *storeImpl) Stats() (store.CappedStats, error) {
	return s.capped.Stats(), nil
}
