package capped

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/ValentinKolb/dCap/lib/db/engines/maple"
	"github.com/ValentinKolb/dCap/lib/lockmgr"
	"github.com/ValentinKolb/dCap/lib/oplog"
	"github.com/ValentinKolb/dCap/lib/store"
	"github.com/ValentinKolb/dCap/lib/txn"
)

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func newTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "test." + strings.ReplaceAll(t.Name(), "/", ".")
	}
	s, err := NewCappedStore(maple.NewMapleDB(nil), opts)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustInsert inserts and commits a record
func mustInsert(t *testing.T, s *Store, payload []byte) db.RecordID {
	t.Helper()
	tx := txn.New()
	id, err := s.Insert(tx, payload, true)
	if err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	tx.Commit()
	return id
}

func opEntry(secs, inc uint32) []byte {
	return []byte(fmt.Sprintf(`{"ts":{"t":%d,"i":%d},"op":"i"}`, secs, inc))
}

func opKey(t *testing.T, secs, inc uint32) db.RecordID {
	t.Helper()
	id, err := oplog.KeyForOpTime(oplog.OpTime{Secs: secs, Inc: inc})
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func forwardIDs(s *Store, start db.RecordID) []db.RecordID {
	iter := s.ForwardIterator(start)
	defer iter.Close()
	var ids []db.RecordID
	for rec, ok := iter.Next(); ok; rec, ok = iter.Next() {
		ids = append(ids, rec.ID)
	}
	return ids
}

func equalIDs(a, b []db.RecordID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Construction
// --------------------------------------------------------------------------

func TestNewCappedStore(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		s := newTestStore(t, Options{})
		stats := s.Stats()
		if stats.MaxBytes != DefaultMaxBytes || stats.MaxDocs != 0 || !stats.Capped || stats.LogOrdered {
			t.Errorf("unexpected stats %+v", stats)
		}
	})

	t.Run("oplog namespace", func(t *testing.T) {
		s := newTestStore(t, Options{Name: "local.oplog.rs"})
		if !s.Stats().LogOrdered {
			t.Error("local.oplog.* must select log-ordered mode")
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := NewCappedStore(nil, Options{}); !store.IsCode(err, store.RetCInvalidOperation) {
			t.Errorf("expected invalid operation for nil database, got %v", err)
		}
		if _, err := NewCappedStore(maple.NewMapleDB(nil), Options{MaxBytes: -1}); !store.IsCode(err, store.RetCInvalidOperation) {
			t.Errorf("expected invalid operation for negative capacity, got %v", err)
		}
	})

	t.Run("existing records are visible", func(t *testing.T) {
		database := maple.NewMapleDB(nil)
		first, _ := database.Insert([]byte("a"))
		second, _ := database.Insert([]byte("b"))

		s, err := NewCappedStore(database, Options{Name: "existing"})
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()

		if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{first, second}) {
			t.Errorf("expected existing records to be visible, got %v", got)
		}
		if got := s.LowestInvisible(); got != second+1 {
			t.Errorf("expected boundary %d, got %d", second+1, got)
		}
	})
}

// --------------------------------------------------------------------------
// Insert and capacity
// --------------------------------------------------------------------------

func TestInsertRetrievableAfterCommit(t *testing.T) {
	s := newTestStore(t, Options{MaxBytes: 100})

	payload := bytes.Repeat([]byte("x"), 100)
	id := mustInsert(t, s, payload)

	value, ok := s.Get(id)
	if !ok || !bytes.Equal(value, payload) {
		t.Errorf("expected record %d to be retrievable", id)
	}

	// nil unit of work commits immediately
	id2, err := s.Insert(nil, []byte("auto"), true)
	if err != nil {
		t.Fatal(err)
	}
	if !equalIDs(forwardIDs(s, id2), []db.RecordID{id2}) {
		t.Error("auto committed insert must be visible")
	}
}

func TestPayloadTooLarge(t *testing.T) {
	s := newTestStore(t, Options{MaxBytes: 100})
	mustInsert(t, s, []byte("small"))

	bytesBefore, docsBefore := s.db.TotalBytes(), s.db.TotalDocs()

	tx := txn.New()
	id, err := s.Insert(tx, make([]byte, 101), true)
	if !store.IsCode(err, store.RetCPayloadTooLarge) {
		t.Fatalf("expected RetCPayloadTooLarge, got %v", err)
	}
	if id != db.InvalidID {
		t.Errorf("expected invalid id, got %d", id)
	}
	if tx.Len() != 0 {
		t.Error("a rejected insert must not register changes")
	}
	if s.db.TotalBytes() != bytesBefore || s.db.TotalDocs() != docsBefore {
		t.Error("a rejected insert must not change the store")
	}
}

func TestMaxDocsKeepsNewest(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 3})

	var ids []db.RecordID
	for i := 0; i < 5; i++ {
		ids = append(ids, mustInsert(t, s, []byte(fmt.Sprintf("record-%d", i))))
	}

	if got := forwardIDs(s, db.NullID); !equalIDs(got, ids[2:]) {
		t.Errorf("expected %v, got %v", ids[2:], got)
	}
	for i, id := range ids[2:] {
		value, _ := s.Get(id)
		if want := fmt.Sprintf("record-%d", i+2); string(value) != want {
			t.Errorf("expected %s, got %s", want, value)
		}
	}
	if got := s.Stats().Evictions; got != 2 {
		t.Errorf("expected 2 evictions, got %d", got)
	}
}

func TestMaxBytesAlwaysWithinBound(t *testing.T) {
	s := newTestStore(t, Options{MaxBytes: 100})

	for i := 0; i < 20; i++ {
		tx := txn.New()
		res, err := s.InsertWithEviction(tx, bytes.Repeat([]byte{byte(i)}, 40), true)
		if err != nil {
			t.Fatal(err)
		}
		tx.Commit()

		if res.EvictionErr != nil {
			t.Fatalf("unexpected eviction error: %v", res.EvictionErr)
		}
		if size := s.db.TotalBytes(); size > 100 {
			t.Fatalf("size %d exceeds bound after insert %d", size, i)
		}
		if i >= 2 && res.Evicted != 1 {
			t.Errorf("expected one eviction for insert %d, got %d", i, res.Evicted)
		}
	}

	if s.NeedsEviction() {
		t.Error("store must be within its capacity")
	}
}

func TestContendedEvictionIsSoft(t *testing.T) {
	permit := lockmgr.NewLocalPermit()
	s := newTestStore(t, Options{MaxDocs: 3, Permit: permit})

	for i := 0; i < 3; i++ {
		mustInsert(t, s, []byte("before"))
	}

	// simulate another evictor holding the permit
	if !permit.TryAcquire() {
		t.Fatal("failed to take the permit")
	}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				tx := txn.New()
				if _, err := s.Insert(tx, []byte("during"), true); err != nil {
					t.Errorf("insert failed: %v", err)
				}
				tx.Commit()
			}
		}()
	}
	wg.Wait()

	if got := s.db.TotalDocs(); got != 43 {
		t.Errorf("expected bound to be exceeded while contended (43 docs), got %d", got)
	}
	if !s.NeedsEviction() {
		t.Error("store should be over capacity")
	}
	if got := s.Stats().EvictionSkips; got != 40 {
		t.Errorf("expected 40 skipped evictions, got %d", got)
	}

	// contention clears, the next insert restores the bound
	permit.Release()
	last := mustInsert(t, s, []byte("after"))

	if got := s.db.TotalDocs(); got != 3 {
		t.Errorf("expected bound to be restored (3 docs), got %d", got)
	}
	ids := forwardIDs(s, db.NullID)
	if len(ids) != 3 || ids[2] != last {
		t.Errorf("expected the newest records to survive, got %v", ids)
	}
}

func TestConcurrentInsertsSettleWithinBound(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 50, MaxBytes: 1 << 20})

	const (
		workers   = 8
		perWorker = 200
	)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[db.RecordID]bool)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tx := txn.New()
				id, err := s.Insert(tx, []byte(fmt.Sprintf("w%d-%d", w, i)), true)
				if err != nil {
					t.Errorf("insert failed: %v", err)
					return
				}
				tx.Commit()

				mu.Lock()
				if seen[id] {
					t.Errorf("duplicate id %d", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	// one uncontended insert settles the store
	mustInsert(t, s, []byte("settle"))
	if got := s.db.TotalDocs(); got > 50 {
		t.Errorf("expected at most 50 docs, got %d", got)
	}

	stats := s.Stats()
	if stats.Inserts != workers*perWorker+1 {
		t.Errorf("expected %d inserts, got %d", workers*perWorker+1, stats.Inserts)
	}
	if stats.Pending != 0 {
		t.Errorf("expected no pending ids, got %d", stats.Pending)
	}
}

func TestEvictionKeepsRecordsOfUnfinishedUnitsOfWork(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 1})

	txA := txn.New()
	a, err := s.Insert(txA, []byte("a"), true)
	if err != nil {
		t.Fatal(err)
	}

	txB := txn.New()
	res, err := s.InsertWithEviction(txB, []byte("b"), true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Evicted != 0 {
		t.Errorf("expected no eviction while the oldest record is pending, got %d", res.Evicted)
	}
	if _, ok := s.Get(a); !ok {
		t.Fatal("record of another unit of work must not be evicted")
	}

	// both roll back, the first record must not come back
	txA.Rollback()
	txB.Rollback()

	if _, ok := s.Get(a); ok {
		t.Error("rolled back record must stay removed")
	}
	if got := s.db.TotalDocs(); got != 0 {
		t.Errorf("expected an empty store, got %d docs", got)
	}

	// once the owner commits, a later insert evicts the record
	txA = txn.New()
	a, _ = s.Insert(txA, []byte("a"), true)
	b := mustInsert(t, s, []byte("b"))
	txA.Commit()

	c := mustInsert(t, s, []byte("c"))
	for _, id := range []db.RecordID{a, b} {
		if _, ok := s.Get(id); ok {
			t.Errorf("expected %d to be evicted", id)
		}
	}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{c}) {
		t.Errorf("expected %v, got %v", []db.RecordID{c}, got)
	}
}

func TestConcurrentEvictionWithPendingUnitOfWork(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 5, MaxBytes: 1 << 20})

	held := txn.New()
	heldID, err := s.Insert(held, []byte("held"), true)
	if err != nil {
		t.Fatal(err)
	}

	const (
		workers   = 4
		perWorker = 50
	)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				tx := txn.New()
				if _, err := s.Insert(tx, []byte(fmt.Sprintf("w%d-%d", w, i)), true); err != nil {
					t.Errorf("insert failed: %v", err)
					tx.Rollback()
					return
				}
				if i%2 == 0 {
					tx.Commit()
				} else {
					tx.Rollback()
				}
			}
		}(w)
	}
	wg.Wait()

	if _, ok := s.Get(heldID); !ok {
		t.Fatal("pending record was evicted")
	}
	if got := s.Stats().Evictions; got != 0 {
		t.Errorf("expected no evictions behind a pending oldest record, got %d", got)
	}
	// every record lies at or above the pending id
	if got := forwardIDs(s, db.NullID); len(got) != 0 {
		t.Errorf("expected forward readers to see nothing, got %v", got)
	}

	held.Rollback()
	if _, ok := s.Get(heldID); ok {
		t.Fatal("rolled back record must be removed")
	}

	// one uncontended insert settles the store
	mustInsert(t, s, []byte("settle"))
	if got := s.db.TotalDocs(); got != 5 {
		t.Errorf("expected 5 docs, got %d", got)
	}
	ids := forwardIDs(s, db.NullID)
	if len(ids) != 5 {
		t.Errorf("expected 5 visible records, got %v", ids)
	}
	for _, id := range ids {
		if id == heldID {
			t.Error("rolled back record must not come back")
		}
	}
	if s.Stats().Pending != 0 {
		t.Error("expected no pending ids")
	}
}

func TestEnforceQuotaFalseSkipsEviction(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 1})

	tx := txn.New()
	_, _ = s.Insert(tx, []byte("a"), false)
	_, _ = s.Insert(tx, []byte("b"), false)
	tx.Commit()

	if got := s.db.TotalDocs(); got != 2 {
		t.Fatalf("expected 2 docs without quota enforcement, got %d", got)
	}

	evicted, err := s.EvictIfNeeded(nil)
	if err != nil || evicted != 1 {
		t.Errorf("expected one eviction, got %d (%v)", evicted, err)
	}
}

// --------------------------------------------------------------------------
// Visibility
// --------------------------------------------------------------------------

func TestUncommittedInsertInvisible(t *testing.T) {
	s := newTestStore(t, Options{})

	a := mustInsert(t, s, []byte("a"))
	b := mustInsert(t, s, []byte("b"))

	tx := txn.New()
	c, err := s.Insert(tx, []byte("c"), true)
	if err != nil {
		t.Fatal(err)
	}

	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{a, b}) {
		t.Errorf("expected uncommitted record to be hidden, got %v", got)
	}

	// an iterator opened before the commit yields the record once it is committed
	iter := s.ForwardIterator(db.NullID)
	defer iter.Close()
	if rec, ok := iter.Next(); !ok || rec.ID != a {
		t.Fatalf("expected %d first", a)
	}

	tx.Commit()

	var rest []db.RecordID
	for rec, ok := iter.Next(); ok; rec, ok = iter.Next() {
		rest = append(rest, rec.ID)
	}
	if !equalIDs(rest, []db.RecordID{b, c}) {
		t.Errorf("expected %v after commit, got %v", []db.RecordID{b, c}, rest)
	}

	// backward iterators are never restricted
	tx2 := txn.New()
	d, _ := s.Insert(tx2, []byte("d"), true)
	back := s.BackwardIterator(db.NullID)
	if rec, ok := back.Next(); !ok || rec.ID != d {
		t.Errorf("expected backward iterator to see uncommitted %d first", d)
	}
	back.Close()
	tx2.Commit()
}

func TestRollbackHidesPermanently(t *testing.T) {
	s := newTestStore(t, Options{})

	a := mustInsert(t, s, []byte("a"))

	tx := txn.New()
	b, _ := s.Insert(tx, []byte("b"), true)
	tx.Rollback()

	if _, ok := s.Get(b); ok {
		t.Error("rolled back record must be removed")
	}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{a}) {
		t.Errorf("expected only %d, got %v", a, got)
	}

	c := mustInsert(t, s, []byte("c"))
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{a, c}) {
		t.Errorf("expected %v, got %v", []db.RecordID{a, c}, got)
	}
	if s.Stats().Pending != 0 {
		t.Error("rolled back id must leave the pending set")
	}
}

func TestRollbackRestoresEvictedRecords(t *testing.T) {
	s := newTestStore(t, Options{MaxDocs: 2})

	a := mustInsert(t, s, []byte("a"))
	b := mustInsert(t, s, []byte("b"))

	tx := txn.New()
	c, _ := s.Insert(tx, []byte("c"), true)
	if _, ok := s.Get(a); ok {
		t.Fatal("expected the oldest record to be evicted")
	}

	tx.Rollback()

	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{a, b}) {
		t.Errorf("expected rollback to restore %v, got %v", []db.RecordID{a, b}, got)
	}
	if _, ok := s.Get(c); ok {
		t.Error("rolled back insert must be removed")
	}
}

func TestFindLowerBoundBefore(t *testing.T) {
	s := newTestStore(t, Options{})

	if got := s.FindLowerBoundBefore(db.MaxID); got != db.InvalidID {
		t.Errorf("expected invalid id on empty store, got %d", got)
	}

	first := mustInsert(t, s, []byte("1"))

	pending := txn.New()
	second, _ := s.Insert(pending, []byte("2"), true)

	third := mustInsert(t, s, []byte("3"))

	tests := []struct {
		start db.RecordID
		want  db.RecordID
	}{
		{db.MaxID, first}, // second is pending, third lies above the boundary
		{third, first},
		{second, first},
		{first, first},
		{first - 1, db.InvalidID},
	}
	for _, tc := range tests {
		if got := s.FindLowerBoundBefore(tc.start); got != tc.want {
			t.Errorf("FindLowerBoundBefore(%d): expected %d, got %d", tc.start, tc.want, got)
		}
	}

	pending.Commit()
	if got := s.FindLowerBoundBefore(db.MaxID); got != third {
		t.Errorf("expected %d after commit, got %d", third, got)
	}

	t.Run("visibility disabled", func(t *testing.T) {
		s := newTestStore(t, Options{DisableVisibility: true})
		mustInsert(t, s, []byte("x"))
		if got := s.FindLowerBoundBefore(db.MaxID); got != db.InvalidID {
			t.Errorf("expected invalid id without visibility tracking, got %d", got)
		}
	})
}

func TestDisableVisibility(t *testing.T) {
	s := newTestStore(t, Options{DisableVisibility: true})

	tx := txn.New()
	id, _ := s.Insert(tx, []byte("x"), true)
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{id}) {
		t.Errorf("expected uncommitted record to be visible, got %v", got)
	}
	tx.Commit()
}

// --------------------------------------------------------------------------
// Delete and truncation
// --------------------------------------------------------------------------

func TestDeleteRollback(t *testing.T) {
	s := newTestStore(t, Options{})
	id := mustInsert(t, s, []byte("keep me"))

	tx := txn.New()
	if err := s.Delete(tx, id); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Get(id); ok {
		t.Fatal("record must be deleted")
	}

	tx.Rollback()
	value, ok := s.Get(id)
	if !ok || string(value) != "keep me" {
		t.Errorf("rollback must restore the record, got %q (found=%v)", value, ok)
	}

	// unknown ids are not an error
	if err := s.Delete(nil, id+100); err != nil {
		t.Errorf("unexpected error deleting unknown id: %v", err)
	}
}

func TestDeleteNotifierVeto(t *testing.T) {
	var vetoed db.RecordID
	notifier := DeleteNotifierFunc(func(id db.RecordID) error {
		if id == vetoed {
			return errors.New("still referenced")
		}
		return nil
	})
	s := newTestStore(t, Options{MaxDocs: 1, DeleteNotifier: notifier})

	first := mustInsert(t, s, []byte("first"))
	vetoed = first

	// explicit delete
	err := s.Delete(nil, first)
	if !store.IsCode(err, store.RetCAboutToDeleteRejected) {
		t.Fatalf("expected RetCAboutToDeleteRejected, got %v", err)
	}
	if _, ok := s.Get(first); !ok {
		t.Fatal("vetoed record must stay")
	}

	// eviction: the insert succeeds, the eviction error is reported
	tx := txn.New()
	res, err := s.InsertWithEviction(tx, []byte("second"), true)
	if err != nil {
		t.Fatalf("insert must succeed despite the veto: %v", err)
	}
	tx.Commit()

	if !store.IsCode(res.EvictionErr, store.RetCAboutToDeleteRejected) {
		t.Errorf("expected eviction error RetCAboutToDeleteRejected, got %v", res.EvictionErr)
	}
	if _, ok := s.Get(res.ID); !ok {
		t.Error("inserted record must exist")
	}
	if got := s.Stats().EvictionErrors; got != 1 {
		t.Errorf("expected one eviction error, got %d", got)
	}

	// Insert swallows the eviction error
	if _, err := s.Insert(nil, []byte("third"), true); err != nil {
		t.Errorf("Insert must not report eviction errors: %v", err)
	}
}

func TestDeleteUnknownIDSkipsNotifier(t *testing.T) {
	calls := 0
	s := newTestStore(t, Options{DeleteNotifier: DeleteNotifierFunc(func(db.RecordID) error {
		calls++
		return errors.New("veto")
	})})

	if err := s.Delete(nil, 42); err != nil {
		t.Errorf("unexpected error deleting unknown id: %v", err)
	}
	if calls != 0 {
		t.Errorf("notifier must not be called for unknown ids, got %d calls", calls)
	}

	id := mustInsert(t, s, []byte("x"))
	if err := s.Delete(nil, id); !store.IsCode(err, store.RetCAboutToDeleteRejected) {
		t.Errorf("expected RetCAboutToDeleteRejected, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one notification, got %d", calls)
	}
}

func TestTruncateAfter(t *testing.T) {
	s := newTestStore(t, Options{})

	var ids []db.RecordID
	for i := 0; i < 5; i++ {
		ids = append(ids, mustInsert(t, s, []byte{byte(i)}))
	}

	if err := s.TruncateAfter(ids[2], false); err != nil {
		t.Fatal(err)
	}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, ids[:3]) {
		t.Errorf("exclusive truncate: expected %v, got %v", ids[:3], got)
	}

	if err := s.TruncateAfter(ids[1], true); err != nil {
		t.Fatal(err)
	}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, ids[:1]) {
		t.Errorf("inclusive truncate: expected %v, got %v", ids[:1], got)
	}
}

func TestTruncateAfterStopsAtFirstFailure(t *testing.T) {
	var vetoed db.RecordID
	s := newTestStore(t, Options{DeleteNotifier: DeleteNotifierFunc(func(id db.RecordID) error {
		if id == vetoed {
			return errors.New("veto")
		}
		return nil
	})})

	var ids []db.RecordID
	for i := 0; i < 5; i++ {
		ids = append(ids, mustInsert(t, s, []byte{byte(i)}))
	}
	vetoed = ids[3]

	err := s.TruncateAfter(ids[1], false)
	if !store.IsCode(err, store.RetCAboutToDeleteRejected) {
		t.Fatalf("expected RetCAboutToDeleteRejected, got %v", err)
	}

	want := []db.RecordID{ids[0], ids[1], ids[3], ids[4]}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

// --------------------------------------------------------------------------
// Log-ordered mode
// --------------------------------------------------------------------------

func TestLogOrderedInsert(t *testing.T) {
	s := newTestStore(t, Options{Name: "local.oplog.rs"})

	id := mustInsert(t, s, opEntry(10, 1))
	if want := opKey(t, 10, 1); id != want {
		t.Errorf("expected id %d derived from ts, got %d", want, id)
	}

	// entries behind the log position readers have seen are rejected
	_, err := s.Insert(nil, opEntry(9, 5), true)
	if !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("expected RetCInvalidOperation for an entry behind the log, got %v", err)
	}

	// malformed keys
	for _, payload := range []string{`{"op":"i"}`, `{"ts":{"t":0,"i":0}}`, `not json`} {
		_, err := s.Insert(nil, []byte(payload), true)
		if !store.IsCode(err, store.RetCMalformedKey) {
			t.Errorf("expected RetCMalformedKey for %s, got %v", payload, err)
		}
	}

	if _, err := s.Insert(nil, opEntry(10, 1), true); !store.IsCode(err, store.RetCDuplicateKey) {
		t.Errorf("expected RetCDuplicateKey, got %v", err)
	}

	if got := s.db.TotalDocs(); got != 1 {
		t.Errorf("failed inserts must not write, got %d docs", got)
	}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{id}) {
		t.Errorf("expected only %d, got %v", id, got)
	}
}

func TestLogBoundaryNeverMovesBackwards(t *testing.T) {
	s := newTestStore(t, Options{Name: "local.oplog.monotonic"})

	first := mustInsert(t, s, opEntry(20, 1))
	boundary := s.LowestInvisible()

	// an older entry after the reader took its boundary
	tx := txn.New()
	if _, err := s.Insert(tx, opEntry(10, 1), true); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("expected RetCInvalidOperation, got %v", err)
	}
	tx.Commit()
	if got := s.LowestInvisible(); got < boundary {
		t.Errorf("boundary moved backwards from %d to %d", boundary, got)
	}

	// reservations follow the same rule
	if err := s.LogKeyRegister(txn.New(), oplog.OpTime{Secs: 10, Inc: 2}); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("expected RetCInvalidOperation for a stale reservation, got %v", err)
	}

	// positions of rolled back entries are not handed out again
	tx = txn.New()
	if _, err := s.Insert(tx, opEntry(20, 2), true); err != nil {
		t.Fatal(err)
	}
	tx.Rollback()
	if _, err := s.Insert(nil, opEntry(20, 2), true); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("expected RetCInvalidOperation for a rolled back position, got %v", err)
	}

	next := mustInsert(t, s, opEntry(20, 3))
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{first, next}) {
		t.Errorf("expected %v, got %v", []db.RecordID{first, next}, got)
	}
	if got := s.LowestInvisible(); got <= boundary {
		t.Errorf("expected boundary to advance past %d, got %d", boundary, got)
	}
}

func TestReservedPositionBelongsToItsUnitOfWork(t *testing.T) {
	s := newTestStore(t, Options{Name: "local.oplog.reserve"})
	reserved := opKey(t, 5, 1)

	owner := txn.New()
	if err := s.LogKeyRegister(owner, oplog.OpTime{Secs: 5, Inc: 1}); err != nil {
		t.Fatal(err)
	}

	other := txn.New()
	if _, err := s.Insert(other, opEntry(5, 1), true); !store.IsCode(err, store.RetCDuplicateKey) {
		t.Errorf("expected RetCDuplicateKey for a position reserved by another unit of work, got %v", err)
	}
	if err := s.LogKeyRegister(other, oplog.OpTime{Secs: 5, Inc: 1}); !store.IsCode(err, store.RetCDuplicateKey) {
		t.Errorf("expected RetCDuplicateKey for a second reservation, got %v", err)
	}
	other.Commit()

	// finishing the other unit of work must not release the reservation
	if got := s.LowestInvisible(); got != reserved {
		t.Errorf("expected boundary to stay at %d, got %d", reserved, got)
	}

	if _, err := s.Insert(owner, opEntry(5, 1), true); err != nil {
		t.Fatalf("owner must be able to write its reserved position: %v", err)
	}
	owner.Commit()

	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{reserved}) {
		t.Errorf("expected %v, got %v", []db.RecordID{reserved}, got)
	}
	if s.Stats().Pending != 0 {
		t.Error("expected no pending ids")
	}
}

func TestLogKeyRegister(t *testing.T) {
	s := newTestStore(t, Options{Name: "local.oplog.rs"})

	first := mustInsert(t, s, opEntry(1, 1))

	// reserve the next position before the payload exists
	tx := txn.New()
	if err := s.LogKeyRegister(tx, oplog.OpTime{Secs: 1, Inc: 2}); err != nil {
		t.Fatal(err)
	}
	reserved := opKey(t, 1, 2)
	if got := s.LowestInvisible(); got != reserved {
		t.Errorf("expected boundary at the reserved position %d, got %d", reserved, got)
	}

	// a later entry commits first
	later := mustInsert(t, s, opEntry(1, 3))

	// tailing readers stop in front of the pending position
	if got := forwardIDs(s, db.NullID); !equalIDs(got, []db.RecordID{first}) {
		t.Errorf("expected reader to stop before %d, got %v", reserved, got)
	}
	if got := s.FindLowerBoundBefore(db.MaxID); got != first {
		t.Errorf("expected resume point %d, got %d", first, got)
	}

	// the payload arrives within the same unit of work
	if _, err := s.Insert(tx, opEntry(1, 2), true); err != nil {
		t.Fatal(err)
	}
	tx.Commit()

	want := []db.RecordID{first, reserved, later}
	if got := forwardIDs(s, db.NullID); !equalIDs(got, want) {
		t.Errorf("expected %v after commit, got %v", want, got)
	}

	// validation
	if err := s.LogKeyRegister(txn.New(), oplog.OpTime{}); !store.IsCode(err, store.RetCMalformedKey) {
		t.Errorf("expected RetCMalformedKey, got %v", err)
	}
	if err := s.LogKeyRegister(nil, oplog.OpTime{Secs: 2}); !store.IsCode(err, store.RetCInvalidOperation) {
		t.Errorf("expected RetCInvalidOperation without unit of work, got %v", err)
	}

	generic := newTestStore(t, Options{})
	if err := generic.LogKeyRegister(txn.New(), oplog.OpTime{Secs: 2}); !store.IsCode(err, store.RetCUnsupportedOperation) {
		t.Errorf("expected RetCUnsupportedOperation on a generic store, got %v", err)
	}
}

func TestOplogIteratorStopsAtSnapshot(t *testing.T) {
	s := newTestStore(t, Options{Name: "local.oplog.tail"})

	a := mustInsert(t, s, opEntry(1, 1))

	tx := txn.New()
	b, _ := s.Insert(tx, opEntry(1, 2), true)

	iter := s.ForwardIterator(db.NullID)
	defer iter.Close()

	if rec, ok := iter.Next(); !ok || rec.ID != a {
		t.Fatalf("expected %d", a)
	}

	// the boundary was taken when the iterator was created
	tx.Commit()
	if !iter.IsEOF() {
		t.Error("expected the iterator to end at its snapshot boundary")
	}

	// a new iterator resumes from there
	if got := forwardIDs(s, b); !equalIDs(got, []db.RecordID{b}) {
		t.Errorf("expected resumed reader to see %d, got %v", b, got)
	}
}

// --------------------------------------------------------------------------
// Stats
// --------------------------------------------------------------------------

func TestStats(t *testing.T) {
	s := newTestStore(t, Options{Name: "stats", MaxBytes: 1000, MaxDocs: 2})

	for i := 0; i < 3; i++ {
		mustInsert(t, s, []byte("0123456789"))
	}

	stats := s.Stats()
	if stats.Name != "stats" || !stats.Capped || stats.MaxBytes != 1000 || stats.MaxDocs != 2 {
		t.Errorf("unexpected configuration in stats: %+v", stats)
	}
	if stats.Inserts != 3 || stats.Evictions != 1 {
		t.Errorf("expected 3 inserts and 1 eviction, got %d and %d", stats.Inserts, stats.Evictions)
	}
	if stats.DB.DocCount != 2 || stats.DB.SizeBytes != 20 {
		t.Errorf("expected database info to be merged, got %+v", stats.DB)
	}

	var buf bytes.Buffer
	s.WritePrometheus(&buf)
	if !strings.Contains(buf.String(), `dcap_evictions_total{store="stats"} 1`) {
		t.Errorf("expected eviction counter in metrics output, got:\n%s", buf.String())
	}
}
