package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/ValentinKolb/dCap/lib/db"
)

// DBFactory is a function that creates a new instance of a RecordDB implementation
type DBFactory func() db.RecordDB

// RunRecordDBTests runs a comprehensive test suite for a RecordDB implementation.
func RunRecordDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Insert&Get", func(t *testing.T) {
			testInsertGet(t, factory())
		})

		t.Run("InsertAt", func(t *testing.T) {
			testInsertAt(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Totals", func(t *testing.T) {
			testTotals(t, factory())
		})

		t.Run("ForwardIteration", func(t *testing.T) {
			testForwardIteration(t, factory())
		})

		t.Run("BackwardIteration", func(t *testing.T) {
			testBackwardIteration(t, factory())
		})

		t.Run("IteratorSurvivesDeletes", func(t *testing.T) {
			testIteratorSurvivesDeletes(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentInserts", func(t *testing.T) {
			testConcurrentInserts(t, factory())
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.RecordDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// insertN inserts n records with payload "value-<i>" and returns their ids
func insertN(t testing.TB, database db.RecordDB, n int) []db.RecordID {
	ids := make([]db.RecordID, 0, n)
	for i := 0; i < n; i++ {
		id, err := database.Insert([]byte(fmt.Sprintf("value-%d", i)))
		if err != nil {
			t.Fatalf("Unexpected error during Insert: %v", err)
		}
		ids = append(ids, id)
	}
	return ids
}

// collect drains an iterator
func collect(iter db.Iterator) []db.Record {
	defer iter.Close()
	var out []db.Record
	for {
		rec, ok := iter.Next()
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

func idsOf(records []db.Record) []db.RecordID {
	ids := make([]db.RecordID, len(records))
	for i, r := range records {
		ids[i] = r.ID
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
// Test functions
// --------------------------------------------------------------------------

func testInsertGet(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet)

	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	id1, err := database.Insert(testValue1)
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}
	id2, err := database.Insert(testValue2)
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}

	if !id1.IsValid() || !id2.IsValid() {
		t.Errorf("Expected valid ids, got %v and %v", id1, id2)
	}
	if id2 <= id1 {
		t.Errorf("Expected increasing ids, got %v then %v", id1, id2)
	}

	result, exists := database.Get(id1)
	if !exists {
		t.Errorf("Expected id %v to exist after Insert", id1)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	result, exists = database.Get(id2)
	if !exists || !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = database.Get(id2 + 100); exists {
		t.Errorf("Expected unknown id to return exists=false")
	}

	// modifying the returned value must not change the stored record
	retrievedValue, _ := database.Get(id1)
	retrievedValue[0] = 'X'
	result, _ = database.Get(id1)
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Stored value was modified through the returned slice")
	}

	// modifying the inserted slice must not change the stored record
	input := []byte("mutable")
	id3, _ := database.Insert(input)
	input[0] = 'X'
	result, _ = database.Get(id3)
	if !bytes.Equal(result, []byte("mutable")) {
		t.Errorf("Stored value was modified through the input slice")
	}
}

func testInsertAt(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureInsertAt|db.FeatureGet)

	if err := database.InsertAt(1000, []byte("at-1000")); err != nil {
		t.Fatalf("Unexpected error during InsertAt: %v", err)
	}

	result, exists := database.Get(1000)
	if !exists || !bytes.Equal(result, []byte("at-1000")) {
		t.Errorf("Expected record at id 1000, got %s (exists=%v)", result, exists)
	}

	// duplicates are rejected and leave the record untouched
	err := database.InsertAt(1000, []byte("other"))
	if !errors.Is(err, db.ErrDuplicateID) {
		t.Errorf("Expected ErrDuplicateID, got %v", err)
	}
	result, _ = database.Get(1000)
	if !bytes.Equal(result, []byte("at-1000")) {
		t.Errorf("Duplicate InsertAt modified the record")
	}

	// invalid ids are rejected
	for _, id := range []db.RecordID{db.NullID, db.InvalidID, db.MaxID} {
		if err := database.InsertAt(id, []byte("x")); !errors.Is(err, db.ErrInvalidID) {
			t.Errorf("Expected ErrInvalidID for %v, got %v", id, err)
		}
	}

	// engine assigned ids stay above caller chosen ids
	id, err := database.Insert([]byte("after"))
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}
	if id <= 1000 {
		t.Errorf("Expected assigned id above 1000, got %v", id)
	}

	// gaps below the highest id can still be filled
	if err := database.InsertAt(500, []byte("at-500")); err != nil {
		t.Errorf("Unexpected error filling a gap: %v", err)
	}
}

func testDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureDelete)

	id, _ := database.Insert([]byte("to-delete"))

	if !database.Delete(id) {
		t.Errorf("Expected Delete to report an existing record")
	}

	if _, exists := database.Get(id); exists {
		t.Errorf("Expected id %v to not exist after Delete", id)
	}

	if database.Delete(id) {
		t.Errorf("Expected second Delete to report no record")
	}

	// ids are never reused
	next, _ := database.Insert([]byte("next"))
	if next <= id {
		t.Errorf("Expected id after %v, got %v", id, next)
	}
}

func testTotals(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete)

	if database.TotalBytes() != 0 || database.TotalDocs() != 0 {
		t.Fatalf("Expected empty database, got %d bytes and %d docs", database.TotalBytes(), database.TotalDocs())
	}

	id1, _ := database.Insert(make([]byte, 40))
	_, _ = database.Insert(make([]byte, 60))
	_, _ = database.Insert(nil)

	if got := database.TotalBytes(); got != 100 {
		t.Errorf("Expected 100 bytes, got %d", got)
	}
	if got := database.TotalDocs(); got != 3 {
		t.Errorf("Expected 3 docs, got %d", got)
	}

	database.Delete(id1)

	if got := database.TotalBytes(); got != 60 {
		t.Errorf("Expected 60 bytes after delete, got %d", got)
	}
	if got := database.TotalDocs(); got != 2 {
		t.Errorf("Expected 2 docs after delete, got %d", got)
	}

	info := database.GetInfo()
	if info.SizeBytes != 60 || info.DocCount != 2 {
		t.Errorf("GetInfo reports %d bytes and %d docs", info.SizeBytes, info.DocCount)
	}
}

func testForwardIteration(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureIterate)

	ids := insertN(t, database, 10)

	// from the beginning
	records := collect(database.NewIterator(db.NullID, db.Forward))
	if !equalIDs(idsOf(records), ids) {
		t.Errorf("Expected %v, got %v", ids, idsOf(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("value-%d", i); string(r.Data) != want {
			t.Errorf("Expected payload %s, got %s", want, r.Data)
		}
	}

	// from an existing id (inclusive)
	records = collect(database.NewIterator(ids[4], db.Forward))
	if !equalIDs(idsOf(records), ids[4:]) {
		t.Errorf("Expected %v, got %v", ids[4:], idsOf(records))
	}

	// from a missing id: first id >= start
	database.Delete(ids[5])
	records = collect(database.NewIterator(ids[5], db.Forward))
	if !equalIDs(idsOf(records), ids[6:]) {
		t.Errorf("Expected %v, got %v", ids[6:], idsOf(records))
	}

	// past the end
	iter := database.NewIterator(ids[9]+1, db.Forward)
	if !iter.IsEOF() {
		t.Errorf("Expected EOF when starting past the last record")
	}
	if _, ok := iter.Next(); ok {
		t.Errorf("Expected no record when starting past the last record")
	}
	iter.Close()
}

func testBackwardIteration(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureIterate)

	ids := insertN(t, database, 10)
	reversed := make([]db.RecordID, len(ids))
	for i, id := range ids {
		reversed[len(ids)-1-i] = id
	}

	// from the end
	records := collect(database.NewIterator(db.NullID, db.Backward))
	if !equalIDs(idsOf(records), reversed) {
		t.Errorf("Expected %v, got %v", reversed, idsOf(records))
	}

	// from an existing id (inclusive)
	records = collect(database.NewIterator(ids[4], db.Backward))
	if !equalIDs(idsOf(records), reversed[5:]) {
		t.Errorf("Expected %v, got %v", reversed[5:], idsOf(records))
	}

	// from a missing id: last id <= start
	database.Delete(ids[4])
	records = collect(database.NewIterator(ids[4], db.Backward))
	if !equalIDs(idsOf(records), reversed[6:]) {
		t.Errorf("Expected %v, got %v", reversed[6:], idsOf(records))
	}

	// before the beginning
	iter := database.NewIterator(ids[0]-1, db.Backward)
	if ids[0]-1 != db.NullID && !iter.IsEOF() {
		t.Errorf("Expected EOF when starting before the first record")
	}
	iter.Close()
}

func testIteratorSurvivesDeletes(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureDelete|db.FeatureIterate)

	ids := insertN(t, database, 10)

	iter := database.NewIterator(db.NullID, db.Forward)
	defer iter.Close()

	first, ok := iter.Next()
	if !ok || first.ID != ids[0] {
		t.Fatalf("Expected first record %v, got %v", ids[0], first.ID)
	}

	// delete the record the iterator would return next and a later one
	database.Delete(ids[1])
	database.Delete(ids[5])

	var seen []db.RecordID
	for {
		rec, ok := iter.Next()
		if !ok {
			break
		}
		seen = append(seen, rec.ID)
	}

	expected := []db.RecordID{ids[2], ids[3], ids[4], ids[6], ids[7], ids[8], ids[9]}
	if !equalIDs(seen, expected) {
		t.Errorf("Expected %v, got %v", expected, seen)
	}

	// records appended after exhaustion are picked up by a later Next
	appended, _ := database.Insert([]byte("late"))
	rec, ok := iter.Next()
	if !ok || rec.ID != appended {
		t.Errorf("Expected iterator to pick up appended record %v, got %v (ok=%v)", appended, rec.ID, ok)
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	ids := insertN(t, database, numEntries)

	// leave a hole
	database.Delete(ids[10])

	// content of the target database is replaced
	_, _ = database2.Insert([]byte("will be replaced"))

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i, id := range ids {
		actualValue, exists := database2.Get(id)
		if i == 10 {
			if exists {
				t.Errorf("Deleted id %v exists after Load", id)
			}
			continue
		}
		if !exists {
			t.Errorf("Id %v not found after Load", id)
			continue
		}
		if expected := fmt.Sprintf("value-%d", i); string(actualValue) != expected {
			t.Errorf("Value mismatch for id %v: expected %s, got %s", id, expected, actualValue)
		}
	}

	if database2.TotalDocs() != database.TotalDocs() || database2.TotalBytes() != database.TotalBytes() {
		t.Errorf("Totals differ after Load: %d/%d docs, %d/%d bytes",
			database2.TotalDocs(), database.TotalDocs(), database2.TotalBytes(), database.TotalBytes())
	}

	// ids continue after the restored records
	next, err := database2.Insert([]byte("next"))
	if err != nil {
		t.Fatalf("Unexpected error during Insert: %v", err)
	}
	if next <= ids[len(ids)-1] {
		t.Errorf("Expected id above %v after Load, got %v", ids[len(ids)-1], next)
	}

	// garbage input is rejected
	if err := database2.Load(bytes.NewReader([]byte("not a snapshot"))); err == nil {
		t.Errorf("Expected error when loading invalid data")
	}
}

func testEdgeCases(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureGet|db.FeatureIterate)

	// empty and nil payloads
	emptyID, err := database.Insert([]byte{})
	if err != nil {
		t.Fatalf("Unexpected error inserting empty value: %v", err)
	}
	nilID, err := database.Insert(nil)
	if err != nil {
		t.Fatalf("Unexpected error inserting nil value: %v", err)
	}

	if result, exists := database.Get(emptyID); !exists || len(result) != 0 {
		t.Errorf("Empty value mismatch (exists=%v, len=%d)", exists, len(result))
	}
	if result, exists := database.Get(nilID); !exists || len(result) != 0 {
		t.Errorf("Nil value mismatch (exists=%v, len=%d)", exists, len(result))
	}

	// sentinels never address a record
	for _, id := range []db.RecordID{db.NullID, db.InvalidID, db.MaxID} {
		if _, exists := database.Get(id); exists {
			t.Errorf("Sentinel %v must not address a record", id)
		}
	}

	// large payload
	large := bytes.Repeat([]byte("x"), 1<<20)
	largeID, err := database.Insert(large)
	if err != nil {
		t.Fatalf("Unexpected error inserting large value: %v", err)
	}
	if result, _ := database.Get(largeID); !bytes.Equal(result, large) {
		t.Errorf("Large value mismatch")
	}

	// closed iterators return nothing
	iter := database.NewIterator(db.NullID, db.Forward)
	iter.Close()
	if _, ok := iter.Next(); ok {
		t.Errorf("Expected closed iterator to return no record")
	}
}

func testConcurrentInserts(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureInsert|db.FeatureIterate)

	const (
		workers   = 8
		perWorker = 500
	)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[db.RecordID]bool, workers*perWorker)
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			last := db.NullID
			for i := 0; i < perWorker; i++ {
				id, err := database.Insert([]byte(fmt.Sprintf("w%d-%d", w, i)))
				if err != nil {
					t.Errorf("Unexpected error during Insert: %v", err)
					return
				}
				// ids seen by a single caller are increasing
				if id <= last {
					t.Errorf("Expected increasing ids, got %v after %v", id, last)
				}
				last = id

				mu.Lock()
				if seen[id] {
					t.Errorf("Duplicate id %v", id)
				}
				seen[id] = true
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	if got := database.TotalDocs(); got != workers*perWorker {
		t.Errorf("Expected %d docs, got %d", workers*perWorker, got)
	}

	// iteration returns every record in ascending order
	records := collect(database.NewIterator(db.NullID, db.Forward))
	if len(records) != workers*perWorker {
		t.Errorf("Expected %d records, got %d", workers*perWorker, len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].ID <= records[i-1].ID {
			t.Fatalf("Iteration out of order at %d: %v after %v", i, records[i].ID, records[i-1].ID)
		}
	}
}

func testClosed(t *testing.T, database db.RecordDB) {
	requireFeature(t, database, db.FeatureInsert|db.FeatureInsertAt)

	if err := database.Close(); err != nil {
		t.Fatalf("Unexpected error during Close: %v", err)
	}

	if _, err := database.Insert([]byte("x")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from Insert, got %v", err)
	}
	if err := database.InsertAt(5, []byte("x")); !errors.Is(err, db.ErrClosed) {
		t.Errorf("Expected ErrClosed from InsertAt, got %v", err)
	}
}
