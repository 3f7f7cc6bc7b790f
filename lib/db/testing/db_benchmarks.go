package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/dCap/lib/db"
)

// RunRecordDBBenchmarks runs all benchmarks for a record database implementation
func RunRecordDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Insert", func(b *testing.B) {
		benchmarkInsert(b, factory())
	})

	b.Run("InsertLargeValue", func(b *testing.B) {
		benchmarkInsertLargeValue(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("DeleteOldest", func(b *testing.B) {
		benchmarkDeleteOldest(b, factory())
	})

	b.Run("ScanForward", func(b *testing.B) {
		benchmarkScan(b, factory(), db.Forward)
	})

	b.Run("ScanBackward", func(b *testing.B) {
		benchmarkScan(b, factory(), db.Backward)
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("CappedUsage", func(b *testing.B) {
		benchmarkCappedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Insert operation
func benchmarkInsert(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			_, _ = database.Insert([]byte(fmt.Sprintf("test-value-%d", counter)))
			counter++
		}
	})
}

// Benchmark for Insert operation with large values
func benchmarkInsertLargeValue(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert)

	largeValue := bytes.Repeat([]byte("x"), 64*1024)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = database.Insert(largeValue)
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet)

	// Prepare data
	numRecords := 10_000
	ids := make([]db.RecordID, numRecords)
	for i := 0; i < numRecords; i++ {
		ids[i], _ = database.Insert([]byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Get(ids[r.Intn(numRecords)])
		}
	})
}

// Benchmark for deleting the oldest record, the access pattern of capped eviction
func benchmarkDeleteOldest(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureDelete|db.FeatureIterate)

	for i := 0; i < b.N; i++ {
		_, _ = database.Insert([]byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		iter := database.NewIterator(db.NullID, db.Forward)
		if rec, ok := iter.Next(); ok {
			database.Delete(rec.ID)
		}
		iter.Close()
	}
}

// Benchmark for scanning a database in the given direction
func benchmarkScan(b *testing.B, database db.RecordDB, dir db.Direction) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureIterate)

	numRecords := 1_000
	for i := 0; i < numRecords; i++ {
		_, _ = database.Insert([]byte(fmt.Sprintf("test-value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		iter := database.NewIterator(db.NullID, dir)
		for {
			if _, ok := iter.Next(); !ok {
				break
			}
		}
		iter.Close()
	}
}

// Benchmark for Save and Load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {

	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureSave|db.FeatureLoad)

	numRecords := 100_000
	for i := 0; i < numRecords; i++ {
		_, _ = database.Insert([]byte(fmt.Sprintf("test-value-%d", i)))
	}

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save failed: %v", err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := database.Save(&buf); err != nil {
				b.Fatalf("Save failed: %v", err)
			}
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory()
		defer target.Close()
		for i := 0; i < b.N; i++ {
			if err := target.Load(bytes.NewReader(snapshot.Bytes())); err != nil {
				b.Fatalf("Load failed: %v", err)
			}
		}
	})
}

// Benchmark for a mix of appends, deletes of the oldest record and point reads
func benchmarkCappedUsage(b *testing.B, database db.RecordDB) {

	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureInsert|db.FeatureGet|db.FeatureDelete|db.FeatureIterate)

	var (
		newest  atomic.Int64
		payload = []byte("capped-usage-payload")
	)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			switch counter % 4 {
			case 0, 1: // append
				id, _ := database.Insert(payload)
				newest.Store(int64(id))
			case 2: // evict oldest
				iter := database.NewIterator(db.NullID, db.Forward)
				if rec, ok := iter.Next(); ok {
					database.Delete(rec.ID)
				}
				iter.Close()
			case 3: // read newest
				database.Get(db.RecordID(newest.Load()))
			}
			counter++
		}
	})
}
