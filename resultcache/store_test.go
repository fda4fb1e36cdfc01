package resultcache

import (
	"testing"

	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/resultstore"
)

func TestCachingStorePutThenGetHitsCacheWithoutTouchingBacking(t *testing.T) {
	cache, err := New(16, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backing := resultstore.NewMemStore()
	store := NewCachingStore(cache, backing)

	var taskID [32]byte
	taskID[0] = 0x01
	rec := jobs.ResultRecord{TaskID: taskID, Success: true, HeightAvailable: 5}
	if err := store.Put([]byte("alice"), rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := store.Get(taskID)
	if err != nil || !ok || !got.Success {
		t.Fatalf("expected cached hit, got ok=%v err=%v rec=%+v", ok, err, got)
	}
	if cache.Stats().Hits != 1 {
		t.Fatalf("expected cache hit recorded, got %+v", cache.Stats())
	}
}

func TestCachingStoreGetFallsThroughToBackingAndPopulatesCache(t *testing.T) {
	cache, err := New(16, 1000)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backing := resultstore.NewMemStore()
	var taskID [32]byte
	taskID[0] = 0x02
	if err := backing.Put([]byte("bob"), jobs.ResultRecord{TaskID: taskID, Success: true, HeightAvailable: 9}); err != nil {
		t.Fatalf("seed backing: %v", err)
	}
	store := NewCachingStore(cache, backing)

	_, ok, err := store.Get(taskID)
	if err != nil || !ok {
		t.Fatalf("expected fall-through hit, got ok=%v err=%v", ok, err)
	}
	if !cache.Has(taskID) {
		t.Fatalf("expected cache populated after fall-through read")
	}
}

func TestCachingStoreBeginBlockEvictsStaleCacheEntriesButNotBacking(t *testing.T) {
	cache, err := New(16, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	backing := resultstore.NewMemStore()
	store := NewCachingStore(cache, backing)

	var taskID [32]byte
	taskID[0] = 0x03
	store.BeginBlock(1)
	if err := store.Put([]byte("carol"), jobs.ResultRecord{TaskID: taskID, Success: true, HeightAvailable: 1}); err != nil {
		t.Fatalf("put: %v", err)
	}
	store.BeginBlock(2)

	if cache.Has(taskID) {
		t.Fatalf("expected stale cache entry evicted from the window")
	}
	if ok, err := backing.Has(taskID); err != nil || !ok {
		t.Fatalf("expected backing store to retain the record, ok=%v err=%v", ok, err)
	}
}
