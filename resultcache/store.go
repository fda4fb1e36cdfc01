package resultcache

import (
	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/resultstore"
)

// CachingStore wraps a resultstore.Store with a Cache in front of it:
// Get is read-through (cache miss falls through to the backing store
// and populates the cache), Put writes both, and BeginBlock is
// exposed directly so callers (the block-processing pipeline) can
// drive the cache's window eviction and reorg rewind as blocks seal.
// This is the fast path spec.md §4.9 describes result.read using
// ahead of the durable store.
type CachingStore struct {
	cache   *Cache
	backing resultstore.Store
}

// NewCachingStore builds a CachingStore. cache and backing must both
// be non-nil.
func NewCachingStore(cache *Cache, backing resultstore.Store) *CachingStore {
	return &CachingStore{cache: cache, backing: backing}
}

// BeginBlock forwards to the underlying Cache.
func (s *CachingStore) BeginBlock(height int64) { s.cache.BeginBlock(height) }

func (s *CachingStore) Put(caller []byte, rec jobs.ResultRecord) error {
	if err := s.backing.Put(caller, rec); err != nil {
		return err
	}
	s.cache.Put(rec.TaskID, rec, rec.HeightAvailable, caller)
	return nil
}

func (s *CachingStore) Get(taskID [32]byte) (jobs.ResultRecord, bool, error) {
	if rec, ok := s.cache.Get(taskID); ok {
		return rec, true, nil
	}
	rec, ok, err := s.backing.Get(taskID)
	if err != nil || !ok {
		return rec, ok, err
	}
	s.cache.Put(taskID, rec, rec.HeightAvailable, nil)
	return rec, true, nil
}

func (s *CachingStore) Has(taskID [32]byte) (bool, error) {
	if s.cache.Has(taskID) {
		return true, nil
	}
	return s.backing.Has(taskID)
}

func (s *CachingStore) Delete(taskID [32]byte) error {
	return s.backing.Delete(taskID)
}

func (s *CachingStore) ListRecent(limit, offset int) ([]jobs.ResultRecord, error) {
	return s.backing.ListRecent(limit, offset)
}

func (s *CachingStore) ListByCaller(caller []byte, limit, offset int) ([]jobs.ResultRecord, error) {
	return s.backing.ListByCaller(caller, limit, offset)
}

func (s *CachingStore) Close() error { return s.backing.Close() }

var _ resultstore.Store = (*CachingStore)(nil)
