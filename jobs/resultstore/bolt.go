package resultstore

import (
	"bytes"
	"errors"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/jobs"
)

var (
	bucketResults         = []byte("results")
	bucketResultsByCaller = []byte("results_by_caller")
	bucketResultsByHeight = []byte("results_by_height")
)

var errDecodedRowNotMap = errors.New("resultstore: decoded row was not a map")

// BoltStore is the persistent Store of spec.md §4.8 / SPEC_FULL.md §7,
// grounded on node/store/db.go's bucket-per-concern layout. The
// (caller, height) and (height) secondary indexes are maintained both
// on disk (results_by_caller, results_by_height, matching the
// persisted layout external tooling may read) and as an in-memory
// slice kept current on every mutation and sorted when listed, the
// same hot-cache shape jobs/queuestore uses for its priority index.
// The list methods read only the in-memory slice.
type BoltStore struct {
	db *bolt.DB

	mu    sync.Mutex
	index []resultIndexEntry
}

type resultIndexEntry struct {
	taskID    [32]byte
	caller    []byte
	height    int64
	createdAt int64
}

// OpenBoltStore opens (creating if absent) a bbolt-backed result store
// at path.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketResults, bucketResultsByCaller, bucketResultsByHeight} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	s := &BoltStore{db: db}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) rebuildIndex() error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		return b.ForEach(func(k, v []byte) error {
			decoded, err := capcbor.Decode(v)
			if err != nil {
				return err
			}
			rec, caller, createdAt, err := recordFromMap(decoded)
			if err != nil {
				return err
			}
			s.index = append(s.index, resultIndexEntry{
				taskID: rec.TaskID, caller: caller, height: rec.HeightAvailable, createdAt: createdAt,
			})
			_ = k
			return nil
		})
	})
}

func invertedU64BE(v int64) []byte {
	u := uint64(v)
	u = ^u
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[7-i] = byte(u)
		u >>= 8
	}
	return out
}

func callerIndexKey(caller []byte, height, createdAt int64, taskID [32]byte) []byte {
	key := make([]byte, 0, len(caller)+8+8+32)
	key = append(key, caller...)
	key = append(key, invertedU64BE(height)...)
	key = append(key, invertedU64BE(createdAt)...)
	key = append(key, taskID[:]...)
	return key
}

func heightIndexKey(height, createdAt int64, taskID [32]byte) []byte {
	key := make([]byte, 0, 8+8+32)
	key = append(key, invertedU64BE(height)...)
	key = append(key, invertedU64BE(createdAt)...)
	key = append(key, taskID[:]...)
	return key
}

func recordToMap(caller []byte, rec jobs.ResultRecord, createdAt int64) map[string]any {
	return map[string]any{
		"task_id":          rec.TaskID[:],
		"caller":           caller,
		"kind":             string(rec.Kind),
		"success":          rec.Success,
		"height_available": rec.HeightAvailable,
		"output_digest":    rec.OutputDigest,
		"output_pointer":   rec.OutputPointer,
		"metrics":          rec.Metrics,
		"error":            rec.Error,
		"completed_at":     rec.CompletedAt,
		"provider_id":      rec.ProviderID,
		"created_at":       createdAt,
	}
}

func recordFromMap(decoded any) (jobs.ResultRecord, []byte, int64, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return jobs.ResultRecord{}, nil, 0, errDecodedRowNotMap
	}
	var rec jobs.ResultRecord
	if b, ok := m["task_id"].([]byte); ok {
		copy(rec.TaskID[:], b)
	}
	var caller []byte
	if b, ok := m["caller"].([]byte); ok {
		caller = b
	}
	if s, ok := m["kind"].(string); ok {
		rec.Kind = jobs.JobKind(s)
	}
	if v, ok := m["success"].(bool); ok {
		rec.Success = v
	}
	rec.HeightAvailable, _ = asInt64r(m["height_available"])
	if b, ok := m["output_digest"].([]byte); ok {
		rec.OutputDigest = b
	}
	if s, ok := m["output_pointer"].(string); ok {
		rec.OutputPointer = s
	}
	if mm, ok := m["metrics"].(map[string]any); ok {
		rec.Metrics = mm
	}
	if s, ok := m["error"].(string); ok {
		rec.Error = s
	}
	rec.CompletedAt, _ = asInt64r(m["completed_at"])
	if s, ok := m["provider_id"].(string); ok {
		rec.ProviderID = s
	}
	createdAt, _ := asInt64r(m["created_at"])
	return rec, caller, createdAt, nil
}

func asInt64r(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int:
		return int64(n), true
	}
	return 0, false
}

func (s *BoltStore) Put(caller []byte, rec jobs.ResultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CompletedAt
	err := s.db.Update(func(tx *bolt.Tx) error {
		results := tx.Bucket(bucketResults)

		// Insert-or-replace: if an old row exists, remove its stale
		// secondary-index entries first.
		if old := results.Get(rec.TaskID[:]); old != nil {
			decoded, err := capcbor.Decode(old)
			if err != nil {
				return err
			}
			oldRec, oldCaller, oldCreatedAt, err := recordFromMap(decoded)
			if err != nil {
				return err
			}
			byCaller := tx.Bucket(bucketResultsByCaller)
			if err := byCaller.Delete(callerIndexKey(oldCaller, oldRec.HeightAvailable, oldCreatedAt, oldRec.TaskID)); err != nil {
				return err
			}
			byHeight := tx.Bucket(bucketResultsByHeight)
			if err := byHeight.Delete(heightIndexKey(oldRec.HeightAvailable, oldCreatedAt, oldRec.TaskID)); err != nil {
				return err
			}
		}

		enc, err := capcbor.Encode(recordToMap(caller, rec, createdAt))
		if err != nil {
			return err
		}
		if err := results.Put(rec.TaskID[:], enc); err != nil {
			return err
		}
		byCaller := tx.Bucket(bucketResultsByCaller)
		if err := byCaller.Put(callerIndexKey(caller, rec.HeightAvailable, createdAt, rec.TaskID), rec.TaskID[:]); err != nil {
			return err
		}
		byHeight := tx.Bucket(bucketResultsByHeight)
		return byHeight.Put(heightIndexKey(rec.HeightAvailable, createdAt, rec.TaskID), rec.TaskID[:])
	})
	if err != nil {
		return err
	}

	for i := range s.index {
		if s.index[i].taskID == rec.TaskID {
			s.index = append(s.index[:i], s.index[i+1:]...)
			break
		}
	}
	s.index = append(s.index, resultIndexEntry{taskID: rec.TaskID, caller: caller, height: rec.HeightAvailable, createdAt: createdAt})
	return nil
}

func (s *BoltStore) Get(taskID [32]byte) (jobs.ResultRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rec jobs.ResultRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		raw := b.Get(taskID[:])
		if raw == nil {
			return nil
		}
		decoded, err := capcbor.Decode(raw)
		if err != nil {
			return err
		}
		r, _, _, err := recordFromMap(decoded)
		if err != nil {
			return err
		}
		rec = r
		found = true
		return nil
	})
	if err != nil {
		return jobs.ResultRecord{}, false, err
	}
	return rec, found, nil
}

func (s *BoltStore) Has(taskID [32]byte) (bool, error) {
	_, found, err := s.Get(taskID)
	return found, err
}

func (s *BoltStore) Delete(taskID [32]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bolt.Tx) error {
		results := tx.Bucket(bucketResults)
		raw := results.Get(taskID[:])
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := capcbor.Decode(raw)
		if err != nil {
			return err
		}
		rec, caller, createdAt, err := recordFromMap(decoded)
		if err != nil {
			return err
		}
		if err := results.Delete(taskID[:]); err != nil {
			return err
		}
		byCaller := tx.Bucket(bucketResultsByCaller)
		if err := byCaller.Delete(callerIndexKey(caller, rec.HeightAvailable, createdAt, rec.TaskID)); err != nil {
			return err
		}
		byHeight := tx.Bucket(bucketResultsByHeight)
		return byHeight.Delete(heightIndexKey(rec.HeightAvailable, createdAt, rec.TaskID))
	})
	if err != nil {
		return err
	}
	for i := range s.index {
		if s.index[i].taskID == taskID {
			s.index = append(s.index[:i], s.index[i+1:]...)
			break
		}
	}
	return nil
}

func indexLess(a, b resultIndexEntry) bool {
	if a.height != b.height {
		return a.height > b.height
	}
	if a.createdAt != b.createdAt {
		return a.createdAt > b.createdAt
	}
	return bytes.Compare(a.taskID[:], b.taskID[:]) < 0
}

func (s *BoltStore) ListRecent(limit, offset int) ([]jobs.ResultRecord, error) {
	s.mu.Lock()
	entries := append([]resultIndexEntry(nil), s.index...)
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return indexLess(entries[i], entries[j]) })
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return s.hydrate(entries)
}

func (s *BoltStore) ListByCaller(caller []byte, limit, offset int) ([]jobs.ResultRecord, error) {
	s.mu.Lock()
	var entries []resultIndexEntry
	for _, e := range s.index {
		if bytes.Equal(e.caller, caller) {
			entries = append(entries, e)
		}
	}
	s.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return indexLess(entries[i], entries[j]) })
	if offset >= len(entries) {
		return nil, nil
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}
	return s.hydrate(entries)
}

func (s *BoltStore) hydrate(entries []resultIndexEntry) ([]jobs.ResultRecord, error) {
	out := make([]jobs.ResultRecord, 0, len(entries))
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketResults)
		for _, e := range entries {
			raw := b.Get(e.taskID[:])
			if raw == nil {
				continue
			}
			decoded, err := capcbor.Decode(raw)
			if err != nil {
				return err
			}
			rec, _, _, err := recordFromMap(decoded)
			if err != nil {
				return err
			}
			out = append(out, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BoltStore) Close() error { return s.db.Close() }
