package queuestore

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/jobs"
)

var errDecodedRowNotMap = errors.New("queuestore: decoded row was not a map")

var (
	bucketJobs      = []byte("jobs")
	bucketJobsIndex = []byte("jobs_index")
)

// BoltQueue is the persistent Queue of spec.md §4.7 / SPEC_FULL.md §5.7,
// grounded on node/store/db.go's one-*bolt.DB-per-store,
// bucket-per-concern layout. bbolt has no secondary indexes, so
// pop_next scans an in-memory index kept current on every mutation
// and rebuilt from the jobs bucket on open; candidates are sorted by
// the tie-break at read time.
type BoltQueue struct {
	db *bolt.DB

	mu    sync.Mutex
	index []indexEntry // unsorted; PopNext and List sort what they select
}

type indexEntry struct {
	taskID [32]byte
	status jobs.QueueStatus
	kind   jobs.JobKind
}

// OpenBoltQueue opens (creating if absent) a bbolt-backed queue at
// path, matching node/store/db.go's bolt.Options{Timeout: time.Second}.
func OpenBoltQueue(path string) (*BoltQueue, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketJobs); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketJobsIndex); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	q := &BoltQueue{db: db}
	if err := q.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

func (q *BoltQueue) rebuildIndex() error {
	return q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		return b.ForEach(func(k, v []byte) error {
			var taskID [32]byte
			copy(taskID[:], k)
			decoded, err := capcbor.Decode(v)
			if err != nil {
				return err
			}
			item, err := itemFromMap(decoded)
			if err != nil {
				return err
			}
			q.index = append(q.index, indexEntry{taskID: item.TaskID, status: item.Status, kind: item.Kind})
			return nil
		})
	})
}

// priorityKeyBytes encodes a float64 so unsigned byte comparison
// matches ascending numeric order (standard order-preserving IEEE-754
// transform), then inverts every bit so the bucket's natural ascending
// byte-range scan yields priority DESC.
func priorityKeyBytes(priority float64) []byte {
	bits := math.Float64bits(priority)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	bits = ^bits
	out := make([]byte, 8)
	for i := 0; i < 8; i++ {
		out[7-i] = byte(bits)
		bits >>= 8
	}
	return out
}

func indexKey(item jobs.QueueItem) []byte {
	key := make([]byte, 0, 8+8+32)
	key = append(key, priorityKeyBytes(item.Priority)...)
	key = append(key, capdigest.U64BE(uint64(item.EnqueuedAt))...)
	key = append(key, item.TaskID[:]...)
	return key
}

func itemToMap(item jobs.QueueItem) map[string]any {
	return map[string]any{
		"task_id":      item.TaskID[:],
		"kind":         string(item.Kind),
		"chain_id":     item.ChainID,
		"height":       item.Height,
		"tx_hash":      item.TxHash,
		"caller":       item.Caller,
		"payload":      item.Payload,
		"priority":     item.Priority,
		"status":       string(item.Status),
		"attempts":     int64(item.Attempts),
		"max_attempts": int64(item.MaxAttempts),
		"error":        item.Error,
		"result":       item.Result,
		"enqueued_at":  item.EnqueuedAt,
		"updated_at":   item.UpdatedAt,
	}
}

func itemFromMap(decoded any) (jobs.QueueItem, error) {
	m, ok := decoded.(map[string]any)
	if !ok {
		return jobs.QueueItem{}, errDecodedRowNotMap
	}
	var item jobs.QueueItem
	if b, ok := m["task_id"].([]byte); ok {
		copy(item.TaskID[:], b)
	}
	if s, ok := m["kind"].(string); ok {
		item.Kind = jobs.JobKind(s)
	}
	item.ChainID, _ = asInt64(m["chain_id"])
	item.Height, _ = asInt64(m["height"])
	if b, ok := m["tx_hash"].([]byte); ok {
		item.TxHash = b
	}
	if b, ok := m["caller"].([]byte); ok {
		item.Caller = b
	}
	if p, ok := m["payload"].(map[string]any); ok {
		item.Payload = p
	}
	item.Priority, _ = asFloat64(m["priority"])
	if s, ok := m["status"].(string); ok {
		item.Status = jobs.QueueStatus(s)
	}
	if n, ok := asInt64(m["attempts"]); ok {
		item.Attempts = int(n)
	}
	if n, ok := asInt64(m["max_attempts"]); ok {
		item.MaxAttempts = int(n)
	}
	if s, ok := m["error"].(string); ok {
		item.Error = s
	}
	if b, ok := m["result"].([]byte); ok {
		item.Result = b
	}
	item.EnqueuedAt, _ = asInt64(m["enqueued_at"])
	item.UpdatedAt, _ = asInt64(m["updated_at"])
	return item, nil
}

func asInt64(v any) (int64, bool) {
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

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func (q *BoltQueue) Enqueue(item jobs.QueueItem) (jobs.QueueItem, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var result jobs.QueueItem
	inserted := false
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		existing := b.Get(item.TaskID[:])
		if existing != nil {
			decoded, err := capcbor.Decode(existing)
			if err != nil {
				return err
			}
			result, err = itemFromMap(decoded)
			return err
		}

		if item.MaxAttempts <= 0 {
			item.MaxAttempts = 1
		}
		item.Status = jobs.StatusQueued

		enc, err := capcbor.Encode(itemToMap(item))
		if err != nil {
			return err
		}
		if err := b.Put(item.TaskID[:], enc); err != nil {
			return err
		}
		idx := tx.Bucket(bucketJobsIndex)
		if err := idx.Put(indexKey(item), []byte{}); err != nil {
			return err
		}
		result = item
		inserted = true
		return nil
	})
	if err != nil {
		return jobs.QueueItem{}, false, err
	}
	if inserted {
		q.index = append(q.index, indexEntry{taskID: item.TaskID, status: item.Status, kind: item.Kind})
	}
	return result, inserted, nil
}

func (q *BoltQueue) PopNext(kind *jobs.JobKind) (jobs.QueueItem, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	candidateIdx := -1
	for i, e := range q.index {
		if e.status != jobs.StatusQueued {
			continue
		}
		if kind != nil && e.kind != *kind {
			continue
		}
		candidateIdx = i
		break
	}
	if candidateIdx < 0 {
		return jobs.QueueItem{}, false, nil
	}

	var picked jobs.QueueItem
	var candidates []jobs.QueueItem
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		for _, e := range q.index {
			if e.status != jobs.StatusQueued {
				continue
			}
			if kind != nil && e.kind != *kind {
				continue
			}
			raw := b.Get(e.taskID[:])
			if raw == nil {
				continue
			}
			decoded, err := capcbor.Decode(raw)
			if err != nil {
				return err
			}
			it, err := itemFromMap(decoded)
			if err != nil {
				return err
			}
			candidates = append(candidates, it)
		}
		return nil
	})
	if err != nil {
		return jobs.QueueItem{}, false, err
	}
	if len(candidates) == 0 {
		return jobs.QueueItem{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidateLess(candidates[i], candidates[j]) })
	picked = candidates[0]
	picked.Status = jobs.StatusInProgress

	err = q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		enc, err := capcbor.Encode(itemToMap(picked))
		if err != nil {
			return err
		}
		return b.Put(picked.TaskID[:], enc)
	})
	if err != nil {
		return jobs.QueueItem{}, false, err
	}
	q.setIndexStatus(picked.TaskID, jobs.StatusInProgress)
	return picked, true, nil
}

func (q *BoltQueue) setIndexStatus(taskID [32]byte, status jobs.QueueStatus) {
	for i := range q.index {
		if q.index[i].taskID == taskID {
			q.index[i].status = status
			return
		}
	}
}

func (q *BoltQueue) mutate(taskID [32]byte, fn func(jobs.QueueItem) (jobs.QueueItem, error)) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	var updated jobs.QueueItem
	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		raw := b.Get(taskID[:])
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := capcbor.Decode(raw)
		if err != nil {
			return err
		}
		item, err := itemFromMap(decoded)
		if err != nil {
			return err
		}
		updated, err = fn(item)
		if err != nil {
			return err
		}
		enc, err := capcbor.Encode(itemToMap(updated))
		if err != nil {
			return err
		}
		return b.Put(taskID[:], enc)
	})
	if err != nil {
		return err
	}
	q.setIndexStatus(taskID, updated.Status)
	return nil
}

func (q *BoltQueue) Requeue(taskID [32]byte, now int64, backoffSeconds int64) error {
	return q.mutate(taskID, func(it jobs.QueueItem) (jobs.QueueItem, error) {
		it.Attempts++
		if it.MaxAttempts > 0 && it.Attempts >= it.MaxAttempts {
			it.Status = jobs.StatusExpired
		} else {
			it.Status = jobs.StatusQueued
		}
		it.UpdatedAt = now + backoffSeconds
		return it, nil
	})
}

func (q *BoltQueue) Complete(taskID [32]byte, resultBytes []byte, now int64) error {
	return q.mutate(taskID, func(it jobs.QueueItem) (jobs.QueueItem, error) {
		it.Status = jobs.StatusCompleted
		it.Result = resultBytes
		it.UpdatedAt = now
		return it, nil
	})
}

func (q *BoltQueue) Fail(taskID [32]byte, errMsg string, now int64) error {
	return q.mutate(taskID, func(it jobs.QueueItem) (jobs.QueueItem, error) {
		it.Status = jobs.StatusFailed
		it.Error = errMsg
		it.Attempts++
		it.UpdatedAt = now
		return it, nil
	})
}

func (q *BoltQueue) List(filter ListFilter, limit, offset int) ([]jobs.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var all []jobs.QueueItem
	err := q.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		for _, e := range q.index {
			if filter.Status != nil && e.status != *filter.Status {
				continue
			}
			if filter.Kind != nil && e.kind != *filter.Kind {
				continue
			}
			raw := b.Get(e.taskID[:])
			if raw == nil {
				continue
			}
			decoded, err := capcbor.Decode(raw)
			if err != nil {
				return err
			}
			it, err := itemFromMap(decoded)
			if err != nil {
				return err
			}
			all = append(all, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(all, func(i, j int) bool { return candidateLess(all[i], all[j]) })

	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all, nil
}

func (q *BoltQueue) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{ByStatus: make(map[jobs.QueueStatus]int), ByKind: make(map[jobs.JobKind]int)}
	for _, e := range q.index {
		st.Total++
		st.ByStatus[e.status]++
		st.ByKind[e.kind]++
	}
	return st, nil
}

func (q *BoltQueue) Delete(taskID [32]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	err := q.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketJobs)
		raw := b.Get(taskID[:])
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := capcbor.Decode(raw)
		if err != nil {
			return err
		}
		item, err := itemFromMap(decoded)
		if err != nil {
			return err
		}
		if err := b.Delete(taskID[:]); err != nil {
			return err
		}
		idx := tx.Bucket(bucketJobsIndex)
		return idx.Delete(indexKey(item))
	})
	if err != nil {
		return err
	}
	for i := range q.index {
		if q.index[i].taskID == taskID {
			q.index = append(q.index[:i], q.index[i+1:]...)
			break
		}
	}
	return nil
}

func (q *BoltQueue) Close() error { return q.db.Close() }
