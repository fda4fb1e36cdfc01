package queuestore

import (
	"bytes"
	"sort"
	"sync"

	"animica.dev/capabilities/jobs"
)

// MemQueue is the in-memory Queue used by tests and as the no-adapter
// fallback path. A single mutex stands in for spec.md §4.7's
// "single writer lock (re-entrant)".
type MemQueue struct {
	mu    sync.Mutex
	items map[[32]byte]jobs.QueueItem
}

// NewMemQueue returns an empty in-memory queue.
func NewMemQueue() *MemQueue {
	return &MemQueue{items: make(map[[32]byte]jobs.QueueItem)}
}

func (q *MemQueue) Enqueue(item jobs.QueueItem) (jobs.QueueItem, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if existing, ok := q.items[item.TaskID]; ok {
		return existing, false, nil
	}
	if item.MaxAttempts <= 0 {
		item.MaxAttempts = 1
	}
	item.Status = jobs.StatusQueued
	q.items[item.TaskID] = item
	return item, true, nil
}

// candidateLess implements the §4.7 selection tie-break: priority
// DESC, then enqueued_at ASC, then task_id ASC.
func candidateLess(a, b jobs.QueueItem) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.EnqueuedAt != b.EnqueuedAt {
		return a.EnqueuedAt < b.EnqueuedAt
	}
	return bytes.Compare(a.TaskID[:], b.TaskID[:]) < 0
}

func (q *MemQueue) PopNext(kind *jobs.JobKind) (jobs.QueueItem, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var candidates []jobs.QueueItem
	for _, it := range q.items {
		if it.Status != jobs.StatusQueued {
			continue
		}
		if kind != nil && it.Kind != *kind {
			continue
		}
		candidates = append(candidates, it)
	}
	if len(candidates) == 0 {
		return jobs.QueueItem{}, false, nil
	}
	sort.Slice(candidates, func(i, j int) bool { return candidateLess(candidates[i], candidates[j]) })

	next := candidates[0]
	next.Status = jobs.StatusInProgress
	q.items[next.TaskID] = next
	return next, true, nil
}

func (q *MemQueue) Requeue(taskID [32]byte, now int64, backoffSeconds int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[taskID]
	if !ok {
		return ErrNotFound
	}
	it.Attempts++
	if it.MaxAttempts > 0 && it.Attempts >= it.MaxAttempts {
		it.Status = jobs.StatusExpired
	} else {
		it.Status = jobs.StatusQueued
	}
	it.UpdatedAt = now + backoffSeconds
	q.items[taskID] = it
	return nil
}

func (q *MemQueue) Complete(taskID [32]byte, resultBytes []byte, now int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[taskID]
	if !ok {
		return ErrNotFound
	}
	it.Status = jobs.StatusCompleted
	it.Result = resultBytes
	it.UpdatedAt = now
	q.items[taskID] = it
	return nil
}

func (q *MemQueue) Fail(taskID [32]byte, errMsg string, now int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	it, ok := q.items[taskID]
	if !ok {
		return ErrNotFound
	}
	it.Status = jobs.StatusFailed
	it.Error = errMsg
	it.Attempts++
	it.UpdatedAt = now
	q.items[taskID] = it
	return nil
}

func (q *MemQueue) List(filter ListFilter, limit, offset int) ([]jobs.QueueItem, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var all []jobs.QueueItem
	for _, it := range q.items {
		if filter.Status != nil && it.Status != *filter.Status {
			continue
		}
		if filter.Kind != nil && it.Kind != *filter.Kind {
			continue
		}
		all = append(all, it)
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

func (q *MemQueue) Stats() (Stats, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	st := Stats{ByStatus: make(map[jobs.QueueStatus]int), ByKind: make(map[jobs.JobKind]int)}
	for _, it := range q.items {
		st.Total++
		st.ByStatus[it.Status]++
		st.ByKind[it.Kind]++
	}
	return st, nil
}

func (q *MemQueue) Delete(taskID [32]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.items[taskID]; !ok {
		return ErrNotFound
	}
	delete(q.items, taskID)
	return nil
}

func (q *MemQueue) Close() error { return nil }
