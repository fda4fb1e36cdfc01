// Package queuestore implements the persistent job queue of spec.md
// §4.7: a single mutex-guarded store backed either by bbolt
// (BoltQueue) or an in-memory map (MemQueue), both satisfying the same
// Queue interface so callers never branch on backend.
package queuestore

import (
	"errors"

	"animica.dev/capabilities/jobs"
)

// ErrNotFound is returned by mutation methods when task_id names no row.
var ErrNotFound = errors.New("queuestore: task_id not found")

// ListFilter narrows List by status and/or kind; nil/empty fields mean
// "don't filter on this".
type ListFilter struct {
	Status *jobs.QueueStatus
	Kind   *jobs.JobKind
}

// Stats summarizes queue occupancy by status, per spec.md §4.7 `stats()`.
type Stats struct {
	Total    int
	ByStatus map[jobs.QueueStatus]int
	ByKind   map[jobs.JobKind]int
}

// Queue is the job-queue surface spec.md §4.7 describes.
type Queue interface {
	// Enqueue derives no task-id itself; callers pass the already-bound
	// item. INSERT-IF-NOT-EXISTS: if task_id already exists, the
	// existing row is left untouched and (existing, false) is returned.
	Enqueue(item jobs.QueueItem) (jobs.QueueItem, bool, error)

	// PopNext selects the highest-priority, oldest QUEUED row (filtered
	// by kind if non-nil) and marks it IN_PROGRESS, atomically.
	PopNext(kind *jobs.JobKind) (jobs.QueueItem, bool, error)

	// Requeue sets status back to QUEUED (or EXPIRED once attempts
	// exhausts max_attempts), increments attempts, and sets
	// updated_at = now+backoffSeconds.
	Requeue(taskID [32]byte, now int64, backoffSeconds int64) error

	// Complete marks task_id COMPLETED and stores the canonical-encoded
	// result bytes.
	Complete(taskID [32]byte, resultBytes []byte, now int64) error

	// Fail marks task_id FAILED, records errMsg, increments attempts.
	Fail(taskID [32]byte, errMsg string, now int64) error

	List(filter ListFilter, limit, offset int) ([]jobs.QueueItem, error)
	Stats() (Stats, error)
	Delete(taskID [32]byte) error
	Close() error
}
