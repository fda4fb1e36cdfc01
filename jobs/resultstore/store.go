// Package resultstore implements the two interchangeable result-store
// backends of spec.md §4.8: memory (MemStore) and persistent bbolt
// (BoltStore), both satisfying the same Store interface. Records are
// stored in canonical codec bytes; ordering is (height DESC,
// created_at DESC).
package resultstore

import (
	"errors"

	"animica.dev/capabilities/jobs"
)

// ErrNotFound is returned by Delete when task_id names no row. Get
// returns (zero, false, nil) instead, per spec.md "get(task_id) → rec?".
var ErrNotFound = errors.New("resultstore: task_id not found")

// Store is the result-store surface spec.md §4.8 describes. caller is
// carried alongside the record (spec.md §6's `results(... caller bytes
// ...)` column lives outside jobs.ResultRecord itself) so the caller
// and height secondary indexes can be maintained without requiring
// every producer to stuff caller into the record.
type Store interface {
	Put(caller []byte, rec jobs.ResultRecord) error
	Get(taskID [32]byte) (jobs.ResultRecord, bool, error)
	Has(taskID [32]byte) (bool, error)
	Delete(taskID [32]byte) error
	ListRecent(limit, offset int) ([]jobs.ResultRecord, error)
	ListByCaller(caller []byte, limit, offset int) ([]jobs.ResultRecord, error)
	Close() error
}
