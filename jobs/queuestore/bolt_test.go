package queuestore

import (
	"path/filepath"
	"testing"

	"animica.dev/capabilities/jobs"
)

func openTestBoltQueue(t *testing.T) *BoltQueue {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.bolt")
	q, err := OpenBoltQueue(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { q.Close() })
	return q
}

func TestBoltQueueEnqueueIsIdempotent(t *testing.T) {
	q := openTestBoltQueue(t)
	item := mkItem(1, 1.0, 100)

	_, inserted1, err := q.Enqueue(item)
	if err != nil || !inserted1 {
		t.Fatalf("first enqueue: inserted=%v err=%v", inserted1, err)
	}
	item.Priority = 9.0
	got2, inserted2, err := q.Enqueue(item)
	if err != nil {
		t.Fatalf("second enqueue: %v", err)
	}
	if inserted2 {
		t.Fatalf("expected second enqueue to be a no-op")
	}
	if got2.Priority != 1.0 {
		t.Fatalf("expected original priority preserved, got %v", got2.Priority)
	}
}

func TestBoltQueuePopNextOrdersByPriorityThenAge(t *testing.T) {
	q := openTestBoltQueue(t)
	q.Enqueue(mkItem(1, 1.0, 100))
	q.Enqueue(mkItem(2, 5.0, 200))
	q.Enqueue(mkItem(3, 5.0, 50))

	picked, ok, err := q.PopNext(nil)
	if err != nil || !ok {
		t.Fatalf("pop: ok=%v err=%v", ok, err)
	}
	if picked.TaskID[0] != 3 {
		t.Fatalf("expected highest priority + oldest row first (task 3), got taskID[0]=%d", picked.TaskID[0])
	}
}

func TestBoltQueuePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.bolt")
	q, err := OpenBoltQueue(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	item := mkItem(7, 2.0, 100)
	if _, _, err := q.Enqueue(item); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := q.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBoltQueue(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.List(ListFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].TaskID != item.TaskID {
		t.Fatalf("expected row to survive reopen, got %+v", rows)
	}
}

func TestBoltQueueRequeueAndComplete(t *testing.T) {
	q := openTestBoltQueue(t)
	item := mkItem(9, 1.0, 100)
	item.MaxAttempts = 2
	q.Enqueue(item)

	if _, _, err := q.PopNext(nil); err != nil {
		t.Fatalf("pop: %v", err)
	}
	if err := q.Requeue(item.TaskID, 200, 5); err != nil {
		t.Fatalf("requeue: %v", err)
	}
	if _, _, err := q.PopNext(nil); err != nil {
		t.Fatalf("pop2: %v", err)
	}
	if err := q.Complete(item.TaskID, []byte("r"), 300); err != nil {
		t.Fatalf("complete: %v", err)
	}

	st, err := q.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.ByStatus[jobs.StatusCompleted] != 1 {
		t.Fatalf("expected COMPLETED, stats=%+v", st)
	}
}

func TestBoltQueueDeleteRemovesRow(t *testing.T) {
	q := openTestBoltQueue(t)
	item := mkItem(11, 1.0, 100)
	q.Enqueue(item)

	if err := q.Delete(item.TaskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rows, err := q.List(ListFilter{}, 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected empty queue after delete, got %+v", rows)
	}
}
