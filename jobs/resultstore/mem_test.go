package resultstore

import (
	"testing"

	"animica.dev/capabilities/jobs"
)

func mkRecord(taskID byte, height, completedAt int64) jobs.ResultRecord {
	var id [32]byte
	id[0] = taskID
	return jobs.ResultRecord{
		TaskID:          id,
		Kind:            jobs.KindAI,
		Success:         true,
		HeightAvailable: height,
		OutputDigest:    []byte{0x01, 0x02},
		CompletedAt:     completedAt,
	}
}

func TestMemStorePutGetHasDelete(t *testing.T) {
	s := NewMemStore()
	rec := mkRecord(1, 10, 100)

	if err := s.Put([]byte("caller-a"), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok, err := s.Get(rec.TaskID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.HeightAvailable != 10 {
		t.Fatalf("unexpected record: %+v", got)
	}
	has, err := s.Has(rec.TaskID)
	if err != nil || !has {
		t.Fatalf("has: %v %v", has, err)
	}
	if err := s.Delete(rec.TaskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(rec.TaskID); ok {
		t.Fatalf("expected record gone after delete")
	}
}

func TestMemStoreListRecentOrdersByHeightThenCreatedAt(t *testing.T) {
	s := NewMemStore()
	s.Put([]byte("c"), mkRecord(1, 5, 100))
	s.Put([]byte("c"), mkRecord(2, 10, 50))
	s.Put([]byte("c"), mkRecord(3, 10, 99))

	rows, err := s.ListRecent(0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].TaskID[0] != 3 || rows[1].TaskID[0] != 2 || rows[2].TaskID[0] != 1 {
		t.Fatalf("unexpected order: %v %v %v", rows[0].TaskID[0], rows[1].TaskID[0], rows[2].TaskID[0])
	}
}

func TestMemStoreListByCallerFiltersCorrectly(t *testing.T) {
	s := NewMemStore()
	s.Put([]byte("alice"), mkRecord(1, 5, 100))
	s.Put([]byte("bob"), mkRecord(2, 6, 100))

	rows, err := s.ListByCaller([]byte("alice"), 0, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].TaskID[0] != 1 {
		t.Fatalf("expected only alice's record, got %+v", rows)
	}
}

func TestMemStoreDeleteMissingReturnsNotFound(t *testing.T) {
	s := NewMemStore()
	var missing [32]byte
	missing[0] = 0xFF
	if err := s.Delete(missing); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
