package resultstore

import (
	"path/filepath"
	"testing"
)

func openTestBoltStore(t *testing.T) *BoltStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "results.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBoltStorePutGetDelete(t *testing.T) {
	s := openTestBoltStore(t)
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
	if err := s.Delete(rec.TaskID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.Get(rec.TaskID); ok {
		t.Fatalf("expected record gone after delete")
	}
}

func TestBoltStorePutReplacesExistingAndUpdatesIndexes(t *testing.T) {
	s := openTestBoltStore(t)
	rec := mkRecord(1, 10, 100)
	if err := s.Put([]byte("alice"), rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	rec.HeightAvailable = 20
	rec.Success = false
	if err := s.Put([]byte("alice"), rec); err != nil {
		t.Fatalf("replace put: %v", err)
	}

	got, ok, err := s.Get(rec.TaskID)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if got.HeightAvailable != 20 || got.Success {
		t.Fatalf("expected replaced record, got %+v", got)
	}

	rows, err := s.ListByCaller([]byte("alice"), 0, 0)
	if err != nil {
		t.Fatalf("list by caller: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly one row after replace, got %d", len(rows))
	}
}

func TestBoltStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.bolt")
	s, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := mkRecord(2, 30, 200)
	if err := s.Put([]byte("bob"), rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenBoltStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok, err := reopened.Get(rec.TaskID)
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if got.HeightAvailable != 30 {
		t.Fatalf("unexpected record after reopen: %+v", got)
	}
}

func TestBoltStoreListRecentOrdersByHeightThenCreatedAt(t *testing.T) {
	s := openTestBoltStore(t)
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
