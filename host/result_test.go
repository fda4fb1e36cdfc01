package host

import (
	"testing"

	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/resultstore"
)

type memConsume struct {
	seen map[[32]byte]int64
}

func newMemConsume() *memConsume { return &memConsume{seen: make(map[[32]byte]int64)} }

func (m *memConsume) MarkConsumed(taskID [32]byte, height int64) bool {
	_, already := m.seen[taskID]
	if !already {
		m.seen[taskID] = height
	}
	return already
}

func TestResultReadReturnsPendingWhenUnknown(t *testing.T) {
	store := resultstore.NewMemStore()
	h := NewResultRead(store, nil, nil)

	res, err := h(jobs.SyscallContext{Height: 10}, map[string]any{"task_id": make([]byte, 32)})
	if err != nil {
		t.Fatalf("result.read: %v", err)
	}
	if res.(map[string]any)["status"] != "PENDING" {
		t.Fatalf("expected PENDING, got %v", res)
	}
}

func TestResultReadReturnsNotYetBeforeNextBlock(t *testing.T) {
	store := resultstore.NewMemStore()
	var taskID [32]byte
	taskID[0] = 0x01
	if err := store.Put([]byte("caller"), jobs.ResultRecord{
		TaskID: taskID, Kind: jobs.KindAI, Success: true,
		HeightAvailable: 100, OutputDigest: []byte{0xaa},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	h := NewResultRead(store, nil, nil)

	res, err := h(jobs.SyscallContext{Height: 100}, map[string]any{"task_id": taskID[:]})
	if err != nil {
		t.Fatalf("result.read: %v", err)
	}
	m := res.(map[string]any)
	if m["status"] != "NOT_YET" {
		t.Fatalf("expected NOT_YET at height == available_height, got %v", m)
	}
	if m["ready_height"] != int64(101) {
		t.Fatalf("expected ready_height 101, got %v", m["ready_height"])
	}
}

func TestResultReadReturnsReadyAtNextBlock(t *testing.T) {
	store := resultstore.NewMemStore()
	var taskID [32]byte
	taskID[0] = 0x02
	if err := store.Put([]byte("caller"), jobs.ResultRecord{
		TaskID: taskID, Kind: jobs.KindAI, Success: true,
		HeightAvailable: 100, OutputDigest: []byte{0xaa},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	h := NewResultRead(store, nil, nil)

	res, err := h(jobs.SyscallContext{Height: 101}, map[string]any{"task_id": taskID[:]})
	if err != nil {
		t.Fatalf("result.read: %v", err)
	}
	m := res.(map[string]any)
	if m["status"] != "READY" {
		t.Fatalf("expected READY, got %v", m)
	}
}

func TestResultReadUsesPlaceholderDigestWhenMissing(t *testing.T) {
	store := resultstore.NewMemStore()
	var taskID [32]byte
	taskID[0] = 0x03
	if err := store.Put([]byte("caller"), jobs.ResultRecord{
		TaskID: taskID, Kind: jobs.KindAI, Success: false, HeightAvailable: 5,
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	h := NewResultRead(store, nil, nil)

	res, err := h(jobs.SyscallContext{Height: 6}, map[string]any{"task_id": taskID[:]})
	if err != nil {
		t.Fatalf("result.read: %v", err)
	}
	inner := res.(map[string]any)["result"].(map[string]any)
	digest, _ := inner["output_digest"].([]byte)
	if len(digest) != 32 {
		t.Fatalf("expected 32-byte placeholder digest, got %v", digest)
	}
}

func TestResultReadConsumeIsTrackedAndIdempotent(t *testing.T) {
	store := resultstore.NewMemStore()
	var taskID [32]byte
	taskID[0] = 0x04
	if err := store.Put([]byte("caller"), jobs.ResultRecord{
		TaskID: taskID, Kind: jobs.KindAI, Success: true, HeightAvailable: 1, OutputDigest: []byte{0x01},
	}); err != nil {
		t.Fatalf("put: %v", err)
	}
	tracker := newMemConsume()
	h := NewResultRead(store, tracker, nil)

	ctx := jobs.SyscallContext{Height: 2}
	if _, err := h(ctx, map[string]any{"task_id": taskID[:], "consume": true}); err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, ok := tracker.seen[taskID]; !ok {
		t.Fatalf("expected consume to be tracked")
	}
	if _, err := h(ctx, map[string]any{"task_id": taskID[:], "consume": true}); err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(tracker.seen) != 1 {
		t.Fatalf("expected a single tracked consumption, got %d", len(tracker.seen))
	}
}

func TestMemConsumeTrackerIsIdempotent(t *testing.T) {
	tr := NewMemConsumeTracker()
	var taskID [32]byte
	taskID[0] = 0x09

	if already := tr.MarkConsumed(taskID, 10); already {
		t.Fatalf("expected first MarkConsumed to report not-already-consumed")
	}
	if already := tr.MarkConsumed(taskID, 20); !already {
		t.Fatalf("expected second MarkConsumed to report already-consumed")
	}
}

func TestResultReadRejectsMalformedTaskID(t *testing.T) {
	store := resultstore.NewMemStore()
	h := NewResultRead(store, nil, nil)
	_, err := h(jobs.SyscallContext{}, map[string]any{"task_id": []byte{0x01, 0x02}})
	if err == nil {
		t.Fatalf("expected error for short task_id")
	}
}
