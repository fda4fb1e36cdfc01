package host

import (
	"sync"

	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/capmetrics"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/resultstore"
)

// consumeTracker records, per task_id, the height at which a consuming
// read first happened, so repeated consume=true reads stay idempotent.
// A process-wide in-memory tracker is sufficient: consumption is a
// read-time bookkeeping concern, not part of the durable ResultRecord.
type ConsumeTracker interface {
	MarkConsumed(taskID [32]byte, height int64) (alreadyConsumed bool)
}

// MemConsumeTracker is the default ConsumeTracker: a mutex-guarded map
// from task_id to the height its first consuming read happened at.
// Per spec.md §9's open question, this does not claim cross-process
// atomicity — it assumes upstream transaction execution already
// serializes callers of the same task_id, and only guards against a
// single process reading the same result.read(consume=true) twice.
type MemConsumeTracker struct {
	mu   sync.Mutex
	seen map[[32]byte]int64
}

// NewMemConsumeTracker returns an empty tracker.
func NewMemConsumeTracker() *MemConsumeTracker {
	return &MemConsumeTracker{seen: make(map[[32]byte]int64)}
}

func (t *MemConsumeTracker) MarkConsumed(taskID [32]byte, height int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, already := t.seen[taskID]; already {
		return true
	}
	t.seen[taskID] = height
	return false
}

// NewResultRead builds result.read, spec.md §4.6. store is required;
// consume may be nil, in which case consume=true is accepted but not
// tracked (every read with consume=true reports consumed=true).
func NewResultRead(store resultstore.Store, consume ConsumeTracker, metrics *capmetrics.Recorder) Handler {
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		rawTaskID, _ := kwargs["task_id"].([]byte)
		consumeFlag, _ := kwargs["consume"].(bool)
		if len(rawTaskID) != 32 {
			return nil, caperrors.New(caperrors.InvalidInput, "result.read: task_id must be 32 bytes")
		}
		var taskID [32]byte
		copy(taskID[:], rawTaskID)

		rec, ok, err := store.Get(taskID)
		if err != nil {
			return nil, caperrors.Wrap(caperrors.CapError, "result.read: store failed", err)
		}
		if !ok {
			metrics.ResultRead("pending")
			return map[string]any{"status": "PENDING"}, nil
		}

		readyHeight := rec.HeightAvailable + 1
		if ctx.Height < readyHeight {
			metrics.ResultRead("not_yet")
			return map[string]any{
				"status":          "NOT_YET",
				"ready_height":    readyHeight,
				"min_read_height": readyHeight,
			}, nil
		}

		outputDigest := rec.OutputDigest
		if len(outputDigest) == 0 {
			// Never leak a missing digest: a deterministic placeholder
			// keeps result.read total and side-effect-free.
			placeholder := capdigest.SHA3_256([]byte("ANIMICA_CAP_RESULT_PLACEHOLDER_V1"), taskID[:])
			outputDigest = placeholder[:]
		}

		consumed := false
		if consumeFlag {
			consumed = true
			if consume != nil {
				consume.MarkConsumed(taskID, ctx.Height)
			}
		}

		metrics.ResultRead("ready")
		return map[string]any{
			"status":       "READY",
			"ready_height": readyHeight,
			"consumed":     consumed,
			"result": map[string]any{
				"success":       rec.Success,
				"output_digest": outputDigest,
				"metrics":       rec.Metrics,
				"error":         rec.Error,
				"provider_id":   rec.ProviderID,
			},
		}, nil
	}
}
