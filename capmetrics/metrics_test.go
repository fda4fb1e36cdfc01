package capmetrics

import (
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
)

func TestRecorderIncrementsCounters(t *testing.T) {
	r := NewRecorder(nil)
	r.EnqueueStarted("AI")
	r.EnqueueStarted("AI")
	r.EnqueueRejected("QUANTUM", "over_cap")
	r.ResultRead(OutcomeReady)
	r.ZKVerify("ok", 10*time.Millisecond)
	r.BlobBytes("in", 128)
	r.SetQueueDepth("QUEUED", 3)
	r.SetJobsInflight(1)

	mfs, err := r.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	got := map[string]*dto.MetricFamily{}
	for _, mf := range mfs {
		got[mf.GetName()] = mf
	}

	if mf, ok := got[MetricEnqueueTotal]; !ok || sumCounter(mf) != 2 {
		t.Fatalf("expected %s total=2, got %v", MetricEnqueueTotal, mf)
	}
	if _, ok := got[MetricQueueDepth]; !ok {
		t.Fatalf("expected %s present", MetricQueueDepth)
	}
}

func TestRecorderNilReceiverIsSafe(t *testing.T) {
	var r *Recorder
	r.EnqueueStarted("AI")
	r.EnqueueRejected("AI", "x")
	r.ResultRead(OutcomeReady)
	r.ZKVerify("ok", time.Millisecond)
	r.BlobBytes("in", 1)
	r.SetQueueDepth("QUEUED", 1)
	r.SetJobsInflight(1)
	r.HostCall("random.bytes", CallStarted)
}

func TestRecorderHostCallCountsByKeyAndOutcome(t *testing.T) {
	r := NewRecorder(nil)
	r.HostCall("blob.pin", CallStarted)
	r.HostCall("blob.pin", CallStarted)
	r.HostCall("blob.pin", CallSucceeded)
	r.HostCall("zk.verify", CallFailed)

	snap := r.Snapshot()
	if snap.HostCallTotal["blob.pin/"+CallStarted] != 2 {
		t.Fatalf("expected blob.pin/started=2, got %+v", snap.HostCallTotal)
	}
	if snap.HostCallTotal["blob.pin/"+CallSucceeded] != 1 {
		t.Fatalf("expected blob.pin/succeeded=1, got %+v", snap.HostCallTotal)
	}
	if snap.HostCallTotal["zk.verify/"+CallFailed] != 1 {
		t.Fatalf("expected zk.verify/failed=1, got %+v", snap.HostCallTotal)
	}
}

func TestRecorderSnapshot(t *testing.T) {
	r := NewRecorder(nil)
	r.EnqueueStarted("AI")
	r.EnqueueStarted("AI")
	r.EnqueueStarted("QUANTUM")
	r.SetJobsInflight(4)

	snap := r.Snapshot()
	if snap.EnqueueTotal["AI"] != 2 {
		t.Fatalf("expected AI=2, got %v", snap.EnqueueTotal)
	}
	if snap.EnqueueTotal["QUANTUM"] != 1 {
		t.Fatalf("expected QUANTUM=1, got %v", snap.EnqueueTotal)
	}
	if snap.JobsInflight != 4 {
		t.Fatalf("expected JobsInflight=4, got %v", snap.JobsInflight)
	}
}

func TestRecorderSnapshotNilReceiverIsSafe(t *testing.T) {
	var r *Recorder
	snap := r.Snapshot()
	if snap.JobsInflight != 0 {
		t.Fatalf("expected zero-value snapshot, got %+v", snap)
	}
}

func sumCounter(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	return total
}
