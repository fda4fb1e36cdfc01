// Package capmetrics exposes the stable-named counters and histograms
// spec.md §6 lists. They are deliberately not consensus-critical:
// every Recorder method swallows its own errors and never affects the
// semantics of the call it is instrumenting, mirroring the registry's
// "metrics counters are bumped best-effort" contract in host.Registry.
package capmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Recorder wraps a dedicated prometheus.Registry (never the global
// DefaultRegisterer, so tests and multiple node instances in one
// process never collide on metric names).
type Recorder struct {
	reg *prometheus.Registry

	enqueueTotal      *prometheus.CounterVec
	enqueueRejected   *prometheus.CounterVec
	resultReadTotal   *prometheus.CounterVec
	zkVerifyTotal     *prometheus.CounterVec
	zkVerifyLatency   prometheus.Histogram
	blobBytesTotal    *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	jobsInflight      prometheus.Gauge
	hostCallTotal     *prometheus.CounterVec
}

// NewRecorder builds a Recorder registered against reg. If reg is nil,
// a fresh private registry is created.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	r := &Recorder{
		reg: reg,
		enqueueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_enqueue_total",
			Help: "Total jobs enqueued, by kind.",
		}, []string{"kind"}),
		enqueueRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_enqueue_rejected_total",
			Help: "Total enqueue attempts rejected, by kind and reason.",
		}, []string{"kind", "reason"}),
		resultReadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_result_read_total",
			Help: "Total result.read calls, by outcome (pending/not_yet/ready).",
		}, []string{"outcome"}),
		zkVerifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_zk_verify_total",
			Help: "Total zk.verify calls, by verdict.",
		}, []string{"verdict"}),
		zkVerifyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cap_zk_verify_latency_seconds",
			Help:    "zk.verify call latency.",
			Buckets: prometheus.DefBuckets,
		}),
		blobBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_blob_bytes_total",
			Help: "Total blob bytes moved, by direction (in/out).",
		}, []string{"direction"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cap_queue_depth",
			Help: "Current job queue depth, by status.",
		}, []string{"status"}),
		jobsInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cap_jobs_inflight",
			Help: "Current number of in-progress jobs.",
		}),
		hostCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cap_host_call_total",
			Help: "Total host.Registry dispatches, by operation key and outcome (started/succeeded/failed).",
		}, []string{"key", "outcome"}),
	}
	for _, c := range []prometheus.Collector{
		r.enqueueTotal, r.enqueueRejected, r.resultReadTotal,
		r.zkVerifyTotal, r.zkVerifyLatency, r.blobBytesTotal,
		r.queueDepth, r.jobsInflight, r.hostCallTotal,
	} {
		_ = reg.Register(c) // best-effort: a re-register on an existing collector is a no-op for our purposes.
	}
	return r
}

// Registry returns the underlying prometheus.Registry for wiring an
// HTTP /metrics handler (left to the out-of-scope RPC layer).
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// MetricsSnapshot is the SPEC_FULL.md §4 supplement (grounded on
// original_source/capabilities/metrics.py, which exposes a plain
// dict snapshot of counters rather than requiring callers to scrape
// Prometheus): a point-in-time read of the stable counters so tests
// and adapters can assert on them without depending on the
// prometheus.Registry wire format.
type MetricsSnapshot struct {
	EnqueueTotal    map[string]float64
	EnqueueRejected map[string]float64
	ResultReadTotal map[string]float64
	ZKVerifyTotal   map[string]float64
	BlobBytesTotal  map[string]float64
	QueueDepth      map[string]float64
	JobsInflight    float64
	// HostCallTotal is keyed by "key/outcome" (operation key and
	// started/succeeded/failed), since cap_host_call_total carries two
	// label dimensions.
	HostCallTotal map[string]float64
}

// Snapshot gathers the current values of every counter/gauge this
// Recorder owns. Best-effort: a collection failure on any single
// family is skipped rather than failing the whole snapshot, matching
// this package's "never affects semantics" contract.
func (r *Recorder) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		EnqueueTotal:    map[string]float64{},
		EnqueueRejected: map[string]float64{},
		ResultReadTotal: map[string]float64{},
		ZKVerifyTotal:   map[string]float64{},
		BlobBytesTotal:  map[string]float64{},
		QueueDepth:      map[string]float64{},
		HostCallTotal:   map[string]float64{},
	}
	if r == nil {
		return snap
	}
	collectCounterVec(r.enqueueTotal, "kind", snap.EnqueueTotal)
	collectCounterVec(r.enqueueRejected, "reason", snap.EnqueueRejected)
	collectCounterVec(r.resultReadTotal, "outcome", snap.ResultReadTotal)
	collectCounterVec(r.zkVerifyTotal, "verdict", snap.ZKVerifyTotal)
	collectCounterVec(r.blobBytesTotal, "direction", snap.BlobBytesTotal)
	collectGaugeVec(r.queueDepth, "status", snap.QueueDepth)
	collectCounterVec2(r.hostCallTotal, "key", "outcome", snap.HostCallTotal)

	g := &dto.Metric{}
	if m, err := collectSingle(r.jobsInflight); err == nil {
		g = m
	}
	if g.Gauge != nil {
		snap.JobsInflight = g.Gauge.GetValue()
	}
	return snap
}

// collectCounterVec and collectGaugeVec walk a CounterVec/GaugeVec's
// child metrics, keying the output map by the given label name's
// value on each child. Errors from an individual child's Write are
// skipped (best-effort, never surfaces to the caller).
func collectCounterVec(vec *prometheus.CounterVec, label string, out map[string]float64) {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()
	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		out[labelValue(d, label)] = d.GetCounter().GetValue()
	}
}

// collectCounterVec2 is collectCounterVec's two-label variant, keying
// the output map by "<label1 value>/<label2 value>".
func collectCounterVec2(vec *prometheus.CounterVec, label1, label2 string, out map[string]float64) {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()
	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		out[labelValue(d, label1)+"/"+labelValue(d, label2)] = d.GetCounter().GetValue()
	}
}

func collectGaugeVec(vec *prometheus.GaugeVec, label string, out map[string]float64) {
	ch := make(chan prometheus.Metric, 64)
	go func() {
		vec.Collect(ch)
		close(ch)
	}()
	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		out[labelValue(d, label)] = d.GetGauge().GetValue()
	}
}

func collectSingle(m prometheus.Metric) (*dto.Metric, error) {
	d := &dto.Metric{}
	err := m.Write(d)
	return d, err
}

func labelValue(d *dto.Metric, name string) string {
	for _, lp := range d.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

func (r *Recorder) EnqueueStarted(kind string) {
	if r == nil {
		return
	}
	r.enqueueTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) EnqueueRejected(kind, reason string) {
	if r == nil {
		return
	}
	r.enqueueRejected.WithLabelValues(kind, reason).Inc()
}

func (r *Recorder) ResultRead(outcome string) {
	if r == nil {
		return
	}
	r.resultReadTotal.WithLabelValues(outcome).Inc()
}

func (r *Recorder) ZKVerify(verdict string, d time.Duration) {
	if r == nil {
		return
	}
	r.zkVerifyTotal.WithLabelValues(verdict).Inc()
	r.zkVerifyLatency.Observe(d.Seconds())
}

func (r *Recorder) BlobBytes(direction string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.blobBytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (r *Recorder) SetQueueDepth(status string, n int) {
	if r == nil {
		return
	}
	r.queueDepth.WithLabelValues(status).Set(float64(n))
}

func (r *Recorder) SetJobsInflight(n int) {
	if r == nil {
		return
	}
	r.jobsInflight.Set(float64(n))
}

// HostCall bumps cap_host_call_total for one dispatch through
// host.Registry.Call, per spec.md §4.5's "started/succeeded/failed"
// call() contract. outcome is one of CallStarted, CallSucceeded,
// CallFailed.
func (r *Recorder) HostCall(key, outcome string) {
	if r == nil {
		return
	}
	r.hostCallTotal.WithLabelValues(key, outcome).Inc()
}
