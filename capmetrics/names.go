package capmetrics

// Stable metric names, exported so adapters and tests can assert
// against them without reaching into the prometheus registry directly.
// Grounded on original_source/capabilities/metrics.py, which the
// distilled spec dropped the metric-name supplement of (spec.md only
// describes categories; the original lists exact names).
const (
	MetricEnqueueTotal    = "cap_enqueue_total"
	MetricEnqueueRejected = "cap_enqueue_rejected_total"
	MetricResultReadTotal = "cap_result_read_total"
	MetricZKVerifyTotal   = "cap_zk_verify_total"
	MetricZKVerifyLatency = "cap_zk_verify_latency_seconds"
	MetricBlobBytesTotal  = "cap_blob_bytes_total"
	MetricQueueDepth      = "cap_queue_depth"
	MetricJobsInflight    = "cap_jobs_inflight"
	MetricHostCallTotal   = "cap_host_call_total"
)

// Outcome labels for cap_result_read_total.
const (
	OutcomePending = "pending"
	OutcomeNotYet  = "not_yet"
	OutcomeReady   = "ready"
)

// Outcome labels for cap_host_call_total, spec.md §4.5's
// "Metrics counters (started/succeeded/failed) are bumped best-effort"
// call() contract.
const (
	CallStarted   = "started"
	CallSucceeded = "succeeded"
	CallFailed    = "failed"
)
