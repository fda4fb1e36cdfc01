// Package jobs defines the data model shared by the queue, result
// store, resolver, and receipts: JobKind, JobRequest, JobReceipt,
// ResultRecord, and QueueItem, exactly as spec.md §3 specifies, plus
// the MaxAttempts/EXPIRED supplement SPEC_FULL.md §4 adds from
// original_source/capabilities/jobs/types.py and queue.py.
package jobs

// JobKind distinguishes AI from Quantum jobs.
type JobKind string

const (
	KindAI      JobKind = "AI"
	KindQuantum JobKind = "QUANTUM"
)

// JobRequest is the provider-facing input to an enqueue operation.
type JobRequest struct {
	Kind       JobKind
	Caller     []byte
	ChainID    int64
	Payload    map[string]any
	HeightHint *int64
	CreatedAt  int64
}

// JobReceipt is returned at enqueue time.
type JobReceipt struct {
	TaskID     [32]byte
	Kind       JobKind
	Caller     []byte
	ChainID    int64
	HeightHint *int64
	CreatedAt  int64
	Note       string
}

// ResultRecord is the durable, immutable-after-write result of a job.
type ResultRecord struct {
	TaskID          [32]byte
	Kind            JobKind
	Success         bool
	HeightAvailable int64
	OutputDigest    []byte
	OutputPointer   string
	Metrics         map[string]any
	Error           string
	CompletedAt     int64
	// ProviderID is the SPEC_FULL.md §4 supplement: which off-chain
	// provider produced this result, recovered from
	// original_source/capabilities/jobs/types.py (dropped by the
	// distillation). Empty when the resolver could not attribute one.
	ProviderID string
}

// QueueStatus is the QueueItem lifecycle state.
type QueueStatus string

const (
	StatusQueued     QueueStatus = "QUEUED"
	StatusInProgress QueueStatus = "IN_PROGRESS"
	StatusCompleted  QueueStatus = "COMPLETED"
	StatusFailed     QueueStatus = "FAILED"
	// StatusExpired is the SPEC_FULL.md §4 supplement: a job that
	// exhausted MaxAttempts on requeue, recovered from
	// original_source/capabilities/jobs/queue.py.
	StatusExpired QueueStatus = "EXPIRED"
)

// QueueItem is the persistent row backing one enqueued job.
type QueueItem struct {
	TaskID      [32]byte
	Kind        JobKind
	ChainID     int64
	Height      int64
	TxHash      []byte
	Caller      []byte
	Payload     map[string]any
	Priority    float64
	Status      QueueStatus
	Attempts    int
	MaxAttempts int
	Error       string
	Result      []byte // canonical-CBOR-encoded ResultRecord, present once COMPLETED.
	EnqueuedAt  int64
	UpdatedAt   int64
}

// JobReceiptV1 is the versioned, digest-sealed wire receipt of
// spec.md §3 / §4.12.
type JobReceiptV1 struct {
	Version     int
	TaskID      [32]byte
	Kind        JobKind
	ChainID     int64
	Height      int64
	TxHash      []byte
	Caller      []byte
	PayloadHash [32]byte
	CreatedAt   int64
	Digest      [64]byte
}

// SyscallContext is the immutable per-call context threaded through
// every host call.
type SyscallContext struct {
	ChainID int64
	Height  int64
	TxHash  []byte
	Caller  []byte
	GasLeft *int64
}

// TreasuryOp distinguishes debit from credit notes.
type TreasuryOp string

const (
	OpDebit  TreasuryOp = "debit"
	OpCredit TreasuryOp = "credit"
)

// TreasuryNote is one debit/credit intent recorded against a
// (chain_id, height, tx_hash) bucket.
type TreasuryNote struct {
	Op     TreasuryOp
	Amount uint64
	Reason string
	Index  int
}
