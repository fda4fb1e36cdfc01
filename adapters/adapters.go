// Package adapters defines the narrow, explicit interfaces the
// capabilities subsystem consumes from external collaborators (spec.md
// §6): data availability, the AI/compute queue fabric, the randomness
// beacon, ZK proof verification, and proof envelope decoding. Each
// family replaces what would be a duck-typed dependency in the
// original Python implementation (original_source/capabilities/adapters/*.py)
// with a single-method-family Go interface, grounded on the teacher's
// crypto.CryptoProvider shape (DESIGN.md): narrow, swappable, no
// hidden state.
//
// Every adapter is optional. When absent, the syscall providers in
// package host degrade to the deterministic fallbacks spec.md §4.6
// describes; see NoopDA and NoopZK in noop.go for the two fallbacks that
// have meaningful adapter-shaped implementations rather than being
// inlined directly in the provider.
package adapters

import "context"

// DA is the data-availability adapter: blob.pin delegates to it when
// present for persistence and canonical commitment computation.
type DA interface {
	PinBlob(ctx context.Context, namespace uint32, data []byte) (BlobReceipt, error)
	GetBlob(ctx context.Context, commitment []byte) ([]byte, error)
}

// BlobReceipt is what a DA adapter returns for a pinned blob.
type BlobReceipt struct {
	Commitment []byte
	Namespace  uint32
	Size       int
	Receipt    string // adapter-defined persistence receipt/handle, optional.
}

// AICF is the AI Compute Fabric queue adapter: compute.ai.enqueue and
// compute.quantum.enqueue delegate to it when present instead of using
// the local persistent queue.
type AICF interface {
	EnqueueAI(ctx context.Context, taskID [32]byte, model string, prompt []byte) error
	EnqueueQuantum(ctx context.Context, taskID [32]byte, circuit []byte, shots uint32, extras map[string]any) error
	GetJob(ctx context.Context, taskID [32]byte) (AICFJobStatus, error)
}

// AICFJobStatus mirrors the adapter contract in spec.md §6.
type AICFJobStatus struct {
	Status        string // provider-defined, e.g. "pending", "done", "failed".
	ResultDigest  []byte
	ProviderID    string
	TrapsRatio    float64
	QoS           float64
	LatencyMs     int64
}

// Beacon is the randomness beacon adapter: random.bytes mixes its
// output into the seed when present.
type Beacon interface {
	GetBeaconBytes(ctx context.Context) ([]byte, error)
}

// ZKVerifier is the pluggable ZK proof verifier: zk.verify delegates to
// it when present.
type ZKVerifier interface {
	Verify(ctx context.Context, circuit, proof, publicInput []byte) (ok bool, units int, err error)
}

// ProofDecoder decodes a sealed-block proof envelope for the resolver.
type ProofDecoder interface {
	DecodeEnvelope(raw []byte) (Envelope, error)
	// NameForTypeID is optional context for diagnostics; adapters that
	// don't maintain a type registry may return "".
	NameForTypeID(typeID uint64) string
}

// Envelope is the decoded shape of one proof: a type tag, an opaque
// body the resolver interprets per spec.md §4.10, and an optional
// nullifier used upstream to prevent proof replay.
type Envelope struct {
	TypeID    uint64
	Body      map[string]any
	Nullifier []byte
}
