package adapters

import (
	"context"

	"golang.org/x/crypto/sha3"
)

// NoopDA is the deterministic DA fallback used when no real adapter is
// configured: it never persists data, computing only the canonical
// commitment, and flags persistence as absent via Receipt == "".
// blob.pin (package host) reports this to the caller as
// persistence="none" per spec.md §4.6.
type NoopDA struct{}

func (NoopDA) PinBlob(_ context.Context, namespace uint32, data []byte) (BlobReceipt, error) {
	return BlobReceipt{
		Commitment: CommitBlob(namespace, data),
		Namespace:  namespace,
		Size:       len(data),
		Receipt:    "",
	}, nil
}

func (NoopDA) GetBlob(_ context.Context, _ []byte) ([]byte, error) {
	return nil, ErrNoAdapterData
}

// CommitBlob computes the deterministic local commitment used both by
// NoopDA and by any real DA adapter wanting a consistent, verifiable
// commitment scheme: SHA3-256(u32BE(namespace) || data).
func CommitBlob(namespace uint32, data []byte) []byte {
	h := sha3.New256()
	var nb [4]byte
	nb[0] = byte(namespace >> 24)
	nb[1] = byte(namespace >> 16)
	nb[2] = byte(namespace >> 8)
	nb[3] = byte(namespace)
	h.Write(nb[:])
	h.Write(data)
	return h.Sum(nil)
}

// ErrNoAdapterData is returned by NoopDA.GetBlob since no storage
// backs it.
var ErrNoAdapterData = errNoAdapterData{}

type errNoAdapterData struct{}

func (errNoAdapterData) Error() string { return "adapters: no DA adapter configured, blob not retrievable" }

// NoopZK is the deterministic ZK fallback: it never verifies anything
// (ok=false always) and reports a deterministic units estimate as a
// piecewise function of input sizes, per spec.md §4.6.
type NoopZK struct{}

func (NoopZK) Verify(_ context.Context, circuit, proof, publicInput []byte) (bool, int, error) {
	return false, EstimateZKUnits(len(circuit), len(proof), len(publicInput)), nil
}

// EstimateZKUnits is the deterministic units estimate spec.md §4.6
// requires when no ZK adapter is configured: a piecewise function of
// the three input sizes, chosen so units scale with work but never
// depend on content (same sizes always produce the same estimate).
func EstimateZKUnits(circuitLen, proofLen, publicInputLen int) int {
	base := 1_000
	units := base + circuitLen/64 + proofLen/32 + publicInputLen/16
	const maxUnits = 10_000_000
	if units > maxUnits {
		units = maxUnits
	}
	return units
}
