// Package receipts builds and validates the versioned, digest-sealed
// JobReceiptV1 envelopes of spec.md §4.12. Grounded on
// consensus/tx_marshal.go's marshal-then-digest shape in the teacher
// (build the canonical field map, then seal it with a single
// domain-separated digest) — deleted from this tree (DESIGN.md) since
// its transaction-specific fields have no home here, but its shape
// survives in this file.
package receipts

import (
	"bytes"

	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/jobs"
)

// Build computes payload_hash, derives task_id, and seals the receipt
// with SHA3-512(DOMAIN_RECEIPT || canonical(receipt-without-digest)).
func Build(kind jobs.JobKind, chainID, height int64, txHash, caller []byte, payload map[string]any, createdAt int64) (jobs.JobReceiptV1, error) {
	payloadDigest, err := capdigest.PayloadDigest(payload)
	if err != nil {
		return jobs.JobReceiptV1{}, err
	}

	taskID, err := capdigest.DeriveTaskIDFromDigest(chainID, height, txHash, caller, payloadDigest)
	if err != nil {
		return jobs.JobReceiptV1{}, err
	}

	r := jobs.JobReceiptV1{
		Version:     1,
		TaskID:      taskID,
		Kind:        kind,
		ChainID:     chainID,
		Height:      height,
		TxHash:      txHash,
		Caller:      caller,
		PayloadHash: payloadDigest,
		CreatedAt:   createdAt,
	}

	digestInput, err := canonicalWithoutDigest(r)
	if err != nil {
		return jobs.JobReceiptV1{}, err
	}
	r.Digest = capdigest.SHA3_512(capdigest.DomainReceipt, digestInput)
	return r, nil
}

// canonicalWithoutDigest renders every receipt field except Digest as
// a canonical CBOR map, matching spec.md §4.12's
// "canonical(receipt-without-digest)".
func canonicalWithoutDigest(r jobs.JobReceiptV1) ([]byte, error) {
	m := map[string]any{
		"version":      int64(r.Version),
		"task_id":      r.TaskID[:],
		"kind":         string(r.Kind),
		"chain_id":     r.ChainID,
		"height":       r.Height,
		"tx_hash":      r.TxHash,
		"caller":       r.Caller,
		"payload_hash": r.PayloadHash[:],
		"created_at":   r.CreatedAt,
	}
	return capcbor.Encode(m)
}

// ValidationResult is Validate's (ok, reason) pair.
type ValidationResult struct {
	OK     bool
	Reason string
}

// Expectations lets a caller assert on specific fields; a nil field
// pointer means "don't check this field".
type Expectations struct {
	Kind        *jobs.JobKind
	ChainID     *int64
	Height      *int64
	Caller      []byte
	TxHash      []byte
	PayloadHash *[32]byte
}

// Validate recomputes the digest, checks any Expectations fields that
// were supplied, and (when PayloadHash is supplied) recomputes task_id
// to confirm it is bound to that payload. It returns (ok, reason) and
// never panics.
func Validate(r jobs.JobReceiptV1, exp Expectations) ValidationResult {
	digestInput, err := canonicalWithoutDigest(r)
	if err != nil {
		return ValidationResult{OK: false, Reason: "canonicalize_failed"}
	}
	want := capdigest.SHA3_512(capdigest.DomainReceipt, digestInput)
	if r.Digest != want {
		return ValidationResult{OK: false, Reason: "digest_mismatch"}
	}

	if exp.Kind != nil && *exp.Kind != r.Kind {
		return ValidationResult{OK: false, Reason: "kind_mismatch"}
	}
	if exp.ChainID != nil && *exp.ChainID != r.ChainID {
		return ValidationResult{OK: false, Reason: "chain_id_mismatch"}
	}
	if exp.Height != nil && *exp.Height != r.Height {
		return ValidationResult{OK: false, Reason: "height_mismatch"}
	}
	if exp.Caller != nil && !bytes.Equal(exp.Caller, r.Caller) {
		return ValidationResult{OK: false, Reason: "caller_mismatch"}
	}
	if exp.TxHash != nil && !bytes.Equal(exp.TxHash, r.TxHash) {
		return ValidationResult{OK: false, Reason: "tx_hash_mismatch"}
	}
	if exp.PayloadHash != nil {
		if *exp.PayloadHash != r.PayloadHash {
			return ValidationResult{OK: false, Reason: "payload_hash_mismatch"}
		}
		taskID, err := capdigest.DeriveTaskIDFromDigest(r.ChainID, r.Height, r.TxHash, r.Caller, *exp.PayloadHash)
		if err != nil {
			return ValidationResult{OK: false, Reason: "task_id_derive_failed"}
		}
		if taskID != r.TaskID {
			return ValidationResult{OK: false, Reason: "task_id_binding_mismatch"}
		}
	}

	return ValidationResult{OK: true, Reason: ""}
}
