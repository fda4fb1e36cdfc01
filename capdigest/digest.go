// Package capdigest computes every domain-separated digest the
// capabilities subsystem relies on for determinism: task ids, payload
// digests, receipt digests, and random.bytes seed material. All
// hashing goes through golang.org/x/crypto/sha3, the same dependency
// the teacher repo declares (consensus/hash.go calls sha3.Sum256 for
// block/tx hashing; here the domain separation prefixes replace the
// teacher's block-hashing context with the capability contexts the
// spec defines).
package capdigest

import (
	"encoding/binary"

	"golang.org/x/crypto/sha3"

	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/caperrors"
)

// Domain separation prefixes. Each is a distinct ASCII tag so that no
// two digest computations in this subsystem can ever collide by
// accident, regardless of which fields happen to coincide.
var (
	DomainTask    = []byte("ANIMICA_CAP_TASK_V1")
	DomainAI      = []byte("ANIMICA_CAP_AI_V1")
	DomainQ       = []byte("ANIMICA_CAP_QUANTUM_V1")
	DomainRand    = []byte("ANIMICA_CAP_RANDOM_V1")
	DomainAssign  = []byte("ANIMICA_CAP_ASSIGN_V1")
	DomainReceipt = []byte("ANIMICA_CAP_RECEIPT_V1")
)

const maxLP16 = 0xFFFF

// SHA3_256 is the single entry point for 32-byte digests in this
// subsystem.
func SHA3_256(parts ...[]byte) [32]byte {
	h := sha3.New256()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SHA3_512 is the single entry point for 64-byte digests, used by
// receipts.
func SHA3_512(parts ...[]byte) [64]byte {
	h := sha3.New512()
	for _, p := range parts {
		h.Write(p)
	}
	var out [64]byte
	copy(out[:], h.Sum(nil))
	return out
}

func u64BE(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

func u32BE(v uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return b[:]
}

func u16BE(v uint16) []byte {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return b[:]
}

// lp16 length-prefixes b with a big-endian uint16 length. Fails if b is
// longer than 0xFFFF bytes.
func lp16(name string, b []byte) ([]byte, error) {
	if len(b) > maxLP16 {
		return nil, caperrors.Newf(caperrors.InvalidInput, "%s exceeds %d bytes", name, maxLP16)
	}
	out := make([]byte, 0, 2+len(b))
	out = append(out, u16BE(uint16(len(b)))...)
	out = append(out, b...)
	return out, nil
}

// PayloadDigest canonically encodes payload and returns its SHA3-256
// digest. payload must be encodable by capcbor (map[string]any,
// []any, or any capcbor-supported scalar).
func PayloadDigest(payload any) ([32]byte, error) {
	enc, err := capcbor.Encode(payload)
	if err != nil {
		return [32]byte{}, err
	}
	return SHA3_256(enc), nil
}

// DeriveTaskID implements SPEC_FULL.md §4.2 / spec.md §4.2:
//
//	task_id = SHA3-256(DOMAIN_TASK || u64BE(chain_id) || u64BE(height) ||
//	    lp16(tx_hash) || lp16(caller) || SHA3-256(canonical(payload)))
func DeriveTaskID(chainID int64, height int64, txHash []byte, caller []byte, payload any) ([32]byte, error) {
	if chainID <= 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "chain_id must be positive")
	}
	if height < 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "height must be non-negative")
	}
	if len(txHash) == 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "tx_hash must be non-empty")
	}
	if len(caller) == 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "caller must be non-empty")
	}

	txHashLP, err := lp16("tx_hash", txHash)
	if err != nil {
		return [32]byte{}, err
	}
	callerLP, err := lp16("caller", caller)
	if err != nil {
		return [32]byte{}, err
	}

	payloadDigest, err := PayloadDigest(payload)
	if err != nil {
		return [32]byte{}, err
	}

	return SHA3_256(DomainTask, u64BE(uint64(chainID)), u64BE(uint64(height)), txHashLP, callerLP, payloadDigest[:]), nil
}

// DeriveTaskIDFromDigest is DeriveTaskID's variant for callers that
// already computed payload_digest themselves (the AI/Quantum syscall
// providers derive their own domain-separated payload digest before
// calling this).
func DeriveTaskIDFromDigest(chainID int64, height int64, txHash []byte, caller []byte, payloadDigest [32]byte) ([32]byte, error) {
	if chainID <= 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "chain_id must be positive")
	}
	if height < 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "height must be non-negative")
	}
	if len(txHash) == 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "tx_hash must be non-empty")
	}
	if len(caller) == 0 {
		return [32]byte{}, caperrors.New(caperrors.InvalidInput, "caller must be non-empty")
	}
	txHashLP, err := lp16("tx_hash", txHash)
	if err != nil {
		return [32]byte{}, err
	}
	callerLP, err := lp16("caller", caller)
	if err != nil {
		return [32]byte{}, err
	}
	return SHA3_256(DomainTask, u64BE(uint64(chainID)), u64BE(uint64(height)), txHashLP, callerLP, payloadDigest[:]), nil
}

// U64BE, U32BE, U16BE, LP16, LP32 are exported so providers outside
// this package (host/compute.go, host/random.go) can build their own
// domain-separated digests using the same wire conventions.
func U64BE(v uint64) []byte { return u64BE(v) }
func U32BE(v uint32) []byte { return u32BE(v) }
func U16BE(v uint16) []byte { return u16BE(v) }

func LP16(name string, b []byte) ([]byte, error) { return lp16(name, b) }

// LP32 length-prefixes b with a big-endian uint32 length.
func LP32(name string, b []byte) ([]byte, error) {
	const maxLP32 = 0xFFFFFFFF
	if uint64(len(b)) > maxLP32 {
		return nil, caperrors.Newf(caperrors.InvalidInput, "%s exceeds uint32 length", name)
	}
	out := make([]byte, 0, 4+len(b))
	out = append(out, u32BE(uint32(len(b)))...)
	out = append(out, b...)
	return out, nil
}
