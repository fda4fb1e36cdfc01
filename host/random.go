package host

import (
	"context"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

// NewRandomBytes builds random.bytes, spec.md §4.6. beacon may be nil,
// in which case the seed omits beacon material (still deterministic
// per-node, but not cross-node-unpredictable — callers that need
// beacon-grade unpredictability must configure a Beacon adapter).
func NewRandomBytes(cfg *capconfig.Config, beacon adapters.Beacon) Handler {
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		length, _ := kwargs["length"].(uint)
		personalization, _ := kwargs["personalization"].(map[string]any)

		if int(length) > cfg.Limits.MaxRandomBytes {
			length = uint(cfg.Limits.MaxRandomBytes)
		}

		personalCanonical, err := capcbor.Encode(personalization)
		if err != nil {
			return nil, caperrors.Wrap(caperrors.CodecError, "random.bytes: canonical encode of personalization failed", err)
		}

		var beaconBytes []byte
		if beacon != nil {
			b, err := beacon.GetBeaconBytes(context.Background())
			if err != nil {
				return nil, caperrors.Wrap(caperrors.CapError, "random.bytes: beacon adapter failed", err)
			}
			beaconBytes = b
		}

		// Each variable-length component is length-prefixed so a byte
		// shifted across a field boundary (tx_hash/caller/
		// personalization/beacon) can never produce the same
		// concatenation, per spec.md §4.6.
		txHashLP, err := capdigest.LP16("tx_hash", ctx.TxHash)
		if err != nil {
			return nil, err
		}
		callerLP, err := capdigest.LP16("caller", ctx.Caller)
		if err != nil {
			return nil, err
		}
		personalLP, err := capdigest.LP32("personalization", personalCanonical)
		if err != nil {
			return nil, err
		}
		beaconLP, err := capdigest.LP32("beacon", beaconBytes)
		if err != nil {
			return nil, err
		}

		seed := capdigest.SHA3_256(
			capdigest.DomainRand,
			capdigest.U64BE(uint64(ctx.ChainID)),
			capdigest.U64BE(uint64(ctx.Height)),
			txHashLP,
			callerLP,
			personalLP,
			beaconLP,
		)

		out := make([]byte, 0, length)
		for i := uint64(0); uint(len(out)) < length; i++ {
			block := capdigest.SHA3_256(seed[:], capdigest.U64BE(i), []byte{0x01})
			out = append(out, block[:]...)
		}
		return out[:length], nil
	}
}
