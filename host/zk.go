package host

import (
	"context"
	"time"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/capmetrics"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

// NewZKVerify builds zk.verify, spec.md §4.6. verifier may be nil, in
// which case it degrades to adapters.NoopZK's deterministic
// units-estimate fallback.
func NewZKVerify(cfg *capconfig.Config, verifier adapters.ZKVerifier, metrics *capmetrics.Recorder) Handler {
	if verifier == nil {
		verifier = adapters.NoopZK{}
	}
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		circuit, _ := kwargs["circuit"].([]byte)
		proof, _ := kwargs["proof"].([]byte)
		publicInput, _ := kwargs["public_input"].([]byte)

		if len(circuit) > cfg.Limits.MaxZKCircuitBytes {
			return nil, caperrors.Newf(caperrors.LimitExceeded, "zk.verify: circuit size %d exceeds cap %d", len(circuit), cfg.Limits.MaxZKCircuitBytes)
		}
		if len(proof) > cfg.Limits.MaxZKProofBytes {
			return nil, caperrors.Newf(caperrors.LimitExceeded, "zk.verify: proof size %d exceeds cap %d", len(proof), cfg.Limits.MaxZKProofBytes)
		}
		if len(publicInput) > cfg.Limits.MaxZKPublicInputBytes {
			return nil, caperrors.Newf(caperrors.LimitExceeded, "zk.verify: public_input size %d exceeds cap %d", len(publicInput), cfg.Limits.MaxZKPublicInputBytes)
		}
		total := len(circuit) + len(proof) + len(publicInput)
		if total > cfg.Limits.MaxZKTotalBytes {
			return nil, caperrors.Newf(caperrors.LimitExceeded, "zk.verify: combined input size %d exceeds cap %d", total, cfg.Limits.MaxZKTotalBytes)
		}

		digest := capdigest.SHA3_256(circuit, proof, publicInput)

		start := time.Now()
		ok, units, err := verifier.Verify(context.Background(), circuit, proof, publicInput)
		metrics.ZKVerify(verdictLabel(ok, err), time.Since(start))
		if err != nil {
			return nil, caperrors.Wrap(caperrors.CapError, "zk.verify: adapter failed", err)
		}

		result := map[string]any{
			"ok":     ok,
			"units":  int64(units),
			"digest": digest[:],
		}
		if _, isNoop := verifier.(adapters.NoopZK); isNoop {
			result["reason"] = "no_adapter"
		}
		return result, nil
	}
}

func verdictLabel(ok bool, err error) string {
	if err != nil {
		return "error"
	}
	if ok {
		return "accept"
	}
	return "reject"
}
