package host

import (
	"context"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capcbor"
	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/capdigest"
	"animica.dev/capabilities/capmetrics"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
	"animica.dev/capabilities/jobs/queuestore"
)

// NewComputeAIEnqueue builds compute.ai.enqueue, spec.md §4.6. aicf and
// queue may both be nil; when aicf is absent, the local queue is used;
// when both are absent, a deterministic receipt is returned without
// persistence.
func NewComputeAIEnqueue(cfg *capconfig.Config, aicf adapters.AICF, queue queuestore.Queue, metrics *capmetrics.Recorder) Handler {
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		model, _ := kwargs["model"].(string)
		prompt, _ := kwargs["prompt"].([]byte)

		if len(model) == 0 || len(model) > cfg.Limits.MaxModelNameBytes {
			metrics.EnqueueRejected("AI", "invalid_model")
			return nil, caperrors.New(caperrors.InvalidInput, "compute.ai.enqueue: model length out of range")
		}
		if len(prompt) == 0 || len(prompt) > cfg.Limits.MaxPromptBytes {
			metrics.EnqueueRejected("AI", "invalid_prompt")
			return nil, caperrors.New(caperrors.InvalidInput, "compute.ai.enqueue: prompt must be non-empty and within cap")
		}

		modelLP, err := capdigest.LP16("model", []byte(model))
		if err != nil {
			return nil, err
		}
		payloadDigest := capdigest.SHA3_256(capdigest.DomainAI, modelLP, capdigest.U32BE(uint32(len(prompt))), prompt)

		taskID, err := capdigest.DeriveTaskIDFromDigest(ctx.ChainID, ctx.Height, ctx.TxHash, ctx.Caller, payloadDigest)
		if err != nil {
			return nil, err
		}

		metrics.EnqueueStarted("AI")
		provider := "none"
		switch {
		case aicf != nil:
			if err := aicf.EnqueueAI(context.Background(), taskID, model, prompt); err != nil {
				return nil, caperrors.Wrap(caperrors.CapError, "compute.ai.enqueue: AICF adapter failed", err)
			}
			provider = "aicf"
		case queue != nil:
			item := jobs.QueueItem{
				TaskID:      taskID,
				Kind:        jobs.KindAI,
				ChainID:     ctx.ChainID,
				Height:      ctx.Height,
				TxHash:      ctx.TxHash,
				Caller:      ctx.Caller,
				Payload:     map[string]any{"model": model, "prompt": prompt},
				Priority:    1.0,
				MaxAttempts: cfg.Queue.MaxAttempts,
				EnqueuedAt:  ctx.Height,
				UpdatedAt:   ctx.Height,
			}
			if _, _, err := queue.Enqueue(item); err != nil {
				return nil, caperrors.Wrap(caperrors.CapError, "compute.ai.enqueue: local queue failed", err)
			}
			provider = "local_queue"
		}

		return map[string]any{
			"task_id":  taskID[:],
			"kind":     string(jobs.KindAI),
			"height":   ctx.Height,
			"provider": provider,
		}, nil
	}
}

// NewComputeQuantumEnqueue builds compute.quantum.enqueue, spec.md
// §4.6. circuit may be []byte or a map[string]any, serialized
// canonically when it is a mapping.
func NewComputeQuantumEnqueue(cfg *capconfig.Config, aicf adapters.AICF, queue queuestore.Queue, metrics *capmetrics.Recorder) Handler {
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		circuitArg := kwargs["circuit"]
		shots, _ := kwargs["shots"].(uint32)
		extras, _ := kwargs["extras"].(map[string]any)

		circuitBytes, err := canonicalCircuitBytes(circuitArg)
		if err != nil {
			metrics.EnqueueRejected("QUANTUM", "invalid_circuit")
			return nil, err
		}
		if len(circuitBytes) == 0 || len(circuitBytes) > cfg.Limits.MaxCircuitBytes {
			metrics.EnqueueRejected("QUANTUM", "invalid_circuit")
			return nil, caperrors.New(caperrors.InvalidInput, "compute.quantum.enqueue: circuit must be non-empty and within cap")
		}
		if shots == 0 {
			metrics.EnqueueRejected("QUANTUM", "invalid_shots")
			return nil, caperrors.New(caperrors.InvalidInput, "compute.quantum.enqueue: shots must be > 0")
		}

		extrasCanonical, err := canonicalExtrasBytes(extras)
		if err != nil {
			return nil, err
		}
		extrasLP, err := capdigest.LP32("extras", extrasCanonical)
		if err != nil {
			return nil, err
		}
		payloadDigest := capdigest.SHA3_256(capdigest.DomainQ, capdigest.U32BE(uint32(len(circuitBytes))), circuitBytes, capdigest.U32BE(shots), extrasLP)

		taskID, err := capdigest.DeriveTaskIDFromDigest(ctx.ChainID, ctx.Height, ctx.TxHash, ctx.Caller, payloadDigest)
		if err != nil {
			return nil, err
		}

		metrics.EnqueueStarted("QUANTUM")
		provider := "none"
		switch {
		case aicf != nil:
			if err := aicf.EnqueueQuantum(context.Background(), taskID, circuitBytes, shots, extras); err != nil {
				return nil, caperrors.Wrap(caperrors.CapError, "compute.quantum.enqueue: AICF adapter failed", err)
			}
			provider = "aicf"
		case queue != nil:
			item := jobs.QueueItem{
				TaskID:      taskID,
				Kind:        jobs.KindQuantum,
				ChainID:     ctx.ChainID,
				Height:      ctx.Height,
				TxHash:      ctx.TxHash,
				Caller:      ctx.Caller,
				Payload:     map[string]any{"circuit": circuitBytes, "shots": int64(shots), "extras": extras},
				Priority:    1.0,
				MaxAttempts: cfg.Queue.MaxAttempts,
				EnqueuedAt:  ctx.Height,
				UpdatedAt:   ctx.Height,
			}
			if _, _, err := queue.Enqueue(item); err != nil {
				return nil, caperrors.Wrap(caperrors.CapError, "compute.quantum.enqueue: local queue failed", err)
			}
			provider = "local_queue"
		}

		return map[string]any{
			"task_id":  taskID[:],
			"kind":     string(jobs.KindQuantum),
			"height":   ctx.Height,
			"provider": provider,
		}, nil
	}
}

func canonicalCircuitBytes(circuit any) ([]byte, error) {
	switch c := circuit.(type) {
	case []byte:
		return c, nil
	case map[string]any:
		return capcborEncodeOrWrap(c)
	default:
		return nil, caperrors.Newf(caperrors.InvalidInput, "compute.quantum.enqueue: circuit must be bytes or a mapping, got %T", circuit)
	}
}

func canonicalExtrasBytes(extras map[string]any) ([]byte, error) {
	if extras == nil {
		return []byte{}, nil
	}
	return capcborEncodeOrWrap(extras)
}

func capcborEncodeOrWrap(v map[string]any) ([]byte, error) {
	enc, err := capcbor.Encode(v)
	if err != nil {
		return nil, caperrors.Wrap(caperrors.CodecError, "canonical encode failed", err)
	}
	return enc, nil
}
