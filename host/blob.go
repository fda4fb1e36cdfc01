package host

import (
	"context"

	"animica.dev/capabilities/adapters"
	"animica.dev/capabilities/capconfig"
	"animica.dev/capabilities/capmetrics"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

// NewBlobPin builds the blob.pin provider of spec.md §4.6. da may be
// nil, in which case the handler degrades to adapters.NoopDA's local
// commitment computation and reports persistence="none".
func NewBlobPin(cfg *capconfig.Config, da adapters.DA, metrics *capmetrics.Recorder) Handler {
	if da == nil {
		da = adapters.NoopDA{}
	}
	return func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error) {
		namespace, _ := kwargs["namespace"].(uint32)
		data, _ := kwargs["data"].([]byte)

		if len(data) == 0 {
			metrics.BlobBytes("in", 0)
			return nil, caperrors.New(caperrors.InvalidInput, "blob.pin: data must be non-empty")
		}
		if len(data) > cfg.Limits.MaxBlobBytes {
			return nil, caperrors.Newf(caperrors.LimitExceeded, "blob.pin: data size %d exceeds MAX_BLOB_BYTES %d", len(data), cfg.Limits.MaxBlobBytes)
		}

		receipt, err := da.PinBlob(context.Background(), namespace, data)
		if err != nil {
			return nil, caperrors.Wrap(caperrors.CapError, "blob.pin: adapter failed", err)
		}

		persistence := "adapter"
		if receipt.Receipt == "" {
			persistence = "none"
		}
		metrics.BlobBytes("in", len(data))
		return map[string]any{
			"namespace":   receipt.Namespace,
			"size":        receipt.Size,
			"commitment":  receipt.Commitment,
			"persistence": persistence,
		}, nil
	}
}
