package adapters

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultAdapterTimeout is the 30s default spec.md §5 requires for
// every adapter call.
const DefaultAdapterTimeout = 30 * time.Second

// WithTimeout runs fn with a bounded deadline, optionally retrying
// with exponential backoff while the deadline allows. maxElapsed <= 0
// means "single attempt, no retry" — the common case, since most
// adapter calls (PinBlob, EnqueueAI) are not idempotent-safe to retry
// blindly; callers that do want bounded retry (e.g. AICF.GetJob
// polling) pass a positive maxElapsed.
func WithTimeout(ctx context.Context, timeout time.Duration, maxElapsed time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		timeout = DefaultAdapterTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if maxElapsed <= 0 {
		return fn(cctx)
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = maxElapsed
	return backoff.Retry(func() error {
		return fn(cctx)
	}, backoff.WithContext(bo, cctx))
}
