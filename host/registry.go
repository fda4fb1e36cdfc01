// Package host implements the provider registry and dispatch of
// spec.md §4.5: a process-wide map from canonical operation key to
// handler, plus the eight syscall providers of §4.6. Grounded on
// node/sync.go's SyncEngine.mu sync.RWMutex shape (deleted from this
// tree, DESIGN.md): readers (Call) dominate, writers (Register) are
// rare.
package host

import (
	"log/slog"
	"sync"

	"animica.dev/capabilities/capmetrics"
	"animica.dev/capabilities/caperrors"
	"animica.dev/capabilities/jobs"
)

// Handler is the shape every registered provider implements.
type Handler func(ctx jobs.SyscallContext, kwargs map[string]any) (any, error)

// Registry is the process-wide operation-key -> Handler map.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
	metrics  *capmetrics.Recorder
}

// NewRegistry returns an empty registry. logger may be nil, in which
// case slog.Default() is used. metrics may be nil: every Recorder
// method is nil-safe, so a nil Recorder just means dispatch counters
// are not bumped.
func NewRegistry(logger *slog.Logger, metrics *capmetrics.Recorder) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{handlers: make(map[string]Handler), logger: logger, metrics: metrics}
}

// Register installs handler under key, replacing any prior handler.
// nonDeterministic is a registration-time hint spec.md §5 calls for:
// when true, a warning is logged (determinism is never enforced here,
// only flagged — enforcement lives in the operators that write
// providers).
func (r *Registry) Register(key string, handler Handler, nonDeterministic bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if nonDeterministic {
		r.logger.Warn("capabilities: registering non-deterministic provider", "key", key)
	}
	r.handlers[key] = handler
}

// Call looks up key and invokes its handler. A missing handler fails
// CAP_ERROR("no provider"); a panic inside the handler is recovered and
// wrapped into CAP_ERROR("unexpected") so one bad provider can never
// take down its caller. Known *caperrors.CapabilityError values
// propagate unchanged; any other error is wrapped.
func (r *Registry) Call(key string, ctx jobs.SyscallContext, kwargs map[string]any) (result any, err error) {
	r.mu.RLock()
	h, ok := r.handlers[key]
	r.mu.RUnlock()

	if !ok {
		r.metrics.HostCall(key, capmetrics.CallFailed)
		return nil, caperrors.Newf(caperrors.CapError, "no provider registered for %q", key)
	}

	r.metrics.HostCall(key, capmetrics.CallStarted)

	defer func() {
		if rec := recover(); rec != nil {
			err = caperrors.Newf(caperrors.CapError, "unexpected: provider %q panicked: %v", key, rec)
			result = nil
			r.metrics.HostCall(key, capmetrics.CallFailed)
		}
	}()

	result, err = h(ctx, kwargs)
	if err != nil {
		if _, ok := caperrors.As(err); !ok {
			err = caperrors.Wrap(caperrors.CapError, "unexpected", err)
		}
		r.metrics.HostCall(key, capmetrics.CallFailed)
		return nil, err
	}
	r.metrics.HostCall(key, capmetrics.CallSucceeded)
	return result, nil
}

// typed return-shape validation helpers, used by the wrappers in
// wrappers.go.

func asMap(v any, op string) (map[string]any, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, caperrors.Newf(caperrors.CapError, "unexpected: %s returned %T, want map[string]any", op, v)
	}
	return m, nil
}

func asBool(v any, op string) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, caperrors.Newf(caperrors.CapError, "unexpected: %s returned %T, want bool", op, v)
	}
	return b, nil
}

func asBytes(v any, op string) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, caperrors.Newf(caperrors.CapError, "unexpected: %s returned %T, want []byte", op, v)
	}
	return b, nil
}
