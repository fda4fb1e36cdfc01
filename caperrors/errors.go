// Package caperrors is the stable error taxonomy shared by every
// syscall provider and store in the capabilities subsystem. It mirrors
// the ErrorCode/struct-error shape used by the teacher's consensus
// package (see DESIGN.md), generalized from transaction-validation
// codes to the seven capability-level codes the spec requires.
package caperrors

import (
	"errors"
	"fmt"
)

// Code is a stable, ASCII error code surfaced to the VM boundary.
type Code string

const (
	CapError         Code = "CAP_ERROR"
	NotDeterministic Code = "NOT_DETERMINISTIC"
	LimitExceeded    Code = "LIMIT_EXCEEDED"
	NoResultYet      Code = "NO_RESULT_YET"
	AttestationError Code = "ATTESTATION_ERROR"
	CodecError       Code = "CODEC_ERROR"
	InvalidInput     Code = "INVALID_INPUT"
)

// CapabilityError is the concrete error type every provider and store
// returns. Details is sanitized (see Diagnostic) and must never carry
// wall-clock timestamps, PIDs, or other process-local nondeterminism.
type CapabilityError struct {
	Code             Code
	Message          string
	Details          map[string]any
	Retryable        bool
	RetryAfterBlocks uint64
	cause            error
}

func (e *CapabilityError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *CapabilityError) Unwrap() error { return e.cause }

// New builds a non-retryable CapabilityError with the given code and
// message.
func New(code Code, message string) *CapabilityError {
	return &CapabilityError{Code: code, Message: message}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(code Code, format string, args ...any) *CapabilityError {
	return &CapabilityError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds a CapabilityError carrying cause as its unwrap target,
// used at the registry boundary to fold an arbitrary handler panic or
// error into CAP_ERROR without losing the original cause for logs.
func Wrap(code Code, message string, cause error) *CapabilityError {
	return &CapabilityError{Code: code, Message: message, cause: cause}
}

// WithDetails attaches a sanitized details map and returns the receiver
// for chaining.
func (e *CapabilityError) WithDetails(details map[string]any) *CapabilityError {
	e.Details = details
	return e
}

// WithRetry marks the error retryable, optionally carrying a
// retry-after-blocks hint (meaningful only for NO_RESULT_YET).
func (e *CapabilityError) WithRetry(retryAfterBlocks uint64) *CapabilityError {
	e.Retryable = true
	e.RetryAfterBlocks = retryAfterBlocks
	return e
}

// NewNoResultYet builds the one taxonomy member that always carries a
// retry hint.
func NewNoResultYet(retryAfterBlocks uint64) *CapabilityError {
	return New(NoResultYet, "result not available yet").WithRetry(retryAfterBlocks)
}

// As reports whether err is (or wraps) a *CapabilityError, mirroring
// errors.As for convenience at call sites that only need the pointer.
func As(err error) (*CapabilityError, bool) {
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsCode reports whether err is a CapabilityError with the given code.
func IsCode(err error, code Code) bool {
	ce, ok := As(err)
	return ok && ce.Code == code
}
