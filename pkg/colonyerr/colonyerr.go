// Package colonyerr implements the runtime's error taxonomy (spec §7): a
// small set of kinds, not type names, that every component translates its
// local failures into at its boundary.
package colonyerr

import (
	"errors"
	"fmt"

	"colony/pkg/clock"
	"colony/pkg/state"
)

// Kind classifies an error for propagation and logging purposes.
type Kind string

const (
	// KindUsage marks malformed input. Never retried.
	KindUsage Kind = "usage_error"
	// KindRateLimited marks a per-user or per-endpoint quota exhaustion.
	KindRateLimited Kind = "rate_limited"
	// KindCancelled marks cooperative cancellation. Not an error for logging.
	KindCancelled Kind = "cancelled"
	// KindTimeout marks a deadline overrun.
	KindTimeout Kind = "timeout"
	// KindTransient marks a retryable blip (network, 5xx, transient I/O).
	KindTransient Kind = "transient"
	// KindNotFound marks an unknown agent/tool/skill reference.
	KindNotFound Kind = "not_found"
	// KindStateOverflow marks a rejected latest-wins state write.
	KindStateOverflow Kind = "state_overflow"
	// KindFatal marks an invariant violation that should trigger shutdown.
	KindFatal Kind = "fatal"
	// KindUnknown is used when no taxonomy kind applies.
	KindUnknown Kind = "unknown"
)

// Error is a taxonomy-tagged error carrying the originating component name.
type Error struct {
	Kind      Kind
	Component string
	Err       error
}

func (e *Error) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("%s: %s: %v", e.Component, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a taxonomy Kind and the component that raised it.
func New(kind Kind, component string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Component: component, Err: err}
}

// Newf is a convenience that formats the message before wrapping.
func Newf(kind Kind, component, format string, args ...any) error {
	return New(kind, component, fmt.Errorf(format, args...))
}

// Classify returns the taxonomy Kind of err, unwrapping clock.Scope errors
// and falling back to KindUnknown for anything untagged.
func Classify(err error) Kind {
	if err == nil {
		return ""
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	var overflow *state.StateOverflowError
	switch {
	case errors.As(err, &overflow):
		return KindStateOverflow
	case errors.Is(err, clock.ErrCancelled):
		return KindCancelled
	case errors.Is(err, clock.ErrDeadlineExceeded), errors.Is(err, clock.ErrGraceExceeded):
		return KindTimeout
	default:
		return KindUnknown
	}
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return Classify(err) == kind
}
