package clock

import "errors"

var (
	// ErrCancelled is returned by Scope.Err when the scope (or an ancestor)
	// was explicitly cancelled.
	ErrCancelled = errors.New("clock: scope cancelled")
	// ErrDeadlineExceeded is returned by Scope.Err when the scope's deadline
	// elapsed before it completed its work.
	ErrDeadlineExceeded = errors.New("clock: deadline exceeded")
	// ErrGraceExceeded is returned by Scope.WaitGrace when tracked work did
	// not finish within the allotted grace period.
	ErrGraceExceeded = errors.New("clock: grace period exceeded")
)
