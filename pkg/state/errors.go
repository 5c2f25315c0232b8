package state

import "fmt"

// StateOverflowError is returned by Put on a ModeLatestWins collection
// whose validate hook rejects the incoming value (spec §4.3: "put may
// fail with StateOverflow only if ... a declared schema check" fails).
type StateOverflowError struct {
	Collection string
	Err        error
}

func (e *StateOverflowError) Error() string {
	return fmt.Sprintf("state: %s: overflow: %v", e.Collection, e.Err)
}

func (e *StateOverflowError) Unwrap() error { return e.Err }
