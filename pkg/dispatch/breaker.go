package dispatch

import (
	"github.com/sony/gobreaker"
)

// endpointBreaker wraps a per-endpoint gobreaker.CircuitBreaker. It trips
// open after a run of consecutive failures and stays open for its
// timeout window, independent of the explicit Retry-After cooldown the
// Dispatcher tracks for 429 responses: gobreaker absorbs general
// transient failure bursts, the cooldown map absorbs explicit
// rate-limit signals with caller-provided durations.
type endpointBreaker struct {
	cb *gobreaker.CircuitBreaker
}

func newEndpointBreaker(name string) *endpointBreaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    0,
		Timeout:     defaultCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &endpointBreaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker. When the breaker is open it
// returns gobreaker.ErrOpenState without invoking fn.
func (b *endpointBreaker) Execute(fn func() (any, error)) (any, error) {
	return b.cb.Execute(fn)
}

// open reports whether the breaker currently rejects calls.
func (b *endpointBreaker) open() bool {
	return b.cb.State() == gobreaker.StateOpen
}
