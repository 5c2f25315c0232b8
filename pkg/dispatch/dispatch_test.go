package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony/pkg/clock"
)

type fakeEndpoint struct {
	name      string
	delay     time.Duration
	err       error
	value     any
	cancelled chan struct{}
}

func (f *fakeEndpoint) Name() string { return f.name }

func (f *fakeEndpoint) Call(ctx context.Context, _ DispatchTask) (any, error) {
	select {
	case <-time.After(f.delay):
	case <-ctx.Done():
		if f.cancelled != nil {
			close(f.cancelled)
		}
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.value, nil
}

func TestDispatchFastestEndpointWins(t *testing.T) {
	d := New(0, 0)
	root := clock.NewRoot(context.Background(), "test")

	task := DispatchTask{
		Method: "get_price",
		Args:   map[string]any{"symbol": "ETH"},
		Endpoints: []Endpoint{
			&fakeEndpoint{name: "slow", delay: 50 * time.Millisecond, value: "slow-result"},
			&fakeEndpoint{name: "fast", delay: 5 * time.Millisecond, value: "fast-result"},
		},
		PerAttemptTimeout: time.Second,
	}

	result, err := d.Dispatch(root, task)
	require.NoError(t, err)
	assert.Equal(t, "fast", result.Endpoint)
	assert.Equal(t, "fast-result", result.Value)
}

func TestDispatchCancelsLosingAttempts(t *testing.T) {
	d := New(0, 0)
	root := clock.NewRoot(context.Background(), "test")

	slow := &fakeEndpoint{name: "slow", delay: time.Hour, value: "slow-result", cancelled: make(chan struct{})}
	dead := &fakeEndpoint{name: "dead", delay: time.Hour, value: "dead-result", cancelled: make(chan struct{})}
	fast := &fakeEndpoint{name: "fast", delay: 5 * time.Millisecond, value: "fast-result"}

	task := DispatchTask{
		Method:            "get_price",
		Args:              map[string]any{"symbol": "ETH"},
		Endpoints:         []Endpoint{slow, dead, fast},
		PerAttemptTimeout: time.Hour,
	}

	result, err := d.Dispatch(root, task)
	require.NoError(t, err)
	assert.Equal(t, "fast", result.Endpoint)

	select {
	case <-slow.cancelled:
	case <-time.After(time.Second):
		t.Fatal("losing attempt \"slow\" was not cancelled after a winner was chosen")
	}
	select {
	case <-dead.cancelled:
	case <-time.After(time.Second):
		t.Fatal("losing attempt \"dead\" was not cancelled after a winner was chosen")
	}
}

func TestDispatchAllFailedReturnsErrorSummaries(t *testing.T) {
	d := New(0, 0)
	root := clock.NewRoot(context.Background(), "test")

	task := DispatchTask{
		Method: "get_price",
		Args:   map[string]any{"symbol": "ETH"},
		Endpoints: []Endpoint{
			&fakeEndpoint{name: "a", err: errors.New("boom")},
			&fakeEndpoint{name: "b", err: errors.New("bang")},
		},
		PerAttemptTimeout: time.Second,
	}

	_, err := d.Dispatch(root, task)
	require.Error(t, err)
	var failed *AllEndpointsFailedError
	require.ErrorAs(t, err, &failed)
	assert.Len(t, failed.Errors, 2)
}

func TestDispatchCachesSuccessfulResult(t *testing.T) {
	d := New(0, time.Minute)
	root := clock.NewRoot(context.Background(), "test")

	ep := &fakeEndpoint{name: "a", value: "cached"}
	task := DispatchTask{
		Method:            "get_price",
		Args:              map[string]any{"symbol": "ETH"},
		Endpoints:         []Endpoint{ep},
		PerAttemptTimeout: time.Second,
	}

	first, err := d.Dispatch(root, task)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := d.Dispatch(root, task)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "cached", second.Value)
}

func TestDispatchRateLimitPutsEndpointInCooldown(t *testing.T) {
	d := New(0, 0)
	root := clock.NewRoot(context.Background(), "test")

	limited := &fakeEndpoint{name: "limited", err: &RateLimitedError{Endpoint: "limited", RetryAfter: time.Minute}}
	healthy := &fakeEndpoint{name: "healthy", value: "ok"}

	task := DispatchTask{
		Method:            "get_price",
		Args:              map[string]any{"symbol": "BTC"},
		Endpoints:         []Endpoint{limited},
		PerAttemptTimeout: time.Second,
	}
	_, err := d.Dispatch(root, task)
	require.Error(t, err)
	assert.True(t, d.inCooldown("limited"))

	task2 := DispatchTask{
		Method:            "get_price",
		Args:              map[string]any{"symbol": "SOL"},
		Endpoints:         []Endpoint{limited, healthy},
		PerAttemptTimeout: time.Second,
	}
	result, err := d.Dispatch(root, task2)
	require.NoError(t, err)
	assert.Equal(t, "healthy", result.Endpoint)
}

func TestArgsDigestIsOrderIndependent(t *testing.T) {
	a := map[string]any{"x": 1, "y": 2}
	b := map[string]any{"y": 2, "x": 1}
	assert.Equal(t, argsDigest(a), argsDigest(b))
}
