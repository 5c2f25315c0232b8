// Package dispatch implements the Concurrent Dispatcher: fan-out over N
// candidate endpoints, first success wins, a shared TTL+LRU result
// cache, and per-endpoint rate-limit cooldown.
package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"colony/pkg/clock"
	"colony/pkg/metrics"
)

// Endpoint is a single candidate an attempt can race against. Call must
// respect ctx cancellation; a non-nil RateLimitedError return puts the
// endpoint into cooldown.
type Endpoint interface {
	Name() string
	Call(ctx context.Context, task DispatchTask) (any, error)
}

// DispatchTask is consumed by Dispatch. Method/Args feed the cache key;
// Endpoints are raced in parallel; PerAttemptTimeout bounds each
// individual attempt and Deadline bounds the call as a whole.
type DispatchTask struct {
	Method            string
	Args              map[string]any
	Endpoints         []Endpoint
	PerAttemptTimeout time.Duration
	Deadline          time.Duration
}

// Result is returned by a successful Dispatch.
type Result struct {
	Value    any
	Endpoint string
	Latency  time.Duration
	Cached   bool
}

// RateLimitedError is returned by an Endpoint.Call to signal a 429 (or
// equivalent) response. RetryAfter of zero means "use the default cooldown".
type RateLimitedError struct {
	Endpoint   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("dispatch: %s rate limited", e.Endpoint)
}

// AllEndpointsFailedError is returned when every candidate endpoint
// failed or was in cooldown.
type AllEndpointsFailedError struct {
	Method   string
	Errors   map[string]error
	Cooldown bool // true if every endpoint was skipped for being in cooldown
}

func (e *AllEndpointsFailedError) Error() string {
	if e.Cooldown {
		return fmt.Sprintf("dispatch: %s: all endpoints in cooldown", e.Method)
	}
	return fmt.Sprintf("dispatch: %s: all %d endpoint(s) failed", e.Method, len(e.Errors))
}

const (
	defaultPerAttemptTimeout = 10 * time.Second
	defaultCooldown          = 60 * time.Second
)

// Dispatcher races DispatchTasks across their candidate endpoints,
// caching results and tracking per-endpoint cooldown/failure state.
type Dispatcher struct {
	cache *resultCache

	mu        sync.Mutex
	cooldowns map[string]time.Time
	breakers  map[string]*endpointBreaker
	latencies map[string]time.Duration // last observed winning latency, per endpoint

	metrics *metrics.Recorder
}

// SetMetrics attaches a Recorder that every Dispatch call's outcome and
// latency is reported to. Optional — a nil Recorder (the default) makes
// recording a no-op.
func (d *Dispatcher) SetMetrics(m *metrics.Recorder) {
	d.metrics = m
}

// New builds a Dispatcher with the given cache size (0 -> default 256)
// and TTL (0 -> default 30s).
func New(cacheSize int, cacheTTL time.Duration) *Dispatcher {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &Dispatcher{
		cache:     newResultCache(cacheSize, cacheTTL),
		cooldowns: make(map[string]time.Time),
		breakers:  make(map[string]*endpointBreaker),
		latencies: make(map[string]time.Duration),
	}
}

// Dispatch consults the cache, then races task.Endpoints, returning the
// first success or AllEndpointsFailedError.
func (d *Dispatcher) Dispatch(scope *clock.Scope, task DispatchTask) (Result, error) {
	result, err := d.dispatch(scope, task)
	if d.metrics != nil {
		switch {
		case err == nil && result.Cached:
			d.metrics.RecordDispatch(task.Method, "cache_hit", result.Endpoint, 0)
		case err == nil:
			d.metrics.RecordDispatch(task.Method, "success", result.Endpoint, result.Latency)
		default:
			d.metrics.RecordDispatch(task.Method, "all_failed", "", 0)
		}
	}
	return result, err
}

func (d *Dispatcher) dispatch(scope *clock.Scope, task DispatchTask) (Result, error) {
	key := cacheKey(task.Method, task.Args)
	if v, ok := d.cache.get(key); ok {
		return Result{Value: v, Cached: true}, nil
	}

	candidates := d.rankByLatency(task.Endpoints)
	if len(candidates) == 0 {
		return Result{}, &AllEndpointsFailedError{Method: task.Method, Errors: map[string]error{}}
	}

	perAttempt := task.PerAttemptTimeout
	if perAttempt <= 0 {
		perAttempt = defaultPerAttemptTimeout
	}

	overallScope := scope
	if task.Deadline > 0 {
		overallScope = scope.WithDeadline("dispatch:"+task.Method, task.Deadline)
	}

	type attemptResult struct {
		endpoint string
		value    any
		err      error
		latency  time.Duration
	}

	resultsCh := make(chan attemptResult, len(candidates))
	attemptScopes := make(map[string]*clock.Scope, len(candidates))
	var launched int
	allInCooldown := true

	for _, ep := range candidates {
		if d.inCooldown(ep.Name()) || d.breaker(ep.Name()).open() {
			continue
		}
		allInCooldown = false
		launched++

		ep := ep
		attemptScope := overallScope.WithDeadline("dispatch:"+task.Method+":"+ep.Name(), perAttempt)
		attemptScopes[ep.Name()] = attemptScope
		breaker := d.breaker(ep.Name())
		go func() {
			start := time.Now()
			value, err := breaker.Execute(func() (any, error) {
				return ep.Call(attemptScope.Context(), task)
			})
			latency := time.Since(start)
			if err == nil {
				d.mu.Lock()
				d.latencies[ep.Name()] = latency
				d.mu.Unlock()
			} else if rl, ok := err.(*RateLimitedError); ok {
				cooldown := rl.RetryAfter
				if cooldown <= 0 {
					cooldown = defaultCooldown
				}
				d.mu.Lock()
				d.cooldowns[ep.Name()] = time.Now().Add(cooldown)
				d.mu.Unlock()
			}
			resultsCh <- attemptResult{endpoint: ep.Name(), value: value, err: err, latency: latency}
		}()
	}

	if launched == 0 {
		return Result{}, &AllEndpointsFailedError{Method: task.Method, Cooldown: allInCooldown, Errors: map[string]error{}}
	}

	errs := make(map[string]error, launched)
	for i := 0; i < launched; i++ {
		r := <-resultsCh
		if r.err == nil {
			d.cache.put(key, r.value)
			cancelOtherAttempts(attemptScopes, r.endpoint)
			return Result{Value: r.value, Endpoint: r.endpoint, Latency: r.latency}, nil
		}
		errs[r.endpoint] = r.err
	}

	return Result{}, &AllEndpointsFailedError{Method: task.Method, Errors: errs}
}

// cancelOtherAttempts cancels every attempt scope except the winner's, so
// losing in-flight calls stop immediately instead of running out their own
// per-attempt timeout.
func cancelOtherAttempts(scopes map[string]*clock.Scope, winner string) {
	for name, scope := range scopes {
		if name == winner {
			continue
		}
		scope.Cancel()
	}
}

// rankByLatency returns candidates ordered by last observed winning
// latency (ascending); endpoints with no history sort after ones that
// have won, in their original relative order.
func (d *Dispatcher) rankByLatency(candidates []Endpoint) []Endpoint {
	d.mu.Lock()
	latencies := make(map[string]time.Duration, len(d.latencies))
	for k, v := range d.latencies {
		latencies[k] = v
	}
	d.mu.Unlock()

	ranked := make([]Endpoint, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		li, iok := latencies[ranked[i].Name()]
		lj, jok := latencies[ranked[j].Name()]
		if iok && jok {
			return li < lj
		}
		return iok && !jok
	})
	return ranked
}

func (d *Dispatcher) inCooldown(name string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.cooldowns[name]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(d.cooldowns, name)
		return false
	}
	return true
}

func (d *Dispatcher) breaker(name string) *endpointBreaker {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.breakers[name]
	if !ok {
		b = newEndpointBreaker(name)
		d.breakers[name] = b
	}
	return b
}

func cacheKey(method string, args map[string]any) string {
	return fmt.Sprintf("%s:%s", method, argsDigest(args))
}
