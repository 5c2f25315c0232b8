// Package supervisor implements the Agent Supervisor (spec §4.2): agent
// registration, lifecycle control, restart-with-backoff on error, a burst
// circuit-breaker that disables auto-restart, and graceful shutdown.
package supervisor

import (
	"sync"
	"time"

	"colony/pkg/clock"
	"colony/pkg/colonyerr"
	"colony/pkg/logx"
	"colony/pkg/metrics"
	"colony/pkg/proto"
	"colony/pkg/state"
)

const component = "supervisor"

// State is an Agent's lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StatePaused   State = "paused"
	StateError    State = "error"
	StateStopping State = "stopping"
)

const (
	defaultGrace   = 10 * time.Second
	backoffBase    = time.Second
	backoffFactor  = 2
	backoffCap     = 60 * time.Second
	burstWindow    = 60 * time.Second
	burstThreshold = 5
)

// Agent is the narrow capability interface the supervisor owns: a named
// unit of work whose Run blocks until its scope is cancelled or it
// returns (normally or with an error).
type Agent interface {
	Name() string
	Run(scope *clock.Scope) error
}

// Status is a point-in-time snapshot of a supervised agent.
type Status struct {
	Name        string
	State       State
	LastError   string
	Restarts    int
	AutoRestart bool
}

// record is the supervisor's internal bookkeeping for one registered
// agent.
type record struct {
	agent       Agent
	state       State
	lastError   string
	autorestart bool
	restarts    int
	failures    []time.Time // failure timestamps within the burst window
	scope       *clock.Scope
	done        chan struct{}
	autoPaused  bool // Paused by ReportDispatchCooldown rather than an operator
}

// Supervisor owns a set of named agents and drives their lifecycle.
// Exactly one Supervisor owns each Agent handle (the shared-state-model
// invariant).
type Supervisor struct {
	root  *clock.Scope
	store *state.Store
	log   *logx.Logger

	mu      sync.Mutex
	agents  map[string]*record
	grace   time.Duration
	metrics *metrics.Recorder
}

// SetMetrics attaches a Recorder that restart attempts and state
// transitions are reported to. Optional — a nil Recorder (the default)
// makes every recording call a no-op.
func (s *Supervisor) SetMetrics(r *metrics.Recorder) {
	s.metrics = r
}

func (s *Supervisor) recordState(name, state string) {
	if s.metrics != nil {
		s.metrics.RecordAgentState(name, state)
	}
}

// New builds a Supervisor whose agent scopes descend from root and whose
// agent_error alerts publish to store.
func New(root *clock.Scope, store *state.Store) *Supervisor {
	return &Supervisor{
		root:   root,
		store:  store,
		log:    logx.NewLogger(component),
		agents: make(map[string]*record),
		grace:  defaultGrace,
	}
}

// Register adds an agent under the given name with the given auto-restart
// policy. It fails if the name is already taken.
func (s *Supervisor) Register(name string, agent Agent, autorestart bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agents[name]; exists {
		return colonyerr.Newf(colonyerr.KindUsage, component, "agent %q already registered", name)
	}

	s.agents[name] = &record{
		agent:       agent,
		state:       StateStopped,
		autorestart: autorestart,
	}
	return nil
}

// Start transitions a Stopped agent through Starting to Running, spawning
// a goroutine that invokes Run under a fresh child scope of the
// supervisor's root.
func (s *Supervisor) Start(name string) error {
	s.mu.Lock()
	rec, ok := s.agents[name]
	if !ok {
		s.mu.Unlock()
		return colonyerr.Newf(colonyerr.KindNotFound, component, "agent %q not registered", name)
	}
	if rec.state == StateStarting || rec.state == StateRunning {
		s.mu.Unlock()
		s.log.Warn("agent %s start requested but already %s, ignoring", name, rec.state)
		return nil
	}
	s.mu.Unlock()

	return s.start(name, rec)
}

func (s *Supervisor) start(name string, rec *record) error {
	s.mu.Lock()
	rec.state = StateStarting
	scope := s.root.Child("agent:" + name)
	rec.scope = scope
	done := make(chan struct{})
	rec.done = done
	s.mu.Unlock()

	s.log.Info("agent %s starting", name)

	go func() {
		defer close(done)

		s.mu.Lock()
		rec.state = StateRunning
		s.mu.Unlock()
		s.recordState(name, string(StateRunning))
		s.log.Info("agent %s running", name)

		err := rec.agent.Run(scope)

		s.mu.Lock()
		defer s.mu.Unlock()

		if rec.state == StateStopping {
			rec.state = StateStopped
			s.recordState(name, string(StateStopped))
			s.log.Info("agent %s stopped", name)
			return
		}

		if err != nil {
			rec.state = StateError
			rec.lastError = err.Error()
			rec.failures = append(recentFailures(rec.failures), time.Now())
			s.recordState(name, string(StateError))
			s.log.Error("agent %s error: %v", name, err)
			s.store.PublishAlert(proto.Alert{
				Kind:      "agent_error",
				Payload:   map[string]string{"agent": name, "error": err.Error()},
				Severity:  proto.SeverityError,
				Timestamp: time.Now(),
			})

			s.maybeAutoRestart(name, rec)
			return
		}

		rec.state = StateStopped
		s.recordState(name, string(StateStopped))
		s.log.Info("agent %s exited normally", name)
	}()

	return nil
}

// maybeAutoRestart schedules a backoff-delayed restart if the agent's
// policy allows it and the burst circuit-breaker has not tripped. Must be
// called with s.mu held.
func (s *Supervisor) maybeAutoRestart(name string, rec *record) {
	if !rec.autorestart {
		return
	}

	if len(recentFailures(rec.failures)) >= burstThreshold {
		s.log.Warn("agent %s exceeded %d failures in %s, disabling auto-restart", name, burstThreshold, burstWindow)
		rec.autorestart = false
		if s.metrics != nil {
			s.metrics.RecordAgentRestart(name, "burst_disabled")
		}
		return
	}

	delay := backoffDelay(rec.restarts)
	rec.restarts++

	go func() {
		time.Sleep(delay)
		s.mu.Lock()
		if rec.state != StateError {
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()
		s.log.Info("agent %s restarting after %s backoff", name, delay)
		if s.metrics != nil {
			s.metrics.RecordAgentRestart(name, "ok")
		}
		_ = s.start(name, rec)
	}()
}

// backoffDelay computes the exponential backoff for the n-th restart:
// base 1s, factor 2, capped at 60s.
func backoffDelay(n int) time.Duration {
	d := backoffBase
	for i := 0; i < n; i++ {
		d *= backoffFactor
		if d >= backoffCap {
			return backoffCap
		}
	}
	return d
}

// recentFailures prunes failures older than the burst window.
func recentFailures(failures []time.Time) []time.Time {
	cutoff := time.Now().Add(-burstWindow)
	kept := failures[:0]
	for _, f := range failures {
		if f.After(cutoff) {
			kept = append(kept, f)
		}
	}
	return kept
}

// Stop cancels the agent's scope and waits up to the supervisor's grace
// period for it to unwind. If grace expires the scope is abandoned and
// the agent is marked Stopped with a force_killed note.
func (s *Supervisor) Stop(name string) error {
	s.mu.Lock()
	rec, ok := s.agents[name]
	if !ok {
		s.mu.Unlock()
		return colonyerr.Newf(colonyerr.KindNotFound, component, "agent %q not registered", name)
	}
	if rec.state == StateStopped {
		s.mu.Unlock()
		return nil
	}
	rec.state = StateStopping
	scope := rec.scope
	done := rec.done
	s.mu.Unlock()

	if scope == nil {
		return nil
	}
	scope.Cancel()

	select {
	case <-done:
	case <-time.After(s.grace):
		s.mu.Lock()
		rec.state = StateStopped
		rec.lastError = "force_killed"
		s.mu.Unlock()
		s.log.Warn("agent %s force-killed after grace period", name)
		return nil
	}
	return nil
}

// Pause stops the agent without clearing its intent to resume.
func (s *Supervisor) Pause(name string) error {
	if err := s.Stop(name); err != nil {
		return err
	}
	s.mu.Lock()
	if rec, ok := s.agents[name]; ok {
		rec.state = StatePaused
	}
	s.mu.Unlock()
	return nil
}

// Resume starts a fresh scope for a paused agent.
func (s *Supervisor) Resume(name string) error {
	s.mu.Lock()
	rec, ok := s.agents[name]
	if !ok {
		s.mu.Unlock()
		return colonyerr.Newf(colonyerr.KindNotFound, component, "agent %q not registered", name)
	}
	s.mu.Unlock()
	return s.start(name, rec)
}

// ReportDispatchCooldown is called by an Agent's own Run loop when a
// Dispatch call comes back with every candidate endpoint in cooldown
// (dispatch.AllEndpointsFailedError.Cooldown). Pauses the agent and
// schedules an automatic Resume once the cooldown window elapses —
// carried from the teacher's SUSPEND/pollAPIHealth/broadcastRestore flow,
// but time-based rather than health-polled: the dispatcher's own
// cooldown duration already is the resume signal, so no separate health
// check is needed. A no-op if the agent is already Paused.
func (s *Supervisor) ReportDispatchCooldown(name string, cooldown time.Duration) error {
	s.mu.Lock()
	rec, ok := s.agents[name]
	if !ok {
		s.mu.Unlock()
		return colonyerr.Newf(colonyerr.KindNotFound, component, "agent %q not registered", name)
	}
	if rec.state == StatePaused {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if err := s.Pause(name); err != nil {
		return err
	}

	s.mu.Lock()
	rec.lastError = "dispatch endpoints in cooldown"
	rec.autoPaused = true
	s.mu.Unlock()
	s.recordState(name, string(StatePaused))

	time.AfterFunc(cooldown, func() {
		s.mu.Lock()
		shouldResume := rec.state == StatePaused && rec.autoPaused
		rec.autoPaused = false
		s.mu.Unlock()
		if shouldResume {
			if err := s.Resume(name); err != nil {
				s.log.Warn("auto-resume of %s after dispatch cooldown failed: %v", name, err)
			}
		}
	})
	return nil
}

// StopAll stops every registered agent, waiting up to the supervisor's
// grace period for each.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	names := make([]string, 0, len(s.agents))
	for name := range s.agents {
		names = append(names, name)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, name := range names {
		name := name
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Stop(name)
		}()
	}
	wg.Wait()
}

// Status returns a point-in-time snapshot for one agent.
func (s *Supervisor) Status(name string) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.agents[name]
	if !ok {
		return Status{}, colonyerr.Newf(colonyerr.KindNotFound, component, "agent %q not registered", name)
	}
	return Status{
		Name:        name,
		State:       rec.state,
		LastError:   rec.lastError,
		Restarts:    rec.restarts,
		AutoRestart: rec.autorestart,
	}, nil
}

// StatusAll returns a snapshot for every registered agent.
func (s *Supervisor) StatusAll() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Status, 0, len(s.agents))
	for name, rec := range s.agents {
		out = append(out, Status{
			Name:        name,
			State:       rec.state,
			LastError:   rec.lastError,
			Restarts:    rec.restarts,
			AutoRestart: rec.autorestart,
		})
	}
	return out
}

// AwaitAll blocks until every running agent exits or deadline elapses.
// Returns an error naming the first agent still running when the
// deadline was reached.
func (s *Supervisor) AwaitAll(deadline time.Duration) error {
	s.mu.Lock()
	dones := make([]chan struct{}, 0, len(s.agents))
	names := make([]string, 0, len(s.agents))
	for name, rec := range s.agents {
		if rec.done != nil && rec.state != StateStopped {
			dones = append(dones, rec.done)
			names = append(names, name)
		}
	}
	s.mu.Unlock()

	deadlineAt := time.After(deadline)
	for i, done := range dones {
		select {
		case <-done:
		case <-deadlineAt:
			return colonyerr.Newf(colonyerr.KindTimeout, component, "agent %q still running after %s", names[i], deadline)
		}
	}
	return nil
}

// SetGrace overrides the default 10s stop grace period. Intended for
// tests that need to exercise the force_killed path quickly.
func (s *Supervisor) SetGrace(grace time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grace = grace
}
