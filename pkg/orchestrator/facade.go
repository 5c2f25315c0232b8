// Package orchestrator implements the Orchestrator Facade (spec §4.7):
// the single construction point that wires the Router, Supervisor,
// Scheduler, Shared State Store, Dispatcher, Tool Catalog, LLM client and
// Skill Registry together, applies the global per-user rate cap, and
// exposes the outward verbs (Handle, RunForever, Shutdown) a gateway
// calls into. Grounded on the teacher's internal/kernel.Kernel: a
// concrete-typed struct that owns and constructs every subsystem in
// NewKernel, starts them in dependency order from Start, and unwinds
// them in reverse from Stop — generalized here from the teacher's
// database/build/chat/webui services to this runtime's six numbered
// components plus the skill registry.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"colony/pkg/clock"
	"colony/pkg/colonyerr"
	"colony/pkg/config"
	"colony/pkg/dispatch"
	"colony/pkg/limiter"
	"colony/pkg/llm"
	"colony/pkg/logx"
	"colony/pkg/metrics"
	"colony/pkg/router"
	"colony/pkg/scheduler"
	"colony/pkg/skill"
	"colony/pkg/state"
	"colony/pkg/tools"

	"colony/internal/supervisor"

	"github.com/prometheus/client_golang/prometheus"
)

const component = "orchestrator"

// Response is the Gateway→Orchestrator envelope (spec §6).
type Response struct {
	Status      string            `json:"status"`
	Body        string            `json:"body"`
	Diagnostics map[string]string `json:"diagnostics"`
}

const (
	statusOK          = "ok"
	statusError       = "error"
	statusRateLimited = "rate_limited"
	statusBlocked     = "blocked"
)

// Facade is the process's single wiring point: exactly one Facade owns
// each of the six numbered components plus the skill registry, matching
// the teacher's "Kernel provides a single source of truth for
// infrastructure lifecycle" contract.
type Facade struct {
	root  *clock.Scope
	log   *logx.Logger
	cfg   config.Config

	State      *state.Store
	Dispatcher *dispatch.Dispatcher
	Tools      *tools.Catalog
	LLM        llm.Client
	Router     *router.Router
	Skills     *skill.Registry
	Supervisor *supervisor.Supervisor
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Recorder
	Registry   *prometheus.Registry

	userBucket *limiter.UserBucket

	mu      sync.Mutex
	running bool
}

// New builds a Facade and every subsystem it owns. Agents and skills are
// not registered here — callers Register them before calling RunForever,
// mirroring the teacher's NewKernel/Start split (construct, then wire
// call-site-specific agents, then start).
func New(root *clock.Scope, cfg config.Config) (*Facade, error) {
	store := state.New(cfg.StateFile)
	if err := store.Load(); err != nil {
		return nil, colonyerr.Newf(colonyerr.KindFatal, component, "load state: %v", err)
	}

	llmClient, err := llm.NewClient(&cfg)
	if err != nil {
		return nil, colonyerr.Newf(colonyerr.KindFatal, component, "create llm client: %v", err)
	}
	if counter, err := llm.NewTokenCounter(); err == nil {
		llmClient = llm.NewBudgetedClient(llmClient, limiter.NewLimiter(&cfg), counter)
	}

	registry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(registry)

	f := &Facade{
		root:       root,
		log:        logx.NewLogger(component),
		cfg:        cfg,
		State:      store,
		Dispatcher: dispatch.New(0, time.Duration(cfg.DispatchCacheTTLSeconds)*time.Second),
		Tools:      tools.NewCatalog(),
		LLM:        llmClient,
		Router:     router.New(),
		Skills:     skill.NewRegistry(),
		Supervisor: supervisor.New(root, store),
		Scheduler:  scheduler.New(root, store),
		Metrics:    recorder,
		Registry:   registry,
		userBucket: limiter.NewUserBucket(cfg.RateLimitPerMinute),
	}

	f.Dispatcher.SetMetrics(recorder)
	f.Router.SetMetrics(recorder)
	f.Supervisor.SetMetrics(recorder)
	f.Scheduler.SetMetrics(recorder)
	tools.SetMetrics(recorder)

	f.log.Info("orchestrator facade constructed")
	return f, nil
}

// StateFilePath returns the path the Facade's Shared State Store persists
// to, for callers (e.g. the admin CLI's "state clear") that need to
// operate on the file directly.
func (f *Facade) StateFilePath() string {
	return f.cfg.StateFile
}

// RegisterSkill adds a skill to both the skill registry and the router,
// so startup wiring only has to call one method per skill.
func (f *Facade) RegisterSkill(s skill.Skill) {
	f.Skills.Register(s)
	f.Router.Register(s.Profile())
}

// RegisterAgent registers a background agent with the Supervisor.
func (f *Facade) RegisterAgent(name string, agent supervisor.Agent, autorestart bool) error {
	return f.Supervisor.Register(name, agent, autorestart)
}

// Handle is the synchronous public entry point (spec §4.7): rate-limit
// the caller, route the message, dispatch to the chosen skill, and
// translate the outcome into a response envelope. Messages beyond the
// per-user cap are rejected with a RateLimited envelope and never reach
// the router.
func (f *Facade) Handle(userID, message string) Response {
	start := time.Now()

	if err := f.userBucket.Allow(userID); err != nil {
		return Response{
			Status: statusRateLimited,
			Body:   "rate limit exceeded",
			Diagnostics: map[string]string{
				"kind":      string(colonyerr.KindRateLimited),
				"component": component,
			},
		}
	}

	decision := f.Router.Route(message)

	diag := map[string]string{
		"skill":      decision.Skill,
		"confidence": fmt.Sprintf("%.2f", decision.Confidence),
		"reasoning":  decision.Reasoning,
		"latency_ms": fmt.Sprintf("%d", time.Since(start).Milliseconds()),
	}

	s, ok := f.Skills.Get(decision.Skill)
	if !ok {
		return Response{
			Status:      statusError,
			Body:        fmt.Sprintf("no handler registered for skill %q", decision.Skill),
			Diagnostics: mergeKind(diag, colonyerr.KindNotFound),
		}
	}

	caps := skill.Capabilities{State: f.State, Dispatcher: f.Dispatcher, Tools: f.Tools}
	out, err := s.Handle(f.root.Context(), decision, caps)
	if err != nil {
		kind := colonyerr.Classify(err)
		status := statusError
		if kind == colonyerr.KindRateLimited {
			status = statusRateLimited
		}
		return Response{
			Status:      status,
			Body:        err.Error(),
			Diagnostics: mergeKind(diag, kind),
		}
	}

	if out.Error != "" {
		return Response{Status: statusBlocked, Body: out.Error, Diagnostics: diag}
	}

	return Response{Status: statusOK, Body: out.Text, Diagnostics: diag}
}

func mergeKind(diag map[string]string, kind colonyerr.Kind) map[string]string {
	diag["kind"] = string(kind)
	return diag
}

// RunForever starts every registered agent and the scheduler, then
// blocks until the Facade's root scope is cancelled, performing the
// ordered shutdown spec §4.7 requires: stop schedules, stop agents,
// flush state, cancel the root scope (the Dispatcher runs no background
// work, so it has no release step). Mirrors the teacher's Kernel.Stop
// ordering (cancel context, stop dispatcher, drain persistence, close
// database) generalized to this runtime's component set.
func (f *Facade) RunForever() error {
	f.mu.Lock()
	f.running = true
	f.mu.Unlock()

	f.Scheduler.Start()

	for _, st := range f.Supervisor.StatusAll() {
		if err := f.Supervisor.Start(st.Name); err != nil {
			f.log.Warn("failed to start agent %s: %v", st.Name, err)
		}
	}

	<-f.root.Context().Done()
	return f.Shutdown(time.Duration(f.cfg.ShutdownGraceSeconds) * time.Second)
}

// Shutdown performs the ordered unwind and is idempotent and safe to
// call from any goroutine, including one racing RunForever's own
// Context().Done() wakeup.
func (f *Facade) Shutdown(deadline time.Duration) error {
	f.mu.Lock()
	if !f.running {
		f.mu.Unlock()
		return nil
	}
	f.running = false
	f.mu.Unlock()

	f.log.Info("shutting down orchestrator")

	f.Scheduler.StopAll()
	f.Supervisor.StopAll()

	if err := f.State.Save(); err != nil {
		f.log.Error("failed to flush state on shutdown: %v", err)
	}

	f.root.Cancel()
	return nil
}
