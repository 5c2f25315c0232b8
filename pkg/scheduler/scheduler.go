// Package scheduler implements the Report Scheduler (spec §4.4):
// declarative interval or cron-like recurring tasks, each running under
// its own cancellation scope with no overlapping invocations.
package scheduler

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"colony/pkg/clock"
	"colony/pkg/colonyerr"
	"colony/pkg/logx"
	"colony/pkg/metrics"
	"colony/pkg/proto"
	"colony/pkg/state"
)

const component = "scheduler"

// deadlineEpsilon is subtracted from a schedule's interval to build each
// task invocation's deadline, so a task that runs exactly as long as its
// interval is still reliably cancelled before the next tick.
const deadlineEpsilon = 50 * time.Millisecond

// Task is the unit of recurring work a Schedule invokes. It must respect
// the scope's cancellation — exceeding the per-invocation deadline
// cancels scope.Context() and the scheduler moves on.
type Task func(scope *clock.Scope) error

// schedule holds one registered recurring task.
type schedule struct {
	name     string
	interval time.Duration
	cronExpr cron.Schedule // nil for plain interval schedules
	task     Task
	enabled  atomic.Bool

	lastRunMu sync.Mutex
	lastRun   time.Time

	scope   *clock.Scope
	running atomic.Bool
}

// Status is a point-in-time snapshot of a registered schedule (spec's
// "name, interval/cron, last-run timestamp, enabled flag" data model).
type Status struct {
	Name     string
	Interval time.Duration
	CronExpr bool
	LastRun  time.Time
	Enabled  bool
}

// Scheduler drives a set of named schedules, each under a child scope of
// the scheduler's root. A Schedule cannot outlive its Supervisor scope —
// cancelling root stops every schedule.
type Scheduler struct {
	root  *clock.Scope
	store *state.Store
	log   *logx.Logger

	schedules map[string]*schedule
	metrics   *metrics.Recorder
}

// SetMetrics attaches a Recorder that runs and lag events are reported
// to. Optional — a nil Recorder (the default) makes recording a no-op.
func (s *Scheduler) SetMetrics(r *metrics.Recorder) {
	s.metrics = r
}

// New builds a Scheduler whose schedule scopes descend from root and
// whose schedule_lag/report_error alerts publish to store.
func New(root *clock.Scope, store *state.Store) *Scheduler {
	return &Scheduler{
		root:      root,
		store:     store,
		log:       logx.NewLogger(component),
		schedules: make(map[string]*schedule),
	}
}

// ScheduleInterval registers a task that runs every interval. It fails if
// name is already registered.
func (s *Scheduler) ScheduleInterval(name string, interval time.Duration, task Task) error {
	if _, exists := s.schedules[name]; exists {
		return colonyerr.Newf(colonyerr.KindUsage, component, "schedule %q already registered", name)
	}
	sch := &schedule{name: name, interval: interval, task: task}
	sch.enabled.Store(true)
	s.schedules[name] = sch
	return nil
}

// ScheduleCron registers a task that runs according to a standard 5-field
// cron expression.
func (s *Scheduler) ScheduleCron(name, cronExpr string, task Task) error {
	if _, exists := s.schedules[name]; exists {
		return colonyerr.Newf(colonyerr.KindUsage, component, "schedule %q already registered", name)
	}
	parsed, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return colonyerr.New(colonyerr.KindUsage, component, err)
	}
	sch := &schedule{name: name, cronExpr: parsed, task: task}
	sch.enabled.Store(true)
	s.schedules[name] = sch
	return nil
}

// Disable suspends a schedule: its loop keeps ticking but skips
// invocation until Enable is called again.
func (s *Scheduler) Disable(name string) error {
	sch, ok := s.schedules[name]
	if !ok {
		return colonyerr.Newf(colonyerr.KindNotFound, component, "schedule %q not registered", name)
	}
	sch.enabled.Store(false)
	return nil
}

// Enable resumes a previously disabled schedule.
func (s *Scheduler) Enable(name string) error {
	sch, ok := s.schedules[name]
	if !ok {
		return colonyerr.Newf(colonyerr.KindNotFound, component, "schedule %q not registered", name)
	}
	sch.enabled.Store(true)
	return nil
}

// Start begins driving every registered schedule, one goroutine per
// schedule, each under its own child scope of the scheduler's root.
func (s *Scheduler) Start() {
	for name, sch := range s.schedules {
		sch.scope = s.root.Child("schedule:" + name)
		go s.drive(sch)
	}
}

// drive is the per-schedule loop. Ticks fire on a fixed cadence
// independent of task duration; each task runs in its own goroutine so a
// slow invocation cannot delay the next tick's decision. If the previous
// invocation is still running when a tick fires, that tick is skipped and
// a schedule_lag alert is emitted instead of overlapping invocations.
func (s *Scheduler) drive(sch *schedule) {
	for {
		wait := s.nextWait(sch)

		select {
		case <-sch.scope.Context().Done():
			return
		case <-time.After(wait):
		}

		if !sch.enabled.Load() {
			continue
		}

		if !sch.running.CompareAndSwap(false, true) {
			s.log.Warn("schedule %s skipped tick, previous invocation still running", sch.name)
			s.store.PublishAlert(proto.Alert{
				Kind:      "schedule_lag",
				Payload:   map[string]string{"schedule": sch.name},
				Severity:  proto.SeverityWarning,
				Timestamp: time.Now(),
			})
			if s.metrics != nil {
				s.metrics.RecordScheduleLag(sch.name)
			}
			continue
		}

		go s.runOnce(sch)
	}
}

// nextWait computes the duration until this schedule's next tick, always
// measured from now — a fixed cadence that does not slip when a task
// overruns its interval.
func (s *Scheduler) nextWait(sch *schedule) time.Duration {
	now := time.Now()
	if sch.cronExpr != nil {
		next := sch.cronExpr.Next(now)
		return next.Sub(now)
	}
	return sch.interval
}

// runOnce invokes the schedule's task under a deadline scope, recording
// the miss as a report_error alert if it exceeds its deadline or returns
// an error. Always clears the running flag on exit so the next tick can
// proceed.
func (s *Scheduler) runOnce(sch *schedule) {
	defer sch.running.Store(false)

	sch.lastRunMu.Lock()
	sch.lastRun = time.Now()
	sch.lastRunMu.Unlock()

	deadline := sch.interval - deadlineEpsilon
	if sch.cronExpr != nil || deadline <= 0 {
		deadline = 0
	}

	taskScope := sch.scope
	if deadline > 0 {
		taskScope = sch.scope.WithDeadline("task:"+sch.name, deadline)
	}

	runStart := time.Now()
	if err := sch.task(taskScope); err != nil {
		s.log.Error("schedule %s task error: %v", sch.name, err)
		s.store.PublishAlert(proto.Alert{
			Kind:      "report_error",
			Payload:   map[string]string{"schedule": sch.name, "error": err.Error()},
			Severity:  proto.SeverityError,
			Timestamp: time.Now(),
		})
		if s.metrics != nil {
			s.metrics.RecordScheduleRun(sch.name, "error", time.Since(runStart))
		}
		return
	}

	if taskScope.Err() != nil {
		s.log.Warn("schedule %s task exceeded deadline", sch.name)
		s.store.PublishAlert(proto.Alert{
			Kind:      "report_error",
			Payload:   map[string]string{"schedule": sch.name, "error": "deadline exceeded"},
			Severity:  proto.SeverityWarning,
			Timestamp: time.Now(),
		})
		if s.metrics != nil {
			s.metrics.RecordScheduleRun(sch.name, "deadline_exceeded", time.Since(runStart))
		}
		return
	}

	if s.metrics != nil {
		s.metrics.RecordScheduleRun(sch.name, "ok", time.Since(runStart))
	}
}

// StopAll cancels every schedule's scope, stopping the scheduler.
func (s *Scheduler) StopAll() {
	for _, sch := range s.schedules {
		if sch.scope != nil {
			sch.scope.Cancel()
		}
	}
}

// List returns a snapshot of every registered schedule.
func (s *Scheduler) List() []Status {
	out := make([]Status, 0, len(s.schedules))
	for _, sch := range s.schedules {
		out = append(out, s.statusOf(sch))
	}
	return out
}

func (s *Scheduler) statusOf(sch *schedule) Status {
	sch.lastRunMu.Lock()
	lastRun := sch.lastRun
	sch.lastRunMu.Unlock()

	return Status{
		Name:     sch.name,
		Interval: sch.interval,
		CronExpr: sch.cronExpr != nil,
		LastRun:  lastRun,
		Enabled:  sch.enabled.Load(),
	}
}
