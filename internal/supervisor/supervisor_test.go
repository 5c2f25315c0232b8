package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"colony/pkg/clock"
	"colony/pkg/state"
)

// countingAgent runs until its scope is cancelled (or immediately fails
// failUntil times before succeeding), recording how many times Run was
// invoked.
type countingAgent struct {
	name      string
	runs      int32
	failUntil int32
}

func (a *countingAgent) Name() string { return a.name }

func (a *countingAgent) Run(scope *clock.Scope) error {
	n := atomic.AddInt32(&a.runs, 1)
	if n <= a.failUntil {
		return errors.New("boom")
	}
	<-scope.Context().Done()
	return nil
}

func newTestSupervisor(t *testing.T) (*Supervisor, *state.Store) {
	t.Helper()
	root := clock.NewRoot(context.Background(), "test")
	store := state.New(t.TempDir() + "/state.json")
	return New(root, store), store
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}

	if err := sup.Register("a", agent, false); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := sup.Register("a", agent, false); err == nil {
		t.Fatal("expected error registering duplicate name")
	}
}

func TestStartTransitionsToRunning(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)

	if err := sup.Start("a"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, err := sup.Status("a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.State == StateRunning {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("agent never reached Running")
}

func TestStartOnAlreadyRunningAgentIsNoOp(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)

	if err := sup.Start("a"); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		status, err := sup.Status("a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.State == StateRunning {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := sup.Start("a"); err != nil {
		t.Fatalf("second Start returned error instead of no-op: %v", err)
	}

	status, err := sup.Status("a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StateRunning {
		t.Fatalf("expected agent to remain Running, got %s", status.State)
	}
	if n := atomic.LoadInt32(&agent.runs); n != 1 {
		t.Fatalf("expected Run to be invoked once, got %d", n)
	}
}

func TestStopWaitsForExit(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)
	_ = sup.Start("a")

	time.Sleep(20 * time.Millisecond)

	if err := sup.Stop("a"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	status, err := sup.Status("a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StateStopped {
		t.Fatalf("expected Stopped, got %s", status.State)
	}
}

func TestStopForceKillsAfterGrace(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	sup.SetGrace(10 * time.Millisecond)

	agent := &unresponsiveAgent{}
	_ = sup.Register("a", agent, false)
	_ = sup.Start("a")
	time.Sleep(20 * time.Millisecond)

	if err := sup.Stop("a"); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	status, err := sup.Status("a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.LastError != "force_killed" {
		t.Fatalf("expected force_killed note, got %q", status.LastError)
	}
}

// unresponsiveAgent never returns, even after its scope is cancelled,
// to exercise the supervisor's grace-period force-kill path.
type unresponsiveAgent struct{}

func (a *unresponsiveAgent) Name() string { return "unresponsive" }
func (a *unresponsiveAgent) Run(scope *clock.Scope) error {
	select {}
}

func TestAutoRestartAfterError(t *testing.T) {
	sup, store := newTestSupervisor(t)
	agent := &countingAgent{name: "a", failUntil: 1}
	_ = sup.Register("a", agent, true)
	_ = sup.Start("a")

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		status, err := sup.Status("a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.State == StateRunning && status.Restarts >= 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, err := sup.Status("a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.Restarts < 1 {
		t.Fatalf("expected at least one restart, got %d", status.Restarts)
	}

	if store.Alerts.Len() == 0 {
		t.Fatal("expected an agent_error alert to be published")
	}
}

func TestBurstCircuitBreakerDisablesAutoRestart(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a", failUntil: 1 << 20} // always fails
	_ = sup.Register("a", agent, true)
	_ = sup.Start("a")

	// Backoff of 1s, 2s, 4s and 8s puts the fifth failure at about 15s.
	deadline := time.Now().Add(20 * time.Second)
	for time.Now().Before(deadline) {
		status, err := sup.Status("a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if !status.AutoRestart {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected burst circuit breaker to disable auto-restart")
}

func TestAwaitAllTimesOutOnStillRunningAgent(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)
	_ = sup.Start("a")
	time.Sleep(10 * time.Millisecond)

	if err := sup.AwaitAll(20 * time.Millisecond); err == nil {
		t.Fatal("expected AwaitAll to time out")
	}
}

func TestReportDispatchCooldownPausesAgent(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)
	_ = sup.Start("a")
	time.Sleep(10 * time.Millisecond)

	if err := sup.ReportDispatchCooldown("a", time.Hour); err != nil {
		t.Fatalf("ReportDispatchCooldown failed: %v", err)
	}

	status, err := sup.Status("a")
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.State != StatePaused {
		t.Fatalf("expected state %q, got %q", StatePaused, status.State)
	}
}

func TestReportDispatchCooldownAutoResumesAfterWindow(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	agent := &countingAgent{name: "a"}
	_ = sup.Register("a", agent, false)
	_ = sup.Start("a")
	time.Sleep(10 * time.Millisecond)

	if err := sup.ReportDispatchCooldown("a", 20*time.Millisecond); err != nil {
		t.Fatalf("ReportDispatchCooldown failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		status, err := sup.Status("a")
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if status.State == StateRunning {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected agent to auto-resume after cooldown window")
}

func TestReportDispatchCooldownUnknownAgentErrors(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	if err := sup.ReportDispatchCooldown("missing", time.Second); err == nil {
		t.Fatal("expected error for unregistered agent")
	}
}
