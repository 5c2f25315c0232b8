// Command colonyctl is the runtime's single administrative entry point
// (spec §6): status, agent lifecycle control, schedule inspection, state
// file management, and a dry-run router test. Grounded on the teacher's
// cmd/agentctl: os.Args-position subcommand dispatch through a plain
// switch, and Fprintf-to-stderr usage text rather than a CLI framework.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"colony/pkg/clock"
	"colony/pkg/colonyerr"
	"colony/pkg/config"
	"colony/pkg/metrics"
	"colony/pkg/orchestrator"
	"colony/pkg/skill"
)

const (
	exitOK      = 0
	exitUsage   = 2
	exitRuntime = 3
	exitLimited = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return exitUsage
	}

	cfg := config.Load()
	root := clock.NewRoot(nil, "colonyctl")
	defer root.Cancel()

	facade, err := orchestrator.New(root, *cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitRuntime
	}
	registerDefaultSkills(facade)

	switch args[0] {
	case "status":
		return cmdStatus(facade)
	case "agents":
		return cmdAgents(facade, args[1:])
	case "schedules":
		return cmdSchedules(facade, args[1:])
	case "state":
		return cmdState(facade, args[1:])
	case "route":
		return cmdRoute(facade, args[1:])
	case "metrics":
		return cmdMetrics(cfg, args[1:])
	default:
		fmt.Fprintf(os.Stderr, "colonyctl: unknown command %q\n\n", args[0])
		printUsage()
		return exitUsage
	}
}

// registerDefaultSkills wires the runtime's built-in skills so "route
// --test" and "agents list" have something concrete to exercise. A
// deployment embedding the Facade in a long-lived process registers its
// own skills and agents instead; this standalone CLI wires the default
// set each invocation since it does not share state with another process
// beyond the persisted state file.
func registerDefaultSkills(f *orchestrator.Facade) {
	f.RegisterSkill(skill.ArbitrageLive{})
	f.RegisterSkill(skill.ArbitrageSimulated{})
	f.RegisterSkill(skill.PriceCheck{})
	f.RegisterSkill(skill.ResearchLookup{})
	f.RegisterSkill(skill.ContentGenerator{})
}

func cmdStatus(f *orchestrator.Facade) int {
	fmt.Printf("agents:    %d\n", len(f.Supervisor.StatusAll()))
	fmt.Printf("schedules: %d\n", len(f.Scheduler.List()))
	fmt.Printf("skills:    %d\n", len(f.Skills.Profiles()))
	fmt.Printf("market:       %d\n", f.State.Market.Len())
	fmt.Printf("arbitrage:    %d\n", f.State.Arbitrage.Len())
	fmt.Printf("whales:       %d\n", f.State.Whales.Len())
	fmt.Printf("research:     %d\n", f.State.Research.Len())
	fmt.Printf("content:      %d\n", f.State.Content.Len())
	fmt.Printf("alerts:       %d\n", f.State.Alerts.Len())
	return exitOK
}

func cmdAgents(f *orchestrator.Facade, args []string) int {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "colonyctl: expected 'agents {start|stop|list} [name]'\n\n")
		printUsage()
		return exitUsage
	}

	switch args[0] {
	case "list":
		for _, st := range f.Supervisor.StatusAll() {
			fmt.Printf("%-20s state=%-10s restarts=%d auto_restart=%v last_error=%q\n",
				st.Name, st.State, st.Restarts, st.AutoRestart, st.LastError)
		}
		return exitOK
	case "start", "stop":
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "colonyctl: expected 'agents %s <name>'\n\n", args[0])
			printUsage()
			return exitUsage
		}
		name := args[1]
		var err error
		if args[0] == "start" {
			err = f.Supervisor.Start(name)
		} else {
			err = f.Supervisor.Stop(name)
		}
		return reportErr(err)
	default:
		fmt.Fprintf(os.Stderr, "colonyctl: unknown agents subcommand %q\n\n", args[0])
		printUsage()
		return exitUsage
	}
}

func cmdSchedules(f *orchestrator.Facade, args []string) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintf(os.Stderr, "colonyctl: expected 'schedules list'\n\n")
		printUsage()
		return exitUsage
	}

	for _, st := range f.Scheduler.List() {
		kind := "interval"
		if st.CronExpr {
			kind = "cron"
		}
		fmt.Printf("%-20s kind=%-8s interval=%s enabled=%v last_run=%s\n",
			st.Name, kind, st.Interval, st.Enabled, st.LastRun.Format("2006-01-02T15:04:05Z"))
	}
	return exitOK
}

func cmdState(f *orchestrator.Facade, args []string) int {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, "colonyctl: expected 'state {save|load|clear}'\n\n")
		printUsage()
		return exitUsage
	}

	switch args[0] {
	case "save":
		return reportErr(f.State.Save())
	case "load":
		return reportErr(f.State.Load())
	case "clear":
		if err := os.Remove(f.StateFilePath()); err != nil && !os.IsNotExist(err) {
			return reportErr(err)
		}
		fmt.Println("state file cleared")
		return exitOK
	default:
		fmt.Fprintf(os.Stderr, "colonyctl: unknown state subcommand %q\n\n", args[0])
		printUsage()
		return exitUsage
	}
}

func cmdRoute(f *orchestrator.Facade, args []string) int {
	if len(args) < 2 || args[0] != "--test" {
		fmt.Fprintf(os.Stderr, "colonyctl: expected 'route --test <text>'\n\n")
		printUsage()
		return exitUsage
	}

	decision := f.Router.Route(args[1])
	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitRuntime
	}
	fmt.Println(string(out))
	return exitOK
}

// cmdMetrics queries a remote Prometheus server for one skill's
// aggregated routing/tool activity. Requires PROMETHEUS_URL to be set —
// this runtime's own /metrics registry (Facade.Registry) has no built-in
// scrape server, so colonyctl always talks to an external Prometheus
// rather than the in-process counters directly.
func cmdMetrics(cfg *config.Config, args []string) int {
	if len(args) < 2 || args[0] != "--skill" {
		fmt.Fprintf(os.Stderr, "colonyctl: expected 'metrics --skill <name>'\n\n")
		printUsage()
		return exitUsage
	}
	if cfg.PrometheusURL == "" {
		fmt.Fprintf(os.Stderr, "colonyctl: PROMETHEUS_URL is not configured\n")
		return exitRuntime
	}

	q, err := metrics.NewQueryService(cfg.PrometheusURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitRuntime
	}

	stats, err := q.GetSkillMetrics(context.Background(), args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitRuntime
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitRuntime
	}
	fmt.Println(string(out))
	return exitOK
}

func reportErr(err error) int {
	if err == nil {
		return exitOK
	}
	if colonyerr.Is(err, colonyerr.KindRateLimited) {
		fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
		return exitLimited
	}
	fmt.Fprintf(os.Stderr, "colonyctl: %v\n", err)
	return exitRuntime
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "colonyctl - Agent Orchestration & Routing Runtime admin CLI\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s status\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s agents {start|stop|list} [name]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s schedules list\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s state {save|load|clear}\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s route --test <text>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s metrics --skill <name>\n\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Exit codes: 0 success, 2 usage, 3 runtime error, 4 rate-limited.\n")
}
