// Package skill defines the Skill Adapter Contract (spec §4.8): the
// narrow interface the Orchestrator Facade dispatches to once the Intent
// Router has chosen a target, and the capability bundle a skill receives
// instead of reaching for globals.
package skill

import (
	"context"

	"colony/pkg/dispatch"
	"colony/pkg/proto"
	"colony/pkg/state"
	"colony/pkg/tools"
)

// Capabilities is the set of non-owning handles a Skill's Handle may use.
// A Skill must not retain these beyond the call or reach for any global
// instead.
type Capabilities struct {
	State      *state.Store
	Dispatcher *dispatch.Dispatcher
	Tools      *tools.Catalog
}

// Output is what a Skill returns to the orchestrator after handling a
// routed request.
type Output struct {
	Text  string
	Error string
}

// Skill is the uniform contract the Supervisor/Router/Orchestrator treat
// every registered capability through. Handle must be reentrant unless
// the Skill internally serialises itself — the runtime may invoke it
// concurrently per the concurrency model (spec §5).
type Skill interface {
	// Name is the skill's unique identifier, matching its SkillProfile's
	// Name as registered with the router.
	Name() string

	// Profile is the static descriptor registered with the router at
	// startup.
	Profile() proto.SkillProfile

	// Handle services one routed request. ctx carries cancellation for
	// the call's suspension points (state reads, dispatcher calls, tool
	// invocations, LLM calls).
	Handle(ctx context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error)
}

// Registry is a simple name-keyed collection of Skills, used by the
// Orchestrator Facade to look up the skill a RoutingDecision named and by
// startup wiring to register every SkillProfile with the Router in one
// pass.
type Registry struct {
	skills map[string]Skill
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{skills: make(map[string]Skill)}
}

// Register adds a skill, keyed by its own Name(). Re-registering the same
// name overwrites the previous entry — callers that need uniqueness
// enforcement should check Get first.
func (r *Registry) Register(s Skill) {
	r.skills[s.Name()] = s
}

// Get looks up a skill by name.
func (r *Registry) Get(name string) (Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Profiles returns every registered skill's SkillProfile, in registration
// order is not guaranteed — callers that need a stable router registration
// order should sort by Name.
func (r *Registry) Profiles() []proto.SkillProfile {
	out := make([]proto.SkillProfile, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s.Profile())
	}
	return out
}
