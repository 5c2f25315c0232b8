// Package proto holds the shared data-model types passed between the
// runtime's components: the gateway-facing Message, the router's
// SkillProfile/RoutingDecision pair, and the Alert envelope published to
// the Shared State Store.
package proto

import "time"

// Message is an inbound request unit. It is created by the gateway,
// passed by value into the router, and is immutable thereafter — nothing
// downstream may mutate a Message in place.
type Message struct {
	Body        string            `json:"body"`
	UserID      string            `json:"user_id,omitempty"`
	ChatID      string            `json:"chat_id,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
	Attachments []string          `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ExtractFunc is a skill-declared best-effort parameter extraction
// routine. Extraction failures never fail routing; a failing ExtractFunc
// should return a nil map rather than an error that aborts the route.
type ExtractFunc func(lowered, raw string) map[string]string

// SkillProfile is the static descriptor a skill registers with the
// router at startup. Keywords and Patterns contribute to the match
// score (§4.1); Priority breaks ties between otherwise-equal scores.
type SkillProfile struct {
	Name     string
	Keywords []string
	Patterns []string
	Priority int
	Extract  ExtractFunc
}

// RoutingDecision is produced by the router for every call to Route,
// never "no decision" — a message whose best profile score falls below
// the router's confidence floor still routes to the reserved general
// skill.
type RoutingDecision struct {
	Skill      string
	Confidence float64
	Params     map[string]string
	Fallback   string
	Reasoning  string
	Timestamp  time.Time
}

// Severity classifies an Alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Alert is published to the Alert collection and broadcast to
// subscribers. Publishing an Alert never blocks the publisher.
type Alert struct {
	Kind      string
	Payload   any
	Severity  Severity
	Timestamp time.Time
}

// GeneralSkill is the reserved fallback skill name the router returns
// when no profile scores above the confidence floor.
const GeneralSkill = "general"
