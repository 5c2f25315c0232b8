// Package router implements the Intent Router (spec §4.1): a keyword and
// regex-pattern scorer that maps an inbound Message to the skill best
// suited to handle it, always producing a decision — a message whose best
// score falls below the confidence floor routes to the reserved general
// skill.
package router

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"colony/pkg/metrics"
	"colony/pkg/proto"
)

const (
	keywordScore      = 0.10
	wholeWordBonus    = 0.05
	patternScore      = 0.20
	priorityWeight    = 0.01
	fallbackFloor     = 0.10
	confidenceFloor   = 0.10
	generalConfidence = 0.50
)

// compiledProfile pairs a registered SkillProfile with its pre-compiled
// whole-word and pattern regexes, built once at Register time rather than
// on every Route call.
type compiledProfile struct {
	profile    proto.SkillProfile
	wholeWords []*regexp.Regexp
	patterns   []*regexp.Regexp
}

// Router scores inbound messages against a set of registered skill
// profiles and returns the best match. A Router is not safe for
// concurrent Register calls once Route has started being called from
// other goroutines; Register is intended to run during startup wiring.
type Router struct {
	profiles []compiledProfile
	metrics  *metrics.Recorder
}

// New returns an empty Router. Skills register themselves via Register
// before the router starts serving Route calls.
func New() *Router {
	return &Router{}
}

// SetMetrics attaches a Recorder that every Route decision is reported
// to. Optional — a nil Recorder (the default) makes recording a no-op.
func (r *Router) SetMetrics(m *metrics.Recorder) {
	r.metrics = m
}

// Register compiles and adds a skill profile to the router. Invalid regex
// patterns are skipped rather than rejecting the whole profile, matching
// the reference router's tolerance for a single bad pattern.
func (r *Router) Register(profile proto.SkillProfile) {
	cp := compiledProfile{profile: profile}

	for _, kw := range profile.Keywords {
		re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(kw) + `\b`)
		if err != nil {
			continue
		}
		cp.wholeWords = append(cp.wholeWords, re)
	}

	for _, pat := range profile.Patterns {
		re, err := regexp.Compile(`(?i)` + pat)
		if err != nil {
			continue
		}
		cp.patterns = append(cp.patterns, re)
	}

	r.profiles = append(r.profiles, cp)
}

// scoredProfile is an internal ranking entry.
type scoredProfile struct {
	profile compiledProfile
	score   float64
}

// Route scores the message against every registered profile and returns
// the winning RoutingDecision. An empty message, or one that scores below
// the confidence floor on every profile, routes to proto.GeneralSkill at
// fixed confidence 0.50 rather than failing.
func (r *Router) Route(message string) proto.RoutingDecision {
	decision := r.route(message)
	if r.metrics != nil {
		r.metrics.RecordRoute(decision.Skill, decision.Confidence)
	}
	return decision
}

func (r *Router) route(message string) proto.RoutingDecision {
	now := time.Now()

	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		return r.general(message, now, "empty message")
	}

	lowered := strings.ToLower(trimmed)

	ranked := r.score(message, lowered)
	if len(ranked) == 0 {
		return r.general(message, now, "no registered skills")
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	best := ranked[0]
	if best.score < confidenceFloor {
		return r.general(message, now, fmt.Sprintf("low score (%.2f)", best.score))
	}

	var fallback string
	if len(ranked) > 1 && ranked[1].score > fallbackFloor {
		fallback = ranked[1].profile.profile.Name
	}

	confidence := best.score
	if confidence > 1.0 {
		confidence = 1.0
	}

	return proto.RoutingDecision{
		Skill:      best.profile.profile.Name,
		Confidence: confidence,
		Params:     r.extract(best.profile, lowered, message),
		Fallback:   fallback,
		Reasoning:  r.reasoning(best, lowered),
		Timestamp:  now,
	}
}

// score computes a ranked score for every registered profile against the
// message. Keyword presence contributes keywordScore, a whole-word match
// of that same keyword adds wholeWordBonus, each regex pattern match adds
// patternScore per occurrence, and the profile's declared Priority adds a
// flat priorityWeight-per-point bonus so more specific skills win ties.
func (r *Router) score(raw, lowered string) []scoredProfile {
	ranked := make([]scoredProfile, 0, len(r.profiles))

	for _, cp := range r.profiles {
		var score float64

		for i, kw := range cp.profile.Keywords {
			if !strings.Contains(lowered, strings.ToLower(kw)) {
				continue
			}
			score += keywordScore
			if i < len(cp.wholeWords) && cp.wholeWords[i].MatchString(lowered) {
				score += wholeWordBonus
			}
		}

		for _, pat := range cp.patterns {
			score += float64(len(pat.FindAllString(raw, -1))) * patternScore
		}

		score += float64(cp.profile.Priority) * priorityWeight

		ranked = append(ranked, scoredProfile{profile: cp, score: score})
	}

	return ranked
}

// extract runs the skill's declared ExtractFunc, if any, and always
// carries the raw message through under "raw_message". A nil or panicking
// extractor never aborts routing — it simply contributes no extra params.
func (r *Router) extract(cp compiledProfile, lowered, raw string) (params map[string]string) {
	params = map[string]string{"raw_message": raw}
	if cp.profile.Extract == nil {
		return params
	}

	defer func() {
		if recover() != nil {
			// extraction is best-effort; a panicking extractor just yields
			// the raw message with no additional params
		}
	}()

	for k, v := range cp.profile.Extract(lowered, raw) {
		params[k] = v
	}
	return params
}

// reasoning builds a short human-readable explanation naming the winning
// skill, its score, and up to three of its matched keywords.
func (r *Router) reasoning(best scoredProfile, lowered string) string {
	var sample []string
	for _, kw := range best.profile.profile.Keywords {
		if len(sample) >= 3 {
			break
		}
		if !strings.Contains(lowered, strings.ToLower(kw)) {
			continue
		}
		sample = append(sample, "keyword:"+kw)
	}
	return fmt.Sprintf("matched %s (conf: %.2f) — %s", best.profile.profile.Name, best.score, strings.Join(sample, ", "))
}

// general returns the reserved fallback decision used whenever no profile
// clears the confidence floor.
func (r *Router) general(message string, now time.Time, reason string) proto.RoutingDecision {
	return proto.RoutingDecision{
		Skill:      proto.GeneralSkill,
		Confidence: generalConfidence,
		Params:     map[string]string{"raw_message": message},
		Reasoning:  reason,
		Timestamp:  now,
	}
}
