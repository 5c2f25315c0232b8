package skill

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"colony/pkg/proto"
	"colony/pkg/state"
)

// priceTokenPattern and priceTickerPattern back PriceCheck's parameter
// extraction, grounded on router.py's _extract_params PRICES branch
// (`\$([A-Za-z]+)` plus a fixed ticker alternation).
var (
	priceTokenPattern  = regexp.MustCompile(`(?i)\$([A-Za-z]+)`)
	priceTickerPattern = regexp.MustCompile(`(?i)\b(btc|eth|sol|strk|avax|matic|ldo|crv|aave)\b`)
)

// PriceCheck is a demonstration skill pairing multi-lingual keyword
// matching with the router's parameter-extraction hook. Its SkillProfile
// mixes Russian and English keywords the same way router.py's
// SKILL_CONFIGS[PRICES] does ("цена"/"price", "курс"/rate) — a
// demonstration of keyword-list composition, not a language feature the
// router itself understands.
type PriceCheck struct{}

func (PriceCheck) Name() string { return "price-check" }

func (PriceCheck) Profile() proto.SkillProfile {
	return proto.SkillProfile{
		Name: "price-check",
		Keywords: []string{
			"price", "цена", "курс", "btc", "eth", "sol", "token", "coin",
			"market", "pump", "dump",
		},
		Patterns: []string{`\$([A-Za-z]+)`, `\b(btc|eth|sol|strk|avax|matic)\b`},
		Priority: 10,
		Extract:  extractPriceParams,
	}
}

// extractPriceParams pulls every `$TOKEN` symbol and bare ticker mention
// out of the raw message, deduplicating case-insensitively.
func extractPriceParams(_, raw string) map[string]string {
	seen := make(map[string]struct{})
	var tokens []string
	add := func(tok string) {
		key := strings.ToUpper(tok)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		tokens = append(tokens, key)
	}
	for _, m := range priceTokenPattern.FindAllStringSubmatch(raw, -1) {
		add(m[1])
	}
	for _, m := range priceTickerPattern.FindAllStringSubmatch(raw, -1) {
		add(m[1])
	}
	return map[string]string{
		"tokens": strings.Join(tokens, ","),
		"action": "check",
	}
}

func (PriceCheck) Handle(_ context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error) {
	tokens := decision.Params["tokens"]
	if tokens == "" {
		tokens = "BTC"
	}
	symbol := strings.Split(tokens, ",")[0]
	snap := state.MarketSnapshot{
		Symbol:    symbol,
		Price:     0,
		Volume24h: 0,
		Source:    "stub",
		UpdatedAt: time.Now(),
	}
	if _, err := caps.State.Market.Put(snap); err != nil {
		return Output{}, err
	}
	return Output{Text: fmt.Sprintf("price check recorded for %s", symbol)}, nil
}

// researchStripPattern strips the router.py RESEARCH branch's leading
// question/command phrasing (English and Russian) so the remaining text
// is the actual search query.
var researchStripPattern = regexp.MustCompile(`(?i)\b(what is|research|search)\b|что такое`)

// ResearchLookup is a demonstration skill backing query-text extraction:
// the router strips instructional phrasing from the message, leaving a
// bare topic string for the skill to act on.
type ResearchLookup struct{}

func (ResearchLookup) Name() string { return "research-lookup" }

func (ResearchLookup) Profile() proto.SkillProfile {
	return proto.SkillProfile{
		Name: "research-lookup",
		Keywords: []string{
			"research", "исследуй", "find", "search", "news", "анализ",
			"analysis", "отчет", "what is", "что такое",
		},
		Patterns: []string{`\b(what is|что такое)\b.*`},
		Priority: 8,
		Extract:  extractResearchParams,
	}
}

func extractResearchParams(_, raw string) map[string]string {
	query := strings.TrimSpace(researchStripPattern.ReplaceAllString(raw, ""))
	return map[string]string{"query": query, "action": "search"}
}

func (ResearchLookup) Handle(_ context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error) {
	query := decision.Params["query"]
	report := state.ResearchReport{
		ID:        uuid.NewString(),
		Topic:     query,
		Summary:   "",
		CreatedAt: time.Now(),
	}
	if _, err := caps.State.Research.Put(report); err != nil {
		return Output{}, err
	}
	return Output{Text: fmt.Sprintf("research report queued for %q", query)}, nil
}

// ContentGenerator is a demonstration skill backing topic/format
// extraction: the whole message becomes the topic, and the format
// defaults to "post" unless the message names a shorter form.
type ContentGenerator struct{}

func (ContentGenerator) Name() string { return "content-generator" }

func (ContentGenerator) Profile() proto.SkillProfile {
	return proto.SkillProfile{
		Name: "content-generator",
		Keywords: []string{
			"post", "пост", "tweet", "твит", "write", "напиши", "thread",
			"тред", "content", "контент", "generate",
		},
		Patterns: []string{`(post|tweet|thread|content)`, `(write|generate|create)`},
		Priority: 8,
		Extract:  extractContentParams,
	}
}

func extractContentParams(lowered, raw string) map[string]string {
	format := "post"
	if strings.Contains(lowered, "tweet") || strings.Contains(lowered, "твит") {
		format = "tweet"
	} else if strings.Contains(lowered, "thread") || strings.Contains(lowered, "тред") {
		format = "thread"
	}
	return map[string]string{"topic": raw, "format": format, "action": "generate"}
}

func (ContentGenerator) Handle(_ context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error) {
	piece := state.ContentPiece{
		ID:        uuid.NewString(),
		Format:    decision.Params["format"],
		Body:      "",
		CreatedAt: time.Now(),
	}
	if _, err := caps.State.Content.Put(piece); err != nil {
		return Output{}, err
	}
	return Output{Text: fmt.Sprintf("%s queued for topic %q", piece.Format, decision.Params["topic"])}, nil
}
