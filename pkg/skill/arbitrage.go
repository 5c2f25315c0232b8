package skill

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"colony/pkg/proto"
	"colony/pkg/state"
)

// arbitrageKeywords is shared by both arbitrage skills (the simulated one
// adds two keywords of its own); otherwise only their Name and internal
// math differ — the split exists so
// the router and the Shared State Store always know which price source
// produced an ArbitrageOpportunity, rather than one handler silently
// branching between a real feed and a simulated one.
var arbitrageKeywords = []string{"arbitrage", "spread", "dex", "profit"}

// ArbitrageLive is the skill backing real-DEX-quoted arbitrage scans.
// The actual cross-DEX price-comparison math is out of scope; this is a
// wiring stub that records a placeholder ArbitrageOpportunity so the
// Skill Adapter Contract and the Shared State Store integration can be
// exercised end-to-end.
type ArbitrageLive struct{}

func (ArbitrageLive) Name() string { return "arbitrage-live" }

func (ArbitrageLive) Profile() proto.SkillProfile {
	return proto.SkillProfile{
		Name:     "arbitrage-live",
		Keywords: arbitrageKeywords,
		Priority: 9,
	}
}

func (ArbitrageLive) Handle(_ context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error) {
	opp := state.ArbitrageOpportunity{
		ID:            uuid.NewString(),
		Pair:          "ETH/USDC",
		Venues:        []string{"jediswap", "ekubo"},
		ProfitPercent: 0,
		ObservedAt:    time.Now(),
	}
	if _, err := caps.State.Arbitrage.Put(opp); err != nil {
		return Output{}, err
	}
	return Output{Text: fmt.Sprintf("live arbitrage scan recorded %s", opp.ID)}, nil
}

// ArbitrageSimulated is the skill backing CoinGecko-derived simulated
// spreads — never a live DEX quote. Kept as a distinct named skill (spec
// §9 redesign flag) rather than a branch inside ArbitrageLive, so a
// consumer reading the Arbitrage collection can always tell which source
// produced an entry from the RoutingDecision that triggered it.
type ArbitrageSimulated struct{}

func (ArbitrageSimulated) Name() string { return "arbitrage-simulated" }

func (ArbitrageSimulated) Profile() proto.SkillProfile {
	return proto.SkillProfile{
		Name:     "arbitrage-simulated",
		Keywords: append(append([]string{}, arbitrageKeywords...), "simulate", "simulated"),
		Priority: 6,
	}
}

func (ArbitrageSimulated) Handle(_ context.Context, decision proto.RoutingDecision, caps Capabilities) (Output, error) {
	opp := state.ArbitrageOpportunity{
		ID:            uuid.NewString(),
		Pair:          "ETH/USDC",
		Venues:        []string{"simulated"},
		ProfitPercent: 0,
		ObservedAt:    time.Now(),
	}
	if _, err := caps.State.Arbitrage.Put(opp); err != nil {
		return Output{}, err
	}
	return Output{Text: fmt.Sprintf("simulated arbitrage scan recorded %s", opp.ID)}, nil
}
