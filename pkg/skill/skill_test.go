package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony/pkg/proto"
	"colony/pkg/state"
)

func TestRegistryGetReturnsRegisteredSkill(t *testing.T) {
	r := NewRegistry()
	r.Register(ArbitrageLive{})

	s, ok := r.Get("arbitrage-live")
	require.True(t, ok)
	assert.Equal(t, "arbitrage-live", s.Name())
}

func TestRegistryProfilesIncludesEveryRegisteredSkill(t *testing.T) {
	r := NewRegistry()
	r.Register(ArbitrageLive{})
	r.Register(ArbitrageSimulated{})

	profiles := r.Profiles()
	assert.Len(t, profiles, 2)
}

func TestArbitrageLiveAndSimulatedAreDistinctSkills(t *testing.T) {
	live := ArbitrageLive{}
	sim := ArbitrageSimulated{}
	assert.NotEqual(t, live.Name(), sim.Name())
}

func TestArbitrageLiveHandleRecordsOpportunity(t *testing.T) {
	store := state.New(t.TempDir() + "/state.json")
	caps := Capabilities{State: store}

	out, err := ArbitrageLive{}.Handle(context.Background(), proto.RoutingDecision{Skill: "arbitrage-live"}, caps)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 1, store.Arbitrage.Len())
}

func TestArbitrageSimulatedHandleRecordsOpportunity(t *testing.T) {
	store := state.New(t.TempDir() + "/state.json")
	caps := Capabilities{State: store}

	out, err := ArbitrageSimulated{}.Handle(context.Background(), proto.RoutingDecision{Skill: "arbitrage-simulated"}, caps)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 1, store.Arbitrage.Len())
}
