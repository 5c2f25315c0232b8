package state

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestWinsOverwritesByKey(t *testing.T) {
	c := NewLatestWins("market_snapshot", func(m MarketSnapshot) string { return m.key() }, nil)

	rev1, err := c.Put(MarketSnapshot{Symbol: "ETH", Price: 3000})
	require.NoError(t, err)

	rev2, err := c.Put(MarketSnapshot{Symbol: "ETH", Price: 3100})
	require.NoError(t, err)
	assert.Greater(t, rev2, rev1)

	got, ok := c.Get("ETH")
	require.True(t, ok)
	assert.Equal(t, 3100.0, got.Price)
	assert.Equal(t, 1, c.Len())
}

func TestLatestWinsValidateRejectsStateOverflow(t *testing.T) {
	validate := func(m MarketSnapshot) error {
		if m.Price < 0 {
			return fmt.Errorf("negative price")
		}
		return nil
	}
	c := NewLatestWins("market_snapshot", func(m MarketSnapshot) string { return m.key() }, validate)

	_, err := c.Put(MarketSnapshot{Symbol: "BTC", Price: -1})
	require.Error(t, err)
	var overflow *StateOverflowError
	assert.ErrorAs(t, err, &overflow)
}

func TestSequenceOldestEvictedByDefault(t *testing.T) {
	c := NewSequence[WhaleMovement]("whale_movement", 2, nil)

	_, _ = c.Put(WhaleMovement{ID: "1"})
	_, _ = c.Put(WhaleMovement{ID: "2"})
	_, _ = c.Put(WhaleMovement{ID: "3"})

	ids := make([]string, 0)
	for _, w := range c.List(nil, 0) {
		ids = append(ids, w.ID)
	}
	assert.ElementsMatch(t, []string{"2", "3"}, ids)
}

func TestSequenceEvictsLowestProfitFirst(t *testing.T) {
	c := NewSequence("arbitrage_opportunity", 2, func(a, b ArbitrageOpportunity) bool {
		return a.ProfitPercent < b.ProfitPercent
	})

	_, _ = c.Put(ArbitrageOpportunity{ID: "low", ProfitPercent: 0.5})
	_, _ = c.Put(ArbitrageOpportunity{ID: "high", ProfitPercent: 5.0})
	_, _ = c.Put(ArbitrageOpportunity{ID: "mid", ProfitPercent: 2.0})

	ids := make([]string, 0)
	for _, a := range c.List(nil, 0) {
		ids = append(ids, a.ID)
	}
	assert.ElementsMatch(t, []string{"high", "mid"}, ids)
}

func TestRingBufferOverwritesOldest(t *testing.T) {
	c := NewRing[WhaleMovement]("whale_movement", 2)

	_, _ = c.Put(WhaleMovement{ID: "1"})
	_, _ = c.Put(WhaleMovement{ID: "2"})
	_, _ = c.Put(WhaleMovement{ID: "3"})

	assert.Equal(t, 2, c.Len())
}

func TestSubscribeDropsOldestWhenFull(t *testing.T) {
	c := NewSequence[WhaleMovement]("whale_movement", 0, nil)
	ch, cancel := c.Subscribe(1)
	defer cancel()

	_, _ = c.Put(WhaleMovement{ID: "1"})
	_, _ = c.Put(WhaleMovement{ID: "2"})

	note := <-ch
	assert.Equal(t, uint64(2), note.Revision)
	assert.Equal(t, uint64(1), c.Dropped())
}

func TestListFilterAndLimit(t *testing.T) {
	c := NewSequence[WhaleMovement]("whale_movement", 0, nil)
	for i := 0; i < 5; i++ {
		_, _ = c.Put(WhaleMovement{ID: fmt.Sprintf("%d", i), Token: "ETH"})
	}
	_, _ = c.Put(WhaleMovement{ID: "other", Token: "BTC"})

	out := c.List(func(w WhaleMovement) bool { return w.Token == "ETH" }, 3)
	assert.Len(t, out, 3)
}
