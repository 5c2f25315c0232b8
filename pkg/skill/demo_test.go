package skill

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony/pkg/proto"
	"colony/pkg/state"
)

func TestExtractPriceParamsCollectsSymbolsAndTickers(t *testing.T) {
	params := extractPriceParams("", "what's $STRK doing vs eth today?")
	assert.Contains(t, params["tokens"], "STRK")
	assert.Contains(t, params["tokens"], "ETH")
	assert.Equal(t, "check", params["action"])
}

func TestPriceCheckHandleRecordsMarketSnapshot(t *testing.T) {
	store := state.New(t.TempDir() + "/state.json")
	caps := Capabilities{State: store}

	decision := proto.RoutingDecision{Skill: "price-check", Params: map[string]string{"tokens": "ETH"}}
	out, err := PriceCheck{}.Handle(context.Background(), decision, caps)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 1, store.Market.Len())
}

func TestExtractResearchParamsStripsInstructionalPhrasing(t *testing.T) {
	params := extractResearchParams("", "what is Starknet?")
	assert.Equal(t, "Starknet?", params["query"])
	assert.Equal(t, "search", params["action"])
}

func TestResearchLookupHandleRecordsReport(t *testing.T) {
	store := state.New(t.TempDir() + "/state.json")
	caps := Capabilities{State: store}

	decision := proto.RoutingDecision{Skill: "research-lookup", Params: map[string]string{"query": "starknet tvl"}}
	out, err := ResearchLookup{}.Handle(context.Background(), decision, caps)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 1, store.Research.Len())
}

func TestExtractContentParamsPicksShortestNamedFormat(t *testing.T) {
	assert.Equal(t, "tweet", extractContentParams("write a tweet about strk", "write a tweet about strk")["format"])
	assert.Equal(t, "thread", extractContentParams("напиши тред", "напиши тред")["format"])
	assert.Equal(t, "post", extractContentParams("write a post", "write a post")["format"])
}

func TestContentGeneratorHandleRecordsPiece(t *testing.T) {
	store := state.New(t.TempDir() + "/state.json")
	caps := Capabilities{State: store}

	decision := proto.RoutingDecision{Skill: "content-generator", Params: map[string]string{"format": "tweet", "topic": "strk"}}
	out, err := ContentGenerator{}.Handle(context.Background(), decision, caps)
	require.NoError(t, err)
	assert.NotEmpty(t, out.Text)
	assert.Equal(t, 1, store.Content.Len())
}
