package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"colony/pkg/colonyerr"
	"colony/pkg/config"
	"colony/pkg/limiter"
)

type stubClient struct {
	model string
	calls int
}

func (s *stubClient) ModelName() string { return s.model }

func (s *stubClient) Complete(_ context.Context, _ CompletionRequest) (CompletionResponse, error) {
	s.calls++
	return CompletionResponse{Content: "ok"}, nil
}

func testLimiter(t *testing.T, model string, maxTokens int) *limiter.Limiter {
	t.Helper()
	cfg := &config.Config{
		Models: map[string]config.Model{
			model: {Name: model, MaxTokensPerMinute: maxTokens, MaxConcurrentAgents: 1, DailyBudgetUSD: 100},
		},
	}
	return limiter.NewLimiter(cfg)
}

func TestBudgetedClientAllowsCallsWithinBudget(t *testing.T) {
	inner := &stubClient{model: "claude-sonnet-4-20250514"}
	lim := testLimiter(t, inner.model, 1000)
	client := NewBudgetedClient(inner, lim, nil)

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{UserMessage("hi")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestBudgetedClientRejectsOverBudgetCall(t *testing.T) {
	inner := &stubClient{model: "claude-sonnet-4-20250514"}
	lim := testLimiter(t, inner.model, 10)
	client := NewBudgetedClient(inner, lim, nil)

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages:  []Message{UserMessage("this message is long enough to exceed the tiny token budget")},
		MaxTokens: 4096,
	})
	require.Error(t, err)
	assert.True(t, colonyerr.Is(err, colonyerr.KindRateLimited))
	assert.Equal(t, 0, inner.calls)
}

func TestBudgetedClientSkipsEnforcementForUnconfiguredModel(t *testing.T) {
	inner := &stubClient{model: "some-unconfigured-model"}
	lim := testLimiter(t, "a-different-model", 10)
	client := NewBudgetedClient(inner, lim, nil)

	_, err := client.Complete(context.Background(), CompletionRequest{
		Messages: []Message{UserMessage("hello")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
