package llm

import (
	"context"
	"errors"

	"colony/pkg/colonyerr"
	"colony/pkg/limiter"
)

// BudgetedClient wraps a Client with the per-model token/budget limiter
// (pkg/limiter.Limiter), so every Complete call is checked against the
// model's tokens-per-minute ceiling before it reaches the provider; the
// daily-USD budget is not checked here. Grounded on the teacher's TokenCounter/Limiter pairing in
// pkg/utils and pkg/ratelimit, composed here as an explicit decorator
// rather than a global check so a caller can choose to bypass it (tests
// construct a bare provider Client directly).
type BudgetedClient struct {
	inner   Client
	limiter *limiter.Limiter
	counter *TokenCounter
	model   string
}

// NewBudgetedClient wraps inner with token-budget enforcement. counter
// may be nil, in which case a character-count estimate is used.
func NewBudgetedClient(inner Client, lim *limiter.Limiter, counter *TokenCounter) *BudgetedClient {
	return &BudgetedClient{inner: inner, limiter: lim, counter: counter, model: inner.ModelName()}
}

func (b *BudgetedClient) ModelName() string { return b.model }

// Complete estimates the request's token cost from its message contents,
// reserves that many tokens against the model's per-minute budget, and
// only then calls through to the wrapped Client. A budget rejection is
// returned as a colonyerr.KindRateLimited error without ever reaching the
// provider. A model with no configured limit (pkg/config.Config.Models
// carries no entry for it) enforces nothing — budget enforcement is
// opt-in per model, not a blanket requirement every deployment must
// configure.
func (b *BudgetedClient) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	tokens := b.estimateTokens(req)
	if err := b.limiter.Reserve(b.model, tokens); err != nil {
		if errors.Is(err, limiter.ErrRateLimit) {
			return CompletionResponse{}, colonyerr.Newf(colonyerr.KindRateLimited, component,
				"model %q token budget exceeded: %v", b.model, err)
		}
		// any other error (e.g. "model not configured") means no budget
		// is registered for this model, so enforcement is skipped.
	}
	return b.inner.Complete(ctx, req)
}

func (b *BudgetedClient) estimateTokens(req CompletionRequest) int {
	var total int
	for _, msg := range req.Messages {
		total += b.counter.CountTokens(msg.Content)
	}
	if req.MaxTokens > 0 {
		total += req.MaxTokens
	}
	return total
}
