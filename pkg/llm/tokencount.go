package llm

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter estimates how many tokens a prompt will consume before it
// is sent to a provider, so the per-model token budget (pkg/limiter) can
// be checked ahead of the call rather than after the fact.
type TokenCounter struct {
	codec tokenizer.Codec
}

// NewTokenCounter returns a counter using GPT-4's encoding for every
// model: Anthropic/Gemini/Ollama expose no public tokenizer, so GPT-4's
// BPE is used as an approximation across providers, matching the
// teacher's own cross-model fallback.
func NewTokenCounter() (*TokenCounter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("llm: create tokenizer codec: %w", err)
	}
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns text's token count, falling back to a character
// estimate (4 chars ≈ 1 token) if the codec is unavailable or errors.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		return len(text) / 4
	}
	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
