package llm

import (
	"fmt"
	"strings"

	"colony/pkg/config"
	"colony/pkg/llm/anthropic"
	"colony/pkg/llm/genai"
	"colony/pkg/llm/ollama"
	"colony/pkg/llm/openai"
)

// NewClient builds the Client selected by cfg.LLMModel, defaulting to the
// Anthropic provider. Ollama uses cfg.LLMEndpoint as its server URL instead
// of an API key, since it runs self-hosted rather than against a cloud API.
func NewClient(cfg *config.Config) (Client, error) {
	switch provider(cfg.LLMModel) {
	case "anthropic":
		return anthropic.New(cfg.LLMAPIKey, cfg.LLMModel), nil
	case "openai":
		return openai.New(cfg.LLMAPIKey, cfg.LLMModel), nil
	case "genai":
		return genai.New(cfg.LLMAPIKey, cfg.LLMModel), nil
	case "ollama":
		endpoint := cfg.LLMEndpoint
		if endpoint == "" {
			endpoint = "http://localhost:11434"
		}
		return ollama.New(endpoint, cfg.LLMModel), nil
	default:
		return nil, fmt.Errorf("llm: no provider recognized for model %q", cfg.LLMModel)
	}
}

// provider infers the backing SDK from a model name's conventional prefix.
func provider(model string) string {
	lower := strings.ToLower(model)
	switch {
	case strings.HasPrefix(lower, "claude"):
		return "anthropic"
	case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "o3"), strings.HasPrefix(lower, "o4"):
		return "openai"
	case strings.HasPrefix(lower, "gemini"):
		return "genai"
	default:
		return "ollama"
	}
}
