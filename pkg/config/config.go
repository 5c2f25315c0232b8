// Package config loads the runtime's environment-variable surface (§6)
// and the declarative YAML documents (skill profiles, schedules) it is
// handed at startup. Mirrors the teacher's value-based, mutex-guarded
// global access pattern, trimmed to the core's env surface.
package config

import (
	"os"
	"strconv"
	"sync"
)

// Model carries the per-LLM-model budget the rate limiter enforces.
// Kept from the teacher's config.Model almost verbatim since it matches
// §4.2's model-limit concern directly.
type Model struct {
	Name                string  `json:"name" yaml:"name"`
	MaxTokensPerMinute  int     `json:"max_tokens_per_minute" yaml:"max_tokens_per_minute"`
	MaxConcurrentAgents int     `json:"max_concurrent_agents" yaml:"max_concurrent_agents"`
	DailyBudgetUSD      float64 `json:"daily_budget_usd" yaml:"daily_budget_usd"`
}

// Config is the runtime's full environment-derived configuration.
// Get() returns a copy by value; Load() returns a pointer to the shared
// instance itself, so a write through that pointer is seen by later Get()
// calls.
type Config struct {
	StateFile               string
	ShutdownGraceSeconds    int
	DispatchCacheTTLSeconds int
	LLMEndpoint             string
	LLMAPIKey               string
	LLMModel                string
	RateLimitPerMinute      int
	PrometheusURL           string
	Models                  map[string]Model
}

//nolint:gochecknoglobals // intentional singleton, mirrors the teacher's config package
var (
	current *Config
	mu      sync.RWMutex
)

// Load reads the environment and populates the global config instance.
// Safe to call more than once (e.g. in tests); each call replaces the
// prior instance atomically.
func Load() *Config {
	cfg := &Config{
		StateFile:               getString("STATE_FILE", "./state.json"),
		ShutdownGraceSeconds:    getInt("SHUTDOWN_GRACE_SECONDS", 10),
		DispatchCacheTTLSeconds: getInt("DISPATCH_CACHE_TTL_SECONDS", 30),
		LLMEndpoint:             getString("LLM_ENDPOINT", ""),
		LLMAPIKey:               getString("LLM_API_KEY", ""),
		LLMModel:                getString("LLM_MODEL", "claude-sonnet-4-20250514"),
		RateLimitPerMinute:      getInt("RATE_LIMIT_PER_MINUTE", 10),
		PrometheusURL:           getString("PROMETHEUS_URL", ""),
		Models:                  defaultModels(),
	}

	mu.Lock()
	current = cfg
	mu.Unlock()
	return cfg
}

// Get returns the current config by value (a shallow copy; Models keeps
// its map reference, which callers must treat as read-only). Panics if
// Load has never been called, matching the teacher's "must LoadConfig
// first" contract.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	if current == nil {
		panic("config: Get called before Load")
	}
	return *current
}

func defaultModels() map[string]Model {
	return map[string]Model{
		"claude-sonnet-4-20250514": {
			Name:                "claude-sonnet-4-20250514",
			MaxTokensPerMinute:  300000,
			MaxConcurrentAgents: 5,
			DailyBudgetUSD:      10.0,
		},
	}
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
