// Package limiter enforces per-model token/budget/concurrency limits and
// the Orchestrator Facade's per-user tokens-per-minute cap.
package limiter

import (
	"fmt"
	"sync"
	"time"

	"colony/pkg/config"
)

// Limiter manages rate limiting and budget enforcement across multiple LLM models.
type Limiter struct {
	models     map[string]*ModelLimiter
	resetTimer *time.Timer
	mu         sync.RWMutex
}

// ModelLimiter enforces token, budget, and concurrency limits for a specific LLM model.
type ModelLimiter struct {
	name               string
	maxTokensPerMinute int
	maxAgents          int
	maxBudgetPerDayUSD float64
	currentBudgetUSD   float64
	lastRefill         time.Time
	currentTokens      int
	currentAgents      int
	mu                 sync.Mutex
}

var (
	// ErrRateLimit is returned when token rate limits are exceeded.
	ErrRateLimit = fmt.Errorf("rate limit exceeded")
	// ErrBudgetExceeded is returned when daily budget limits are exceeded.
	ErrBudgetExceeded = fmt.Errorf("daily budget exceeded")
	// ErrAgentLimit is returned when agent limits are exceeded.
	ErrAgentLimit = fmt.Errorf("agent limit exceeded")
)

// NewLimiter creates a new rate limiter configured with the provided model limits.
func NewLimiter(cfg *config.Config) *Limiter {
	l := &Limiter{
		models: make(map[string]*ModelLimiter),
	}

	for name, model := range cfg.Models {
		l.models[name] = &ModelLimiter{
			name:               model.Name,
			maxTokensPerMinute: model.MaxTokensPerMinute,
			maxBudgetPerDayUSD: model.DailyBudgetUSD,
			maxAgents:          model.MaxConcurrentAgents,
			currentTokens:      model.MaxTokensPerMinute, // start with a full bucket
			lastRefill:         time.Now(),
		}
	}

	l.scheduleDailyReset()
	return l
}

// Reserve attempts to reserve the specified number of tokens for the given model.
func (l *Limiter) Reserve(model string, tokens int) error {
	ml, exists := l.lookup(model)
	if !exists {
		return fmt.Errorf("model %s not configured", model)
	}
	return ml.Reserve(tokens)
}

// ReserveBudget reserves budget for a model operation.
func (l *Limiter) ReserveBudget(model string, costUSD float64) error {
	ml, exists := l.lookup(model)
	if !exists {
		return fmt.Errorf("model %s not configured", model)
	}
	return ml.ReserveBudget(costUSD)
}

// ReserveAgent reserves an agent slot for a model.
func (l *Limiter) ReserveAgent(model string) error {
	ml, exists := l.lookup(model)
	if !exists {
		return fmt.Errorf("model %s not configured", model)
	}
	return ml.ReserveAgent()
}

// ReleaseAgent releases an agent slot for a model.
func (l *Limiter) ReleaseAgent(model string) error {
	ml, exists := l.lookup(model)
	if !exists {
		return fmt.Errorf("model %s not configured", model)
	}
	return ml.ReleaseAgent()
}

// GetStatus returns the current status for a model's limits.
func (l *Limiter) GetStatus(model string) (tokens int, budget float64, agents int, err error) {
	ml, exists := l.lookup(model)
	if !exists {
		return 0, 0, 0, fmt.Errorf("model %s not configured", model)
	}
	return ml.GetStatus()
}

// ResetDaily resets daily limits for all models.
func (l *Limiter) ResetDaily() {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, ml := range l.models {
		ml.ResetDaily()
	}
}

// Close stops the limiter and releases resources.
func (l *Limiter) Close() {
	if l.resetTimer != nil {
		l.resetTimer.Stop()
	}
}

func (l *Limiter) lookup(model string) (*ModelLimiter, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ml, exists := l.models[model]
	return ml, exists
}

// Reserve reserves tokens from the rate limit bucket.
func (ml *ModelLimiter) Reserve(tokens int) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.refillTokens()
	if ml.currentTokens < tokens {
		return ErrRateLimit
	}
	ml.currentTokens -= tokens
	return nil
}

// ReserveBudget reserves budget from the daily limit.
func (ml *ModelLimiter) ReserveBudget(costUSD float64) error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.currentBudgetUSD+costUSD > ml.maxBudgetPerDayUSD {
		return ErrBudgetExceeded
	}
	ml.currentBudgetUSD += costUSD
	return nil
}

// ReserveAgent reserves an agent slot.
func (ml *ModelLimiter) ReserveAgent() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.currentAgents >= ml.maxAgents {
		return ErrAgentLimit
	}
	ml.currentAgents++
	return nil
}

// ReleaseAgent releases an agent slot.
func (ml *ModelLimiter) ReleaseAgent() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	if ml.currentAgents <= 0 {
		return fmt.Errorf("no agents to release for model %s", ml.name)
	}
	ml.currentAgents--
	return nil
}

// GetStatus returns the current status of the model limiter.
func (ml *ModelLimiter) GetStatus() (tokens int, budget float64, agents int, err error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.refillTokens()
	return ml.currentTokens, ml.currentBudgetUSD, ml.currentAgents, nil
}

// ResetDaily resets the daily budget and agent limits for this model.
func (ml *ModelLimiter) ResetDaily() {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	ml.currentBudgetUSD = 0
	ml.currentTokens = ml.maxTokensPerMinute
	ml.currentAgents = 0
	ml.lastRefill = time.Now()
}

func (ml *ModelLimiter) refillTokens() {
	now := time.Now()
	elapsed := now.Sub(ml.lastRefill)
	if elapsed < time.Minute {
		return
	}

	minutes := int(elapsed / time.Minute)
	ml.currentTokens += minutes * ml.maxTokensPerMinute
	if ml.currentTokens > ml.maxTokensPerMinute {
		ml.currentTokens = ml.maxTokensPerMinute
	}
	ml.lastRefill = ml.lastRefill.Add(time.Duration(minutes) * time.Minute)
}

func (l *Limiter) scheduleDailyReset() {
	now := time.Now()
	nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

	l.resetTimer = time.AfterFunc(time.Until(nextMidnight), func() {
		l.ResetDaily()
		l.scheduleDailyReset()
	})
}
