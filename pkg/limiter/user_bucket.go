package limiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"colony/pkg/colonyerr"
)

// UserBucket enforces the Orchestrator Facade's global per-user
// tokens-per-minute cap (§4.7, §6 RATE_LIMIT_PER_MINUTE). Each user gets
// an independent token-bucket limiter sized to permitPerMinute with a
// burst equal to the same figure, so a user can spend their whole
// minute's allowance in one call without being throttled by sub-minute
// bucketing. This replaces the distilled source's buggy
// `timedelta.seconds`-on-timedelta sliding window (spec.md §9) with
// golang.org/x/time/rate's continuous token refill, which never
// truncates elapsed time to an integer number of seconds.
type UserBucket struct {
	permitPerMinute int
	mu              sync.Mutex
	users           map[string]*rate.Limiter
	lastSeen        map[string]time.Time
}

// NewUserBucket builds a UserBucket giving each user a token bucket of
// permitPerMinute messages, refilled at permitPerMinute per minute; a full
// bucket plus its refill can admit more than permitPerMinute messages in
// one rolling minute.
func NewUserBucket(permitPerMinute int) *UserBucket {
	if permitPerMinute <= 0 {
		permitPerMinute = 10
	}
	return &UserBucket{
		permitPerMinute: permitPerMinute,
		users:           make(map[string]*rate.Limiter),
		lastSeen:        make(map[string]time.Time),
	}
}

// Allow reports whether userID may send another message right now,
// consuming one token if so. Returns a colonyerr-tagged RateLimited error
// when the user's bucket is exhausted.
func (b *UserBucket) Allow(userID string) error {
	b.mu.Lock()
	lim, ok := b.users[userID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(b.permitPerMinute)), b.permitPerMinute)
		b.users[userID] = lim
	}
	b.lastSeen[userID] = time.Now()
	b.mu.Unlock()

	if !lim.Allow() {
		return colonyerr.Newf(colonyerr.KindRateLimited, "limiter", "user %s exceeded %d messages/minute", userID, b.permitPerMinute)
	}
	return nil
}

// Forget evicts bucket state for users that have not been seen since
// before cutoff, bounding the map's memory footprint.
func (b *UserBucket) Forget(cutoff time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for userID, seen := range b.lastSeen {
		if seen.Before(cutoff) {
			delete(b.users, userID)
			delete(b.lastSeen, userID)
		}
	}
}
