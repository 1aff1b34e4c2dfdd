package bid

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter bounds bid attempts per user with a sliding-window log.
// Attempts are counted whether or not the bid later succeeds, so a spamming
// client cannot monopolize the per-auction lock.
type RateLimiter struct {
	mu          sync.Mutex
	attempts    map[string][]int64 // userID -> attempt timestamps, epoch millis
	window      time.Duration
	maxAttempts int
	clock       clockwork.Clock
}

// NewRateLimiter creates a limiter allowing maxAttempts per window per user.
func NewRateLimiter(window time.Duration, maxAttempts int, clock clockwork.Clock) *RateLimiter {
	return &RateLimiter{
		attempts:    make(map[string][]int64),
		window:      window,
		maxAttempts: maxAttempts,
		clock:       clock,
	}
}

// Allow records one attempt for userID if the window has capacity. When the
// limit is hit it returns false plus the number of whole seconds until the
// oldest attempt ages out.
func (l *RateLimiter) Allow(userID string) (bool, int) {
	now := l.clock.Now().UnixMilli()
	windowMs := l.window.Milliseconds()

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.attempts[userID][:0]
	for _, t := range l.attempts[userID] {
		if now-t < windowMs {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.maxAttempts {
		l.attempts[userID] = recent
		retryAfterMs := recent[0] + windowMs - now
		retryAfter := int((retryAfterMs + 999) / 1000)
		return false, retryAfter
	}

	l.attempts[userID] = append(recent, now)
	return true, 0
}
