package signal

import (
	"sync"
	"time"
)

// StrikeLimiter counts protocol offenses per client token in a sliding
// window. Keying on the token rather than the session means a reconnect
// does not reset the count.
type StrikeLimiter struct {
	mu      sync.Mutex
	history map[string][]time.Time
	limit   int
	window  time.Duration
}

func NewStrikeLimiter(limit int, window time.Duration) *StrikeLimiter {
	return &StrikeLimiter{
		history: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
	}
}

// Strike records one offense and reports whether the offender has reached
// the limit within the window.
func (l *StrikeLimiter) Strike(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-l.window)

	attempts := l.history[key]
	fresh := make([]time.Time, 0, len(attempts)+1)
	for _, t := range attempts {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	fresh = append(fresh, now)
	l.history[key] = fresh

	return len(fresh) >= l.limit
}
