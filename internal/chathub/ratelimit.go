package chathub

import (
	"sync"
	"time"
)

// senderLimiter enforces the per-sender message ceiling with a sliding
// window of send timestamps.
type senderLimiter struct {
	mu     sync.Mutex
	window time.Duration
	limit  int
	sends  map[string][]time.Time
}

func newSenderLimiter(limit int, window time.Duration) *senderLimiter {
	return &senderLimiter{
		window: window,
		limit:  limit,
		sends:  make(map[string][]time.Time),
	}
}

// Allow records an attempt at now and reports whether the sender is under
// the ceiling. Timestamps older than the window are pruned on each call.
func (l *senderLimiter) Allow(userID string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := now.Add(-l.window)
	recent := l.sends[userID][:0]
	for _, ts := range l.sends[userID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= l.limit {
		l.sends[userID] = recent
		return false
	}
	l.sends[userID] = append(recent, now)
	return true
}

// Forget drops the sender's window state, releasing the entry on disconnect.
func (l *senderLimiter) Forget(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sends, userID)
}
