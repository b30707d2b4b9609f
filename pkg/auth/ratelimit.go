package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an identity may make another request.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter allows a fixed number of requests per subject and tier
// in each one-minute window. State is local to the process.
type InProcessLimiter struct {
	tiers      map[string]int // requests per minute by tier
	defaultRPM int
	now        func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

type window struct {
	start time.Time
	count int
}

// NewInProcessLimiter returns a limiter with per-tier limits. Tiers not in
// tiers use defaultRPM; a limit of zero or less means unlimited.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		windows:    make(map[string]*window),
	}
}

// Allow counts the request and returns ErrTooManyRequests once the
// identity's limit for the current window is exhausted.
func (l *InProcessLimiter) Allow(_ context.Context, id *Identity) error {
	tier := id.Tier()
	rpm, ok := l.tiers[tier]
	if !ok {
		rpm = l.defaultRPM
	}
	if rpm <= 0 {
		return nil
	}

	key := id.Subject + "\x00" + tier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.start) >= time.Minute {
		l.windows[key] = &window{start: now, count: 1}
		return nil
	}
	if w.count >= rpm {
		return ErrTooManyRequests
	}
	w.count++
	return nil
}
