package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a process-local Limiter keeping a pruned timestamp list per
// key. Single-instance deployments and tests use it in place of Redis.
type MemoryLimiter struct {
	cfg Config
	now func() time.Time

	mu      sync.Mutex
	entries map[string][]time.Time
}

func NewMemoryLimiter(cfg Config) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:     cfg.withDefaults(),
		now:     time.Now,
		entries: make(map[string][]time.Time),
	}
}

// SetClock overrides the time source for tests.
func (l *MemoryLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.cfg.Window)

	stamps := l.entries[key]
	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(windowStart) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.cfg.Budget {
		l.entries[key] = kept
		oldest := kept[0]
		return &Result{
			Allowed:    false,
			Limit:      l.cfg.Budget,
			Remaining:  0,
			RetryAfter: oldest.Add(l.cfg.Window).Sub(now),
			ResetAt:    oldest.Add(l.cfg.Window),
		}, nil
	}

	l.entries[key] = append(kept, now)
	return &Result{
		Allowed:   true,
		Limit:     l.cfg.Budget,
		Remaining: l.cfg.Budget - len(kept) - 1,
		ResetAt:   now.Add(l.cfg.Window),
	}, nil
}
