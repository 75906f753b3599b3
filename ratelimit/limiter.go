// Package ratelimit provides rolling-window request throttling keyed by user.
package ratelimit

import (
	"context"
	"time"
)

// Config bounds one rolling window.
type Config struct {
	Budget int           // requests allowed per window
	Window time.Duration // rolling window size
}

func (c Config) withDefaults() Config {
	if c.Budget <= 0 {
		c.Budget = 100
	}
	if c.Window <= 0 {
		c.Window = time.Hour
	}
	return c
}

// Result reports one admission decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Limiter is the narrow seam between the HTTP layer and the counter store, so
// a single instance can run on process memory while a fleet shares Redis.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}
