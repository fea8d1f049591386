package services

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleInterval is the pause between two requests to the same source
// when throttling is on.
const DefaultThrottleInterval = 500 * time.Millisecond

// RateLimiter spaces requests to each source by at least interval. One
// instance is shared by every worker of the process.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	limiters map[string]*rate.Limiter
}

func NewRateLimiter(interval time.Duration) *RateLimiter {
	return &RateLimiter{
		interval: interval,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Wait blocks until a request to source may be sent. The slot is reserved
// before sleeping, so concurrent callers queue up one interval apart.
func (r *RateLimiter) Wait(ctx context.Context, source string) error {
	if r == nil || r.interval <= 0 {
		return ctx.Err()
	}
	return r.limiter(source).Wait(ctx)
}

func (r *RateLimiter) limiter(source string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.limiters[source]
	if !ok {
		l = rate.NewLimiter(rate.Every(r.interval), 1)
		r.limiters[source] = l
	}
	return l
}
