package metadata

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RequestDelay is the minimum spacing between store API requests
const RequestDelay = 2 * time.Second

// RateLimiter spaces outbound requests by a fixed minimum interval.
// Reservations are taken under the limiter's lock, so concurrent callers
// are admitted one interval apart.
type RateLimiter struct {
	limiter  *rate.Limiter
	interval time.Duration
}

// NewRateLimiter creates a limiter admitting one request per interval.
// A non-positive interval disables limiting.
func NewRateLimiter(interval time.Duration) *RateLimiter {
	if interval <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &RateLimiter{
		limiter:  rate.NewLimiter(rate.Every(interval), 1),
		interval: interval,
	}
}

// Wait blocks until the caller may issue a request. It only fails when ctx
// is done first.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}

// Interval returns the configured spacing
func (r *RateLimiter) Interval() time.Duration {
	return r.interval
}
