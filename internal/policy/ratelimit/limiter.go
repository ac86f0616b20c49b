// Package ratelimit spaces requests to the same host by a minimum interval.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/platemetrics/review-crawler/internal/telemetry"
)

// Limiter manages per-host rate limits. Calls for the same host are spaced
// by the configured minimum interval, even across concurrent callers.
type Limiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	minInterval time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	// MinInterval is the minimum delay between two requests to one host.
	// Zero or negative disables limiting.
	MinInterval time.Duration
}

// New creates a Limiter.
func New(cfg Config) *Limiter {
	return &Limiter{
		limiters:    make(map[string]*rate.Limiter),
		minInterval: cfg.MinInterval,
	}
}

// Wait blocks until the host of rawURL may be contacted, respecting the
// context.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}

	limiter := l.hostLimiter(host)
	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		telemetry.RateLimitDelay.WithLabelValues(host).Observe(waited.Seconds())
	}
	return nil
}

func (l *Limiter) hostLimiter(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	limiter, ok := l.limiters[host]
	if !ok {
		limit := rate.Inf
		if l.minInterval > 0 {
			limit = rate.Every(l.minInterval)
		}
		limiter = rate.NewLimiter(limit, 1)
		l.limiters[host] = limiter
	}
	return limiter
}
