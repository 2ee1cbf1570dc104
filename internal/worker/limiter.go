package worker

import (
	"context"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter rate-limits outbound requests per target domain. Each domain gets
// its own token bucket, created on first use.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewLimiter creates a per-domain limiter
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

// Wait blocks until the URL's domain has capacity
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	domain, err := domainOf(rawURL)
	if err != nil {
		return err
	}
	return l.limiterFor(domain).Wait(ctx)
}

// WaitWithDelay waits for capacity plus an extra delay, typically a
// robots.txt crawl delay
func (l *Limiter) WaitWithDelay(ctx context.Context, rawURL string, extra time.Duration) error {
	if err := l.Wait(ctx, rawURL); err != nil {
		return err
	}
	if extra <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(extra):
		return nil
	}
}

// Allow reports whether a request may proceed right now, consuming a token
// if so
func (l *Limiter) Allow(rawURL string) bool {
	domain, err := domainOf(rawURL)
	if err != nil {
		return false
	}
	return l.limiterFor(domain).Allow()
}

func (l *Limiter) limiterFor(domain string) *rate.Limiter {
	l.mu.RLock()
	limiter, ok := l.limiters[domain]
	l.mu.RUnlock()
	if ok {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, ok := l.limiters[domain]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(l.rps, l.burst)
	l.limiters[domain] = limiter
	return limiter
}

func domainOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return parsed.Host, nil
}
