package http

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idle limiters are dropped after this long
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// clientLimiters holds one token bucket per client IP.
type clientLimiters struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	lastGC   time.Time
	now      func() time.Time
}

func newClientLimiters(perSecond float64, burst int) *clientLimiters {
	if burst <= 0 {
		burst = max(1, int(perSecond))
	}
	return &clientLimiters{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Limit(perSecond),
		burst:    burst,
		now:      time.Now,
	}
}

func (c *clientLimiters) get(ip string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if now.Sub(c.lastGC) > limiterIdleTTL {
		for key, l := range c.limiters {
			if now.Sub(l.lastSeen) > limiterIdleTTL {
				delete(c.limiters, key)
			}
		}
		c.lastGC = now
	}

	l, ok := c.limiters[ip]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(c.limit, c.burst)}
		c.limiters[ip] = l
	}
	l.lastSeen = now
	return l.limiter
}

func (c *clientLimiters) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.limiters)
}
