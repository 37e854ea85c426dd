package services

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Cooldown is an advisory per-address timer between OTP sends. The identity
// service stays authoritative: a resend it throttles still fails with a
// validation error.
type Cooldown struct {
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewCooldown returns a Cooldown allowing one send per interval. A
// non-positive interval disables it.
func NewCooldown(interval time.Duration) *Cooldown {
	return &Cooldown{
		interval: interval,
		now:      time.Now,
		limiters: make(map[string]*rate.Limiter),
	}
}

func (c *Cooldown) limiter(email string) *rate.Limiter {
	key := strings.ToLower(strings.TrimSpace(email))
	l, ok := c.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(c.interval), 1)
		c.limiters[key] = l
	}
	return l
}

// Remaining returns how long to wait before the next send to email.
func (c *Cooldown) Remaining(email string) time.Duration {
	if c.interval <= 0 {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	tokens := c.limiter(email).TokensAt(c.now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(c.interval)).Round(time.Millisecond)
}

// Start records a send to email.
func (c *Cooldown) Start(email string) {
	if c.interval <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.limiter(email).AllowN(c.now(), 1)
}
