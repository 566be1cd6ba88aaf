// Package ratelimit bounds the upstream load each external user generates.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"gmb-connector/internal/common/errors"
	"gmb-connector/internal/redis"

	"golang.org/x/time/rate"
)

// Class groups upstream endpoints that share a budget.
type Class string

const (
	ClassDefault Class = "default"
	// ClassQandA is the Q&A API, which has a tighter per-project quota.
	ClassQandA Class = "qanda"
)

// Limiter blocks until the caller identified by key may issue one request of
// the given class, or ctx is done.
type Limiter interface {
	Wait(ctx context.Context, key string, class Class) error
}

// Config holds the per-user request rates of each class.
type Config struct {
	DefaultRPS float64 `json:"default_rps"`
	QandARPS   float64 `json:"qanda_rps"`
}

func (c Config) rps(class Class) float64 {
	if class == ClassQandA {
		return c.QandARPS
	}
	return c.DefaultRPS
}

// Local is an in-process token bucket per key and class.
type Local struct {
	config   Config
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewLocal(config Config) *Local {
	return &Local{config: config, limiters: make(map[string]*rate.Limiter)}
}

func (l *Local) Wait(ctx context.Context, key string, class Class) error {
	if err := l.limiter(key, class).Wait(ctx); err != nil {
		return errors.RateLimitError(string(class)).WithContext("key", key)
	}
	return nil
}

func (l *Local) limiter(key string, class Class) *rate.Limiter {
	id := string(class) + ":" + key

	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[id]
	if !ok {
		rps := l.config.rps(class)
		burst := int(math.Max(1, math.Ceil(rps)))
		lim = rate.NewLimiter(rate.Limit(rps), burst)
		l.limiters[id] = lim
	}
	return lim
}

// Distributed shares the budget between processes through a redis sliding
// window. Fractional rates widen the window: 0.5 rps admits one request every
// two seconds, 2.5 rps three every 1.2 seconds.
type Distributed struct {
	redis        *redis.Client
	config       Config
	pollInterval time.Duration
}

// NewDistributed returns a limiter whose windows live in redis.
func NewDistributed(client *redis.Client, config Config) *Distributed {
	return &Distributed{redis: client, config: config, pollInterval: 50 * time.Millisecond}
}

func (d *Distributed) Wait(ctx context.Context, key string, class Class) error {
	limit, window := slidingWindow(d.config.rps(class))
	redisKey := fmt.Sprintf("rate_limit:%s:%s", class, key)

	for {
		allowed, _, err := d.redis.CheckRateLimit(ctx, redisKey, limit, window)
		if err != nil {
			return errors.InternalError("failed to check rate limit", err)
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return errors.RateLimitError(string(class)).WithContext("key", key)
		case <-time.After(d.pollInterval):
		}
	}
}

// slidingWindow returns the smallest whole request count and the window that
// carries it at rps.
func slidingWindow(rps float64) (int, time.Duration) {
	if rps <= 0 {
		return 1, time.Second
	}
	limit := math.Max(1, math.Ceil(rps))
	return int(limit), time.Duration(limit / rps * float64(time.Second))
}

// Unlimited never blocks.
type Unlimited struct{}

func (Unlimited) Wait(context.Context, string, Class) error { return nil }
