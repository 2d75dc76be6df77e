package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/andreyxaxa/Reschedule-Engine/internal/controller/restapi/v1/response"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

const _visitorTTL = 3 * time.Minute

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per tenant. Requests without a tenant are
// keyed by client IP.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	rps   rate.Limit
	burst int
	now   func() time.Time
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = rl.now()

	return v.limiter
}

// Cleanup drops buckets idle for a few minutes until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.evict()
		}
	}
}

func (rl *RateLimiter) evict() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if rl.now().Sub(v.lastSeen) > _visitorTTL {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) Handler() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		key := TenantID(ctx)
		if key == "" {
			key = "ip:" + ctx.IP()
		}

		if !rl.limiter(key).Allow() {
			return ctx.Status(http.StatusTooManyRequests).JSON(response.Error{Error: "rate limit exceeded"})
		}

		return ctx.Next()
	}
}
