package middleware

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// GenerateRateLimiter applies two-tier rate limiting to document generation.
// Rendering is CPU-bound, so a global cap protects the server and a per-user
// cap keeps one client from starving the rest.
type GenerateRateLimiter struct {
	globalLimiter   *rate.Limiter
	perUserLimiters *sync.Map // map[string]*rate.Limiter
	perUserRate     float64
}

// NewGenerateRateLimiter creates a limiter with the given global and per-user
// sustained rates in requests per second.
func NewGenerateRateLimiter(globalRate, perUserRate float64) *GenerateRateLimiter {
	return &GenerateRateLimiter{
		globalLimiter:   rate.NewLimiter(rate.Limit(globalRate), int(globalRate*2)),
		perUserLimiters: &sync.Map{},
		perUserRate:     perUserRate,
	}
}

// Allow reports whether a request from the given caller may proceed. Anonymous
// callers are bucketed by IP.
func (rl *GenerateRateLimiter) Allow(callerKey string) bool {
	if !rl.globalLimiter.Allow() {
		return false
	}
	return rl.getOrCreateUserLimiter(callerKey).Allow()
}

func (rl *GenerateRateLimiter) getOrCreateUserLimiter(key string) *rate.Limiter {
	if limiter, ok := rl.perUserLimiters.Load(key); ok {
		return limiter.(*rate.Limiter)
	}

	newLimiter := rate.NewLimiter(rate.Limit(rl.perUserRate), int(rl.perUserRate*4))

	// Try to store, but use existing if another goroutine created it first
	actual, _ := rl.perUserLimiters.LoadOrStore(key, newLimiter)
	return actual.(*rate.Limiter)
}

// Handler returns a fiber middleware rejecting over-limit requests with 429.
func (rl *GenerateRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := UserID(c)
		if key == "" {
			key = "ip:" + c.IP()
		}

		if !rl.Allow(key) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Too many generation requests, slow down",
			})
		}

		return c.Next()
	}
}
