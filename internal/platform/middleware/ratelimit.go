package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"

	"github.com/clinic/analytics/internal/platform/auth"
)

// RateLimitConfig bounds how often one caller may request reports.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns default rate limiting settings.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         20,
	}
}

// limiterIdleTTL is how long a caller's limiter survives without requests.
const limiterIdleTTL = 10 * time.Minute

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiterStore holds one limiter per caller key. Idle entries are swept
// at most once per idle period.
type rateLimiterStore struct {
	limiters  map[string]*limiterEntry
	mu        sync.Mutex
	config    RateLimitConfig
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newRateLimiterStore(cfg RateLimitConfig) *rateLimiterStore {
	return &rateLimiterStore{
		limiters: make(map[string]*limiterEntry),
		config:   cfg,
		idleTTL:  limiterIdleTTL,
		now:      time.Now,
	}
}

func (s *rateLimiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.lastSweep.IsZero() {
		s.lastSweep = now
	}
	if now.Sub(s.lastSweep) >= s.idleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) >= s.idleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.config.RequestsPerSecond), s.config.BurstSize)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// rateLimitKey identifies the caller by clinic and user, falling back to the
// client address for unauthenticated requests. It runs before the clinic
// middleware, so the clinic comes from the token claim or the clinic header.
func rateLimitKey(c echo.Context) string {
	clinicID, _ := c.Get("clinic_id").(string)
	if clinicID == "" {
		clinicID, _ = c.Get(auth.ClinicClaimKey).(string)
	}
	if clinicID == "" {
		clinicID = c.Request().Header.Get(auth.ClinicHeader)
	}
	if uid := auth.UserIDFromContext(c.Request().Context()); uid != "" {
		return clinicID + ":" + uid
	}
	return clinicID + ":" + c.RealIP()
}

// RateLimit returns a rate limiting middleware. A non-positive rate disables it.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	return rateLimitWithStore(cfg, newRateLimiterStore(cfg))
}

func rateLimitWithStore(cfg RateLimitConfig, store *rateLimiterStore) echo.MiddlewareFunc {
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', -1, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if cfg.RequestsPerSecond <= 0 {
				return next(c)
			}
			c.Response().Header().Set("X-RateLimit-Limit", limit)

			l := store.get(rateLimitKey(c))
			if !l.Allow() {
				retryAfter := int(1/cfg.RequestsPerSecond) + 1
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
