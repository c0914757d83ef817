package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/allisson/go-pwdhash"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/allisson/registrations/internal/errors"
	"github.com/allisson/registrations/internal/httputil"
)

// apiKeyHeader carries the caller's API key.
const apiKeyHeader = "X-API-KEY"

// apiKeyContextKey stores the matched key hash in the gin context so the
// rate limiter can key on it.
const apiKeyContextKey = "matched_api_key"

// CustomLoggerMiddleware logs each request with its method, path, status,
// duration and request id.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.Info("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", requestid.Get(c)),
			slog.String("remote_addr", c.ClientIP()),
		)
	}
}

// APIKeyAuthMiddleware authenticates requests by verifying the X-API-KEY
// header against a list of Argon2id key hashes. Plaintext keys are never
// stored in configuration.
func APIKeyAuthMiddleware(keyHashes []string, logger *slog.Logger) (gin.HandlerFunc, error) {
	hasher, err := pwdhash.New(pwdhash.WithPolicy(pwdhash.PolicyModerate))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to create password hasher")
	}

	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			httputil.HandleError(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		for _, hash := range keyHashes {
			ok, err := hasher.Verify([]byte(key), hash)
			if err != nil || !ok {
				continue
			}
			c.Set(apiKeyContextKey, hash)
			c.Next()
			return
		}

		httputil.HandleError(c, apperrors.ErrUnauthorized, logger)
		c.Abort()
	}, nil
}

// rateLimiterStore holds per-key rate limiters with stale entry cleanup.
type rateLimiterStore struct {
	limiters sync.Map // map[string]*rateLimiterEntry
	rps      float64
	burst    int
}

type rateLimiterEntry struct {
	limiter    *rate.Limiter
	mu         sync.Mutex
	lastAccess time.Time
}

// RateLimitMiddleware enforces a per-API-key token bucket on top of the
// identifier-level abuse limit. Must run after APIKeyAuthMiddleware.
//
// Returns 429 with a Retry-After header when the bucket is empty.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &rateLimiterStore{
		rps:   rps,
		burst: burst,
	}

	go store.cleanupStale(ctx, 5*time.Minute)

	return func(c *gin.Context) {
		key := c.GetString(apiKeyContextKey)
		if key == "" {
			logger.Error("rate limit middleware: no authenticated API key in context")
			httputil.HandleError(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		limiter := store.getLimiter(key)
		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Seconds())
			reservation.Cancel()

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limited",
				"message": "Too many requests. Please retry after the specified delay.",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func (s *rateLimiterStore) getLimiter(key string) *rate.Limiter {
	if val, ok := s.limiters.Load(key); ok {
		entry := val.(*rateLimiterEntry)
		entry.mu.Lock()
		entry.lastAccess = time.Now()
		entry.mu.Unlock()
		return entry.limiter
	}

	entry := &rateLimiterEntry{
		limiter:    rate.NewLimiter(rate.Limit(s.rps), s.burst),
		lastAccess: time.Now(),
	}
	s.limiters.Store(key, entry)
	return entry.limiter
}

// cleanupStale drops limiters not used within the interval so the store does
// not grow without bound.
func (s *rateLimiterStore) cleanupStale(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-interval)
			s.limiters.Range(func(key, val any) bool {
				entry := val.(*rateLimiterEntry)
				entry.mu.Lock()
				stale := entry.lastAccess.Before(cutoff)
				entry.mu.Unlock()
				if stale {
					s.limiters.Delete(key)
				}
				return true
			})
		}
	}
}
