package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLimiter struct {
	keys    []string
	allowed bool
	err     error
}

func (c *captureLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	c.keys = append(c.keys, key)
	return c.allowed, c.err
}

func TestRateLimit(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("KeysByAPIKeyWhenPresented", func(t *testing.T) {
		limiter := &captureLimiter{allowed: true}
		h := RateLimit(limiter, 10, time.Second)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
		req.Header.Set("X-API-Key", "operator-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "ratelimit:api:key:operator-1", limiter.keys[0])
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("FallsBackToClientIP", func(t *testing.T) {
		limiter := &captureLimiter{allowed: true}
		h := RateLimit(limiter, 10, time.Second)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Len(t, limiter.keys, 1)
		assert.Equal(t, "ratelimit:api:ip:203.0.113.9", limiter.keys[0])
	})

	t.Run("BlockedCallerGets429", func(t *testing.T) {
		limiter := &captureLimiter{allowed: false}
		h := RateLimit(limiter, 1, time.Second)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})

	t.Run("FailsOpenOnLimiterError", func(t *testing.T) {
		limiter := &captureLimiter{err: assert.AnError}
		h := RateLimit(limiter, 1, time.Second)(next)

		req := httptest.NewRequest(http.MethodGet, "/api/pool", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})
}
