package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scholar-ai-api/internal/config"
	"scholar-ai-api/internal/domain/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if userID != "" {
		req.Header.Set(UserIDHeader, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	var seen string
	r := gin.New()
	r.Use(Identity())
	r.GET("/x", func(c *gin.Context) {
		seen, _ = service.UserIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	serve(r, "  alice  ")
	assert.Equal(t, "alice", seen)

	serve(r, strings.Repeat("a", 100))
	assert.Len(t, seen, 64)

	seen = "unchanged"
	serve(r, "")
	assert.Equal(t, "", seen)
}

func TestRateLimit_RedisSlidingWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	r := gin.New()
	r.Use(Identity())
	r.Use(RateLimit(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2}, NewRedisRateLimiter(rdb)))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, "bob").Code)
	assert.Equal(t, http.StatusOK, serve(r, "bob").Code)
	w := serve(r, "bob")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// 不同用户互不影响
	assert.Equal(t, http.StatusOK, serve(r, "carol").Code)
	require.True(t, mr.Exists("ratelimit:bob"))
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func TestRateLimit_DisabledOrFailingPassesThrough(t *testing.T) {
	for name, mw := range map[string]gin.HandlerFunc{
		"disabled":   RateLimit(config.RateLimitConfig{Enabled: false}, failingLimiter{}),
		"no limiter": RateLimit(config.RateLimitConfig{Enabled: true}, nil),
		"failing":    RateLimit(config.RateLimitConfig{Enabled: true}, failingLimiter{}),
	} {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.Use(mw)
			r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
			assert.Equal(t, http.StatusOK, serve(r, "").Code)
		})
	}
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery())
	r.GET("/x", func(*gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusInternalServerError, serve(r, "").Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	do := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set(RequestIDHeader, header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do("req-123")
	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-123", w.Body.String())

	w = do("bad id\nwith newline")
	assert.NotEqual(t, "bad id\nwith newline", w.Header().Get(RequestIDHeader))
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	w = do("")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestIsProbePath(t *testing.T) {
	assert.True(t, isProbePath("/health"))
	assert.True(t, isProbePath("/metrics"))
	assert.False(t, isProbePath("/v1/workflows/execute"))
}
