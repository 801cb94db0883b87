package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestIPRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.5, BurstSize: 2})
	defer rl.Close()

	router := gin.New()
	router.POST("/log", rl.Middleware(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/log", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusNoContent, send("198.51.100.1:1000").Code)
	assert.Equal(t, http.StatusNoContent, send("198.51.100.1:1001").Code)
	w := send("198.51.100.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusNoContent, send("198.51.100.2:1000").Code, "buckets are per address")
	assert.Equal(t, 2, rl.Size())
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, EntryTTL: time.Minute})
	defer rl.Close()

	rl.Allow("198.51.100.3")
	rl.cleanup(time.Now())
	assert.Equal(t, 1, rl.Size())

	rl.cleanup(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, rl.Size())
}
