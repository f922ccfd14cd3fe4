package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	defer rl.Stop()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	ok, left := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	ok, _ = rl.Allow("a")
	assert.True(t, ok)
	ok, _ = rl.Allow("a")
	assert.False(t, ok)

	ok, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	now = now.Add(time.Minute)
	ok, _ = rl.Allow("a")
	assert.True(t, ok, "window resets")
}

func TestRateLimitByTenant(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	defer rl.Stop()

	r := gin.New()
	r.Use(Tenant(DefaultTenantConfig()), RateLimitByTenant(rl))
	r.GET("/api/v1/reports/tax.xlsx", func(c *gin.Context) { c.Status(http.StatusOK) })

	call := func(tenant uuid.UUID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/reports/tax.xlsx", nil)
		req.Header.Set(TenantHeader, tenant.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	first, second := uuid.New(), uuid.New()
	assert.Equal(t, http.StatusOK, call(first).Code)
	limited := call(first)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusOK, call(second).Code)
}
