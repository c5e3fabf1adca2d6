package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func doRateLimited(limiter *RateLimitMiddleware, path string, ip string) int {
	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = ip + ":51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_AuthBudgetIsTighter(t *testing.T) {
	limiter := NewRateLimitMiddleware(100, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))
	}
	assert.Equal(t, http.StatusTooManyRequests, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))

	// The general budget is untouched by auth traffic.
	assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/annonces", "10.0.0.1"))
}

func TestRateLimit_PerClientIsolation(t *testing.T) {
	limiter := NewRateLimitMiddleware(100, 2)

	assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))
	assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))

	// A different client keeps its own budget.
	assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/auth/login", "10.0.0.2"))
}

func TestRateLimit_HealthAndMetricsExempt(t *testing.T) {
	limiter := NewRateLimitMiddleware(1, 1)

	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/health", "10.0.0.1"))
		assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/metrics", "10.0.0.1"))
	}
}

func TestRateLimit_TooManyRequestsResponse(t *testing.T) {
	limiter := NewRateLimitMiddleware(100, 1)

	assert.Equal(t, http.StatusOK, doRateLimited(limiter, "/api/auth/login", "10.0.0.1"))

	handler := limiter.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:51234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "RATE_LIMITED")
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		realIP     string
		want       string
	}{
		{"remote addr", "192.168.1.5:4321", "", "", "192.168.1.5"},
		{"x-forwarded-for wins", "10.0.0.1:4321", "203.0.113.7, 10.0.0.1", "", "203.0.113.7"},
		{"x-real-ip fallback", "10.0.0.1:4321", "", "203.0.113.9", "203.0.113.9"},
		{"empty remote addr", "", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if tt.realIP != "" {
				req.Header.Set("X-Real-IP", tt.realIP)
			}

			assert.Equal(t, tt.want, extractClientIP(req))
		})
	}
}
