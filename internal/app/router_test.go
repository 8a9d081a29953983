package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storefront/storefront-api/internal/auth"
	"github.com/storefront/storefront-api/internal/observability"
	"github.com/storefront/storefront-api/internal/security/token"
	"github.com/storefront/storefront-api/jobs"
)

func newTestRouter(t *testing.T, cfg *Config) http.Handler {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{Secret: "test"})
	require.NoError(t, err)
	return NewRouter(RouterParams{
		Config:      cfg,
		AuthHandler: auth.NewHandler(nil, nil, issuer),
		JobHandler:  jobs.NewHandler(nil, nil),
		Metrics:     observability.NewMetrics(),
	})
}

func TestRouterHealthz(t *testing.T) {
	router := newTestRouter(t, &Config{})
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
}

func TestRouterMountsAPI(t *testing.T) {
	router := newTestRouter(t, &Config{})

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
	}{
		{"auth validation", http.MethodPost, "/api/v1/auth/sign-in", `{"email":"nope"}`, http.StatusBadRequest},
		{"users me needs bearer", http.MethodGet, "/api/v1/users/me", "", http.StatusUnauthorized},
		{"user update needs bearer", http.MethodPatch, "/api/v1/users/42", `{}`, http.StatusUnauthorized},
		{"user deactivate needs bearer", http.MethodDelete, "/api/v1/users/42", "", http.StatusUnauthorized},
		{"jobs health", http.MethodGet, "/jobs/health", "", http.StatusOK},
		{"metrics", http.MethodGet, "/metrics", "", http.StatusOK},
		{"unknown route", http.MethodGet, "/nope", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/api/v1/auth/sign-in", "", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestRouterRateLimit(t *testing.T) {
	router := newTestRouter(t, &Config{AppRateLimit: 2})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "203.0.113.9:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
