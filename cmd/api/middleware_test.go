package main

import (
	"net/http"
	"testing"
	"time"

	"padron/internal/ratelimiter"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterMiddleware(t *testing.T) {
	app := newTestApplication(t)
	app.config.rateLimiter = ratelimiter.Config{
		RequestsPerTimeFrame: 2,
		TimeFrame:            time.Minute,
		Enabled:              true,
	}
	app.rateLimiter = ratelimiter.NewFixedWindowLimiter(2, time.Minute)
	mux := app.mount()

	for i := 0; i < 2; i++ {
		rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "whatever-pass"})
		assert.NotEqual(t, http.StatusTooManyRequests, rr.Code)
	}

	rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "whatever-pass"})
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
}

func TestAuthTokenMiddlewareRejectsMalformedHeader(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	req := executeRequest(t, mux, http.MethodGet, "/api/roles/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, req.Code)

	malformed := executeRequest(t, mux, http.MethodGet, "/api/roles/", "not a bearer", nil)
	assert.Equal(t, http.StatusUnauthorized, malformed.Code)
}

func TestAuthTokenMiddlewareRejectsBadToken(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(t, mux, http.MethodGet, "/api/roles/", "garbage.token.here", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
