package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"padron/internal/auth"
	"padron/internal/ratelimiter"
	"padron/internal/store"
	"padron/internal/store/storetest"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg := config{
		addr: ":0",
		env:  "test",
		auth: authConfig{
			token: tokenConfig{
				secret:        "test-secret",
				accessExp:     time.Hour,
				activationExp: time.Hour,
				iss:           "padron-test",
			},
		},
		rateLimiter: ratelimiter.Config{Enabled: false},
	}

	return &application{
		config:        cfg,
		store:         storetest.New(),
		logger:        zap.NewNop().Sugar(),
		authenticator: auth.NewJWTAuthenticator(cfg.auth.token.secret, cfg.auth.token.iss, cfg.auth.token.iss, cfg.auth.token.accessExp, cfg.auth.token.activationExp),
		rateLimiter:   ratelimiter.NewFixedWindowLimiter(100, time.Minute),
	}
}

func executeRequest(t *testing.T, mux http.Handler, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)
	return rr
}

func accessToken(t *testing.T, app *application, username string, roles ...string) string {
	t.Helper()
	token, err := app.authenticator.GenerateAccessToken(username, roles)
	require.NoError(t, err)
	return token
}

func adminToken(t *testing.T, app *application) string {
	t.Helper()
	return accessToken(t, app, "admin", adminAuthority)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst))
}

func mustCreateRole(t *testing.T, app *application, key, name string) *store.Role {
	t.Helper()
	role := &store.Role{Key: key, Name: name}
	require.NoError(t, app.store.Roles.Create(context.Background(), role))
	return role
}

func mustCreateUser(t *testing.T, app *application, firstName string, roleIDs ...int64) *store.User {
	t.Helper()
	user := &store.User{
		FirstName:        firstName,
		LastNamePaternal: "Test",
		LastNameMaternal: "Test",
		Roles:            roleIDs,
	}
	require.NoError(t, app.store.Users.Create(context.Background(), user))
	return user
}
