package main

import (
	"context"
	"net/http"
	"testing"

	"padron/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// activeUser provisions an enabled account with credentials, the state a
// user reaches after completing activation.
func activeUser(t *testing.T, app *application, username, password string, roleIDs ...int64) *store.User {
	t.Helper()

	user := mustCreateUser(t, app, "Ada", roleIDs...)
	user.Username = username
	user.Email = username + "@example.com"
	user.Enabled = true
	require.NoError(t, user.SetPassword(password))
	require.NoError(t, app.store.Users.Update(context.Background(), user))
	return user
}

func TestLogin(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "ROLE_ADMIN", "Admin")
	activeUser(t, app, "ada", "s3cret-pass", role.ID)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "s3cret-pass"})
	require.Equal(t, http.StatusOK, rr.Code)

	var body tokenResponse
	decodeBody(t, rr, &body)
	require.NotEmpty(t, body.Token)

	// The issued token carries the role keys and opens the protected API.
	api := executeRequest(t, mux, http.MethodGet, "/api/roles/", body.Token, nil)
	assert.Equal(t, http.StatusOK, api.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "nobody", Password: "whatever-pass"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User/password not found", body.Message)
}

func TestLoginWrongPassword(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	activeUser(t, app, "ada", "s3cret-pass", role.ID)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "wrong-pass"})
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// Same message as the unknown-user case.
	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User/password not found", body.Message)
}

func TestLoginDisabledUser(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	user := activeUser(t, app, "ada", "s3cret-pass", role.ID)
	user.Enabled = false
	require.NoError(t, app.store.Users.Update(context.Background(), user))

	rr := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "s3cret-pass"})
	require.Equal(t, http.StatusConflict, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User disabled", body.Message)
}

func TestStartActivationRequiresAdmin(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	token := accessToken(t, app, "ada", "ROLE_USER")
	rr := executeRequest(t, mux, http.MethodPost, "/auth/start-activate-account", token, StartActivationPayload{ID: 1})
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = executeRequest(t, mux, http.MethodPost, "/auth/start-activate-account", "", StartActivationPayload{ID: 1})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestStartActivationUnknownUser(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(t, mux, http.MethodPost, "/auth/start-activate-account", adminToken(t, app), StartActivationPayload{ID: 99})
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User not found", body.Message)
}

func TestStartActivationAlreadyActive(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	user := activeUser(t, app, "ada", "s3cret-pass", role.ID)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/start-activate-account", adminToken(t, app), StartActivationPayload{ID: user.ID})
	require.Equal(t, http.StatusConflict, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User already active", body.Message)
}

func TestActivationFlow(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	user := mustCreateUser(t, app, "Ada", role.ID)

	start := executeRequest(t, mux, http.MethodPost, "/auth/start-activate-account", adminToken(t, app), StartActivationPayload{ID: user.ID})
	require.Equal(t, http.StatusOK, start.Code)

	var issued tokenResponse
	decodeBody(t, start, &issued)
	require.NotEmpty(t, issued.Token)

	activate := executeRequest(t, mux, http.MethodPost, "/auth/activate-account", "", ActivateAccountPayload{
		Token:    issued.Token,
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, activate.Code)

	stored, err := app.store.Users.GetByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Enabled)
	assert.Equal(t, "ada", stored.Username)
	assert.NoError(t, stored.ComparePassword("s3cret-pass"))

	// The freshly activated credentials log in.
	login := executeRequest(t, mux, http.MethodPost, "/auth/login", "", LoginPayload{Username: "ada", Password: "s3cret-pass"})
	assert.Equal(t, http.StatusOK, login.Code)
}

func TestActivationRejectsAccessToken(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	mustCreateUser(t, app, "Ada", role.ID)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/activate-account", "", ActivateAccountPayload{
		Token:    accessToken(t, app, "ada", "ROLE_USER"),
		Username: "ada",
		Email:    "ada@example.com",
		Password: "s3cret-pass",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "token invalid or expired", body.Message)
}

func TestActivationAlreadyActivated(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	user := activeUser(t, app, "ada", "s3cret-pass", role.ID)

	token, err := app.authenticator.GenerateActivationToken(user.ID)
	require.NoError(t, err)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/activate-account", "", ActivateAccountPayload{
		Token:    token,
		Username: "ada2",
		Email:    "ada2@example.com",
		Password: "s3cret-pass",
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "User already activated", body.Message)
}

func TestActivationRejectsTakenUsername(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	role := mustCreateRole(t, app, "editor", "Editor")
	activeUser(t, app, "ada", "s3cret-pass", role.ID)
	pending := mustCreateUser(t, app, "Grace", role.ID)

	token, err := app.authenticator.GenerateActivationToken(pending.ID)
	require.NoError(t, err)

	rr := executeRequest(t, mux, http.MethodPost, "/auth/activate-account", "", ActivateAccountPayload{
		Token:    token,
		Username: "ada",
		Email:    "grace@example.com",
		Password: "s3cret-pass",
	})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestUnknownPath(t *testing.T) {
	app := newTestApplication(t)
	mux := app.mount()

	rr := executeRequest(t, mux, http.MethodGet, "/nope", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)

	var body errorResponse
	decodeBody(t, rr, &body)
	assert.Equal(t, "Path not found", body.Message)
	assert.Equal(t, "Not Found", body.Error)
	assert.Equal(t, "/nope", body.Path)
}
