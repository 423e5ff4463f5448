package fiber

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lborres/bantay/adapters/memory"
	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
	"github.com/lborres/bantay/services"
)

var testPasswords = &crypto.Argon2{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	dir := memory.NewDirectory()
	app := fiber.New()
	adapter := New(app, nil)
	require.NoError(t, adapter.Mount(
		services.NewAccountService(core.CommunitySessionConfig(), dir, services.WithPasswordHandler(testPasswords)),
		services.NewAccountService(core.SystemSessionConfig(), dir, services.WithPasswordHandler(testPasswords)),
	))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func register(t *testing.T, app *fiber.App, prefix, username string) core.AuthResult {
	t.Helper()
	status, env := do(t, app, http.MethodPost, prefix+"/register", "", core.RegisterInput{
		Username: username,
		Password: "correct-horse",
		Email:    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, status, env.Message)

	var res core.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	return res
}

func TestMount_LoginAndValidate(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "/auth", "juan")

	status, env := do(t, app, http.MethodPost, "/auth/login", "", core.Credentials{Username: "juan", Password: "correct-horse"})
	require.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	var res core.AuthResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	require.NotEmpty(t, res.Token)
	assert.Equal(t, core.ClassCommunity, res.User.UserType)

	status, env = do(t, app, http.MethodGet, "/auth/validate", res.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var user core.UserRecord
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "juan", user.Username)
}

func TestMount_LoginFailures(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "/auth", "juan")

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{name: "wrong password", body: core.Credentials{Username: "juan", Password: "nope-nope"}, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid username or password"},
		{name: "unknown user", body: core.Credentials{Username: "pedro", Password: "correct-horse"}, wantStatus: http.StatusUnauthorized, wantMsg: "Invalid username or password"},
		{name: "missing password", body: core.Credentials{Username: "juan"}, wantStatus: http.StatusBadRequest},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			status, env := do(t, app, http.MethodPost, "/auth/login", "", test.body)
			assert.Equal(t, test.wantStatus, status)
			assert.False(t, env.Success)
			if test.wantMsg != "" {
				assert.Equal(t, test.wantMsg, env.Message)
			}
		})
	}
}

func TestMount_BearerRequired(t *testing.T) {
	app := newTestApp(t)

	status, env := do(t, app, http.MethodGet, "/auth/validate", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Missing authorization header", env.Message)

	status, _ = do(t, app, http.MethodGet, "/auth/profile", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMount_SystemClassHasNoProfileRoutes(t *testing.T) {
	app := newTestApp(t)
	res := register(t, app, "/system/auth", "admin")
	assert.Equal(t, core.ClassSystem, res.User.UserType)

	req := httptest.NewRequest(http.MethodGet, "/system/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+res.Token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// system tokens do not open community routes
	status, _ := do(t, app, http.MethodGet, "/auth/validate", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMount_ProfileAndLogout(t *testing.T) {
	app := newTestApp(t)
	res := register(t, app, "/auth", "maria")

	status, env := do(t, app, http.MethodPut, "/auth/profile", res.Token, core.ProfileUpdate{Department: "Health"})
	require.Equal(t, http.StatusOK, status, env.Message)

	status, env = do(t, app, http.MethodGet, "/auth/profile", res.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var user core.UserRecord
	require.NoError(t, json.Unmarshal(env.Data, &user))
	assert.Equal(t, "Health", user.Department)

	status, _ = do(t, app, http.MethodPost, "/auth/logout", res.Token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = do(t, app, http.MethodGet, "/auth/validate", res.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestMount_DuplicateRegister(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "/auth", "juan")

	status, env := do(t, app, http.MethodPost, "/auth/register", "", core.RegisterInput{Username: "juan", Password: "correct-horse"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username is already taken", env.Message)
}

func TestMount_ForgotPasswordDoesNotLeakAccounts(t *testing.T) {
	app := newTestApp(t)
	register(t, app, "/auth", "juan")

	statusKnown, envKnown := do(t, app, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "juan@example.com"})
	statusUnknown, envUnknown := do(t, app, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "ghost@example.com"})

	assert.Equal(t, http.StatusOK, statusKnown)
	assert.Equal(t, statusKnown, statusUnknown)
	assert.Equal(t, envKnown.Message, envUnknown.Message)
}

// Requirement: errors map to the status codes clients classify on
func TestMapErrorToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: http.StatusOK},
		{err: core.ErrInvalidCredentials, want: http.StatusUnauthorized},
		{err: core.ErrInvalidToken, want: http.StatusUnauthorized},
		{err: fmt.Errorf("wrapped: %w", core.ErrMissingToken), want: http.StatusUnauthorized},
		{err: core.ErrPasswordRequired, want: http.StatusBadRequest},
		{err: services.ErrWeakPassword, want: http.StatusBadRequest},
		{err: core.ErrUserExists, want: http.StatusConflict},
		{err: core.ErrUserNotFound, want: http.StatusNotFound},
		{err: errors.New("database down"), want: http.StatusInternalServerError},
	}

	for _, test := range tests {
		assert.Equal(t, test.want, mapErrorToStatus(test.err), "%v", test.err)
	}
	assert.Equal(t, "Internal server error", errorMessage(errors.New("database down")))
}
