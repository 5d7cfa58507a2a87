package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/growth-api/internal/auth"
	"github.com/redmonkez12/growth-api/internal/config"
	"github.com/redmonkez12/growth-api/internal/email"
	"github.com/redmonkez12/growth-api/internal/httputil"
	"github.com/redmonkez12/growth-api/internal/logging"
	"github.com/redmonkez12/growth-api/internal/session"
	"github.com/redmonkez12/growth-api/internal/user"
)

func testLogger() *logging.Logger {
	return logging.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestRouter(t *testing.T, aiProxy http.Handler) *chi.Mux {
	t.Helper()

	logger := testLogger()
	clock := clockwork.NewRealClock()
	users := user.NewMemoryStore()
	sessions := session.NewManager(memstore.New(), time.Hour, false, users)

	service := auth.NewService(
		users,
		sessions,
		auth.NewArgon2Hasher(auth.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16}),
		auth.NewTokenGenerator(nil),
		email.NewService(logger, "https://app.example", "http://api.example", false),
		clock,
		logger,
		auth.Options{},
	)
	states, err := auth.NewStateSealer(bytes.Repeat([]byte{1}, 32), clock)
	require.NoError(t, err)

	handler := auth.NewHandler(service, nil, states, "https://app.example", false)
	cfg := &config.Config{Server: config.ServerConfig{Env: "prod"}}

	return NewRouter(cfg, handler, sessions, aiProxy, logger)
}

func newTestServer(t *testing.T, aiProxy http.Handler) (*httptest.Server, *http.Client) {
	t.Helper()

	server := httptest.NewServer(newTestRouter(t, aiProxy))
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return server, &http.Client{Jar: jar}
}

func call(t *testing.T, client *http.Client, method, url, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp.StatusCode, decoded
}

func TestRouter_SessionLifecycle(t *testing.T) {
	server, client := newTestServer(t, NewAIProxy(nil, time.Second))
	api := server.URL + "/api"

	status, _ := call(t, client, http.MethodPost, api+"/register", `{"email":"a@x.com","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, status)

	status, wrong := call(t, client, http.MethodPost, api+"/login", `{"email":"a@x.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	status, unknown := call(t, client, http.MethodPost, api+"/login", `{"email":"b@x.com","password":"secret1"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, wrong, unknown)

	status, _ = call(t, client, http.MethodGet, api+"/current_user", "")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := call(t, client, http.MethodPost, api+"/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["message"])

	status, body = call(t, client, http.MethodGet, api+"/current_user", "")
	require.Equal(t, http.StatusOK, status)
	current, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "a@x.com", current["email"])

	status, _ = call(t, client, http.MethodPost, api+"/logout", "")
	assert.Equal(t, http.StatusOK, status)

	status, body = call(t, client, http.MethodGet, api+"/current_user", "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, httputil.CodeUnauthorized, body["code"])

	// Logging out again is fine
	status, _ = call(t, client, http.MethodPost, api+"/logout", "")
	assert.Equal(t, http.StatusOK, status)
}

func TestRouter_ProfileIsProtected(t *testing.T) {
	server, client := newTestServer(t, NewAIProxy(nil, time.Second))

	status, _ := call(t, client, http.MethodPut, server.URL+"/api/profile", `{"displayName":"Alice"}`)
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRouter_HealthAndHeaders(t *testing.T) {
	server, client := newTestServer(t, NewAIProxy(nil, time.Second))

	resp, err := client.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.NotEmpty(t, resp.Header.Get("Strict-Transport-Security"))
}

func TestRouter_SwaggerOnlyInDevelopment(t *testing.T) {
	server, client := newTestServer(t, NewAIProxy(nil, time.Second))

	resp, err := client.Get(server.URL + "/swagger/index.html")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
