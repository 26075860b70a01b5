package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DDDDDaryl/question-bank/internal/auth"
	"github.com/DDDDDaryl/question-bank/internal/store"
)

type testEnv struct {
	srv       *Server
	users     *auth.MemoryUserStore
	questions *store.MemoryQuestionStore
	mistakes  *store.MemoryMistakeStore
	settings  *store.MemorySettingsStore
}

const (
	testSecret    = "test-secret"
	testAdminCode = "let-me-in"
)

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	env := &testEnv{
		users:     auth.NewMemoryUserStore(),
		questions: store.NewMemoryQuestionStore(),
		mistakes:  store.NewMemoryMistakeStore(),
		settings:  store.NewMemorySettingsStore(),
	}
	if cfg.JWTSecret == nil {
		cfg.JWTSecret = []byte(testSecret)
	}
	if cfg.AdminRegistrationCode == "" {
		cfg.AdminRegistrationCode = testAdminCode
	}
	srv, err := New(context.Background(), cfg, Stores{
		Users:     env.users,
		Questions: env.questions,
		Mistakes:  env.mistakes,
		Settings:  env.settings,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.srv = srv
	return env
}

// reqCounter hands every test request its own client address so the
// per-IP rate limiters never interfere with functional tests.
var reqCounter int64

func (e *testEnv) do(t *testing.T, method, path string, body any, session *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	n := atomic.AddInt64(&reqCounter, 1)
	req.RemoteAddr = fmt.Sprintf("203.0.%d.%d:4242", (n/250)%250, n%250+1)
	if session != nil {
		req.AddCookie(session)
	}
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c
		}
	}
	t.Fatal("no session cookie in response")
	return nil
}

func jsonBody(t *testing.T, v any) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		t.Fatalf("encode body: %v", err)
	}
	return &buf
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// register creates an account through the HTTP surface and returns its
// session cookie.
func (e *testEnv) register(t *testing.T, username, email, password, code string) *http.Cookie {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username":         username,
		"email":            email,
		"password":         password,
		"registrationCode": code,
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: status = %d, body %s", username, rec.Code, rec.Body.String())
	}
	return sessionCookie(t, rec)
}

func TestHealthIsPublic(t *testing.T) {
	env := newTestEnv(t, Config{})
	for _, path := range []string{"/health", "/api/health"} {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rec.Code)
		}
	}
}

func TestGateBlocksWithoutCookie(t *testing.T) {
	env := newTestEnv(t, Config{})
	paths := []string{
		"/api/questions",
		"/api/questions/random",
		"/api/mistakes",
		"/api/user/profile",
		"/api/admin/users",
	}
	for _, path := range paths {
		rec := env.do(t, http.MethodGet, path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without cookie = %d, want 401", path, rec.Code)
			continue
		}
		resp := decodeResponse(t, rec)
		if resp.Success || resp.Message != "unauthorized" {
			t.Errorf("GET %s body = %+v", path, resp)
		}
	}
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	env := newTestEnv(t, Config{})

	cookie := env.register(t, "alice", "alice@example.com", "Passw0rd", "")

	rec := env.do(t, http.MethodGet, "/api/questions", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated request = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout = %d", rec.Code)
	}
	cleared := sessionCookie(t, rec)
	if cleared.Value != "" || cleared.MaxAge >= 0 {
		t.Errorf("logout cookie not cleared: %+v", cleared)
	}

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "Passw0rd",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d, body %s", rec.Code, rec.Body.String())
	}
	fresh := sessionCookie(t, rec)
	if !fresh.HttpOnly {
		t.Error("session cookie is not HttpOnly")
	}
	if fresh.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", fresh.SameSite)
	}

	rec = env.do(t, http.MethodGet, "/api/user/profile", nil, fresh)
	if rec.Code != http.StatusOK {
		t.Fatalf("profile after login = %d", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t, Config{})

	cases := []struct {
		name string
		body map[string]string
	}{
		{"missing fields", map[string]string{"username": "x"}},
		{"bad email", map[string]string{"username": "x", "email": "not-an-email", "password": "Passw0rd"}},
		{"weak password", map[string]string{"username": "x", "email": "x@example.com", "password": "short"}},
		{"no digit", map[string]string{"username": "x", "email": "x@example.com", "password": "Passwords"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/auth/register", tc.body, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}

	env.register(t, "alice", "alice@example.com", "Passw0rd", "")
	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "Passw0rd",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate username = %d, want 400", rec.Code)
	}
}

func TestRegistrationCanBeDisabled(t *testing.T) {
	env := newTestEnv(t, Config{})
	if _, err := env.settings.Update(context.Background(), false); err != nil {
		t.Fatalf("settings: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"username": "alice", "email": "alice@example.com", "password": "Passw0rd",
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestAdminRegistrationCode(t *testing.T) {
	env := newTestEnv(t, Config{})

	admin := env.register(t, "root", "root@example.com", "Passw0rd", testAdminCode)
	rec := env.do(t, http.MethodGet, "/api/admin/check", nil, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin check with code = %d", rec.Code)
	}

	user := env.register(t, "alice", "alice@example.com", "Passw0rd", "wrong-code")
	rec = env.do(t, http.MethodGet, "/api/admin/check", nil, user)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("admin check without code = %d, want 403", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Message != "admin access required" {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.register(t, "alice", "alice@example.com", "Passw0rd", "")

	// Wrong password and unknown account share one message so an
	// attacker cannot probe which emails exist.
	wrongPw := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "WrongPw1",
	}, nil)
	unknown := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "nobody@example.com", "password": "Passw0rd",
	}, nil)

	for _, rec := range []*httptest.ResponseRecorder{wrongPw, unknown} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	}
	if decodeResponse(t, wrongPw).Message != decodeResponse(t, unknown).Message {
		t.Error("login failure messages differ between causes")
	}
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.register(t, "alice", "alice@example.com", "Passw0rd", "")

	u, err := env.users.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if err := env.users.SetActive(context.Background(), u.ID, false); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Passw0rd",
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestExpiredSessionRejected(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.register(t, "alice", "alice@example.com", "Passw0rd", "")

	u, err := env.users.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	// A signer with the same secret but a window that has already
	// closed produces a structurally valid, expired token.
	expired := auth.NewSigner([]byte(testSecret), "question-bank", time.Nanosecond)
	tok, _, err := expired.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	rec := env.do(t, http.MethodGet, "/api/user/profile", nil, &http.Cookie{Name: auth.CookieName, Value: tok})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if decodeResponse(t, rec).Message != "unauthorized" {
		t.Error("expired token leaks a distinct message")
	}
}

func TestForeignSecretRejected(t *testing.T) {
	env := newTestEnv(t, Config{})
	env.register(t, "alice", "alice@example.com", "Passw0rd", "")

	u, err := env.users.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	forger := auth.NewSigner([]byte("not-the-server-secret"), "question-bank", time.Hour)
	tok, _, err := forger.Issue(u)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	rec := env.do(t, http.MethodGet, "/api/user/profile", nil, &http.Cookie{Name: auth.CookieName, Value: tok})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestPreflightShortCircuits(t *testing.T) {
	env := newTestEnv(t, Config{})
	rec := env.do(t, http.MethodOptions, "/api/questions", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") == "" {
		t.Error("missing CORS headers on preflight")
	}
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t, Config{})

	rec := env.do(t, http.MethodGet, "/health", nil, nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("no X-Request-ID generated")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "rid-42")
	echo := httptest.NewRecorder()
	env.srv.ServeHTTP(echo, req)
	if echo.Header().Get("X-Request-ID") != "rid-42" {
		t.Errorf("request id not echoed: %q", echo.Header().Get("X-Request-ID"))
	}
}

func TestSeedUsers(t *testing.T) {
	env := newTestEnv(t, Config{
		SeedUsers: []SeedUser{
			{Username: "root", Email: "root@example.com", Password: "RootPass1", Role: auth.RoleAdmin},
		},
	})

	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]string{
		"email": "root@example.com", "password": "RootPass1",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("seeded login = %d, body %s", rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(t, rec)

	check := env.do(t, http.MethodGet, "/api/admin/check", nil, cookie)
	if check.Code != http.StatusOK {
		t.Fatalf("seeded admin check = %d", check.Code)
	}
}
