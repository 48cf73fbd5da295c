package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/fromboo/internal/config"
	"github.com/pribylovaa/fromboo/internal/http/handlers"
	"github.com/pribylovaa/fromboo/internal/metrics"
	"github.com/pribylovaa/fromboo/internal/ratelimit"
	"github.com/pribylovaa/fromboo/internal/service"
	"github.com/pribylovaa/fromboo/internal/storage/memory"
	"github.com/pribylovaa/fromboo/internal/token"
)

type envelope struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id"`
	} `json:"error"`
}

type testApp struct {
	handler http.Handler
	store   *memory.Storage
	reg     *prometheus.Registry
}

func authCfg() config.AuthConfig {
	return config.AuthConfig{
		SigningSecret:         "router-test-secret",
		AccessTokenTTLMinutes: 30,
		RefreshTokenTTLDays:   30,
		SignatureAlgorithm:    "HS256",
	}
}

func newTestApp(t *testing.T, cfg config.AuthConfig, limiter ratelimit.Limiter) *testApp {
	t.Helper()
	return newTestAppWithProxy(t, cfg, limiter, false)
}

func newTestAppWithProxy(t *testing.T, cfg config.AuthConfig, limiter ratelimit.Limiter, trustProxy bool) *testApp {
	t.Helper()

	codec, err := token.New(token.Config{Secret: cfg.SigningSecret, Algorithm: cfg.SignatureAlgorithm})
	require.NoError(t, err)

	st := memory.New()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := service.New(st, codec, cfg)

	h := NewRouter(svc, Options{
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Timeout: 5 * time.Second,
		Cookie: config.CookieConfig{
			Name:     "refresh_token",
			Path:     "/",
			SameSite: "lax",
		},
		AllowedOrigins:    []string{"http://localhost:8000"},
		TrustProxyHeaders: trustProxy,
		Limiter:           limiter,
		Metrics:           m,
	})

	return &testApp{handler: h, store: st, reg: reg}
}

func (a *testApp) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	req.RemoteAddr = "192.0.2.10:5555"
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func (a *testApp) register(t *testing.T, name, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"name":"` + name + `","email":"` + email + `","password":"` + password + `"}`
	req := httptest.NewRequest(http.MethodPost, "/user/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return a.do(t, req)
}

func (a *testApp) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	return a.loginVia(t, username, password, "")
}

// loginVia выполняет вход с заголовком X-Forwarded-For (если не пуст).
func (a *testApp) loginVia(t *testing.T, username, password, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/login/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	return a.do(t, req)
}

func (a *testApp) storedClientAddress(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	id, err := uuid.Parse(refreshCookie(t, rr).Value)
	require.NoError(t, err)

	rt, err := a.store.RefreshTokenByValue(context.Background(), id)
	require.NoError(t, err)
	return rt.ClientAddress
}

func (a *testApp) refresh(t *testing.T, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/login/refresh", nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return a.do(t, req)
}

func (a *testApp) getUser(t *testing.T, accessToken string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/user/get-user", nil)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return a.do(t, req)
}

func refreshCookie(t *testing.T, rr *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rr.Result().Cookies() {
		if c.Name == "refresh_token" {
			return c
		}
	}
	t.Fatalf("refresh_token cookie not set")
	return nil
}

func decodeTokens(t *testing.T, rr *httptest.ResponseRecorder) handlers.TokenResponse {
	t.Helper()
	var out handlers.TokenResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestAliceSessionLifecycle(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	rr := app.register(t, "Alice", "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var created handlers.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	require.Equal(t, "alice@example.com", created.Email)
	require.True(t, created.IsActive)
	require.NotEqual(t, uuid.Nil, created.UserID)

	// 1) login: access-токен в теле, refresh - только в HttpOnly cookie.
	rr = app.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	require.NotContains(t, rr.Body.String(), "refresh")

	tokens := decodeTokens(t, rr)
	require.Equal(t, "bearer", tokens.TokenType)
	require.NotEmpty(t, tokens.AccessToken)
	require.WithinDuration(t, time.Now().Add(30*time.Minute), tokens.Exp, 5*time.Second)

	r1 := refreshCookie(t, rr)
	require.True(t, r1.HttpOnly)
	require.Equal(t, "/", r1.Path)
	require.Equal(t, http.SameSiteLaxMode, r1.SameSite)
	require.WithinDuration(t, time.Now().Add(30*24*time.Hour), r1.Expires, 5*time.Second)
	_, err := uuid.Parse(r1.Value)
	require.NoError(t, err)

	// 2) защищённый эндпойнт.
	rr = app.getUser(t, tokens.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var me handlers.UserResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &me))
	require.Equal(t, created, me)

	// 3) refresh с R1 выдаёт R2.
	rr = app.refresh(t, r1)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	r2 := refreshCookie(t, rr)
	require.NotEqual(t, r1.Value, r2.Value)

	refreshed := decodeTokens(t, rr)
	rr = app.getUser(t, refreshed.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code)

	// 4) R1 больше не действует.
	rr = app.refresh(t, r1)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	require.Equal(t, "unauthenticated", decodeError(t, rr).Error.Code)

	// 5) R2 по-прежнему действует.
	rr = app.refresh(t, r2)
	require.Equal(t, http.StatusOK, rr.Code)

	const want = `
# HELP auth_events_total Authentication events by kind and result.
# TYPE auth_events_total counter
auth_events_total{event="login",result="success"} 1
auth_events_total{event="refresh",result="failure"} 1
auth_events_total{event="refresh",result="success"} 2
auth_events_total{event="register",result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(app.reg, strings.NewReader(want), "auth_events_total"))
}

func TestLogin_WrongPasswordAndUnknownEmail_Indistinguishable(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)
	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)

	wrong := app.login(t, "alice@example.com", "wrong-pw")
	unknown := app.login(t, "nobody@example.com", "correct-pw")

	require.Equal(t, http.StatusUnauthorized, wrong.Code)
	require.Equal(t, wrong.Code, unknown.Code)

	ew, eu := decodeError(t, wrong), decodeError(t, unknown)
	require.Equal(t, ew.Error.Code, eu.Error.Code)
	require.Equal(t, ew.Error.Message, eu.Error.Message)
	require.Equal(t, "invalid credentials", ew.Error.Message)
	require.Empty(t, wrong.Result().Cookies())
	require.Empty(t, unknown.Result().Cookies())
}

func TestLogin_MissingFields(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	rr := app.login(t, "", "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRefresh_Rejections(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "missing_cookie", cookie: nil},
		{name: "garbage", cookie: &http.Cookie{Name: "refresh_token", Value: "garbage"}},
		{name: "unknown", cookie: &http.Cookie{Name: "refresh_token", Value: uuid.NewString()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := app.refresh(t, tt.cookie)
			require.Equal(t, http.StatusUnauthorized, rr.Code)
			require.Equal(t, "unauthenticated", decodeError(t, rr).Error.Code)
		})
	}
}

func TestRefresh_ExpiredRefreshToken(t *testing.T) {
	cfg := authCfg()
	cfg.RefreshTokenTTLDays = 0
	app := newTestApp(t, cfg, nil)

	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)
	rr := app.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = app.refresh(t, refreshCookie(t, rr))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// клиенту возвращается просроченная cookie, чтобы он её забыл.
	c := refreshCookie(t, rr)
	require.Empty(t, c.Value)
	require.Equal(t, -1, c.MaxAge)
}

func TestAccessToken_ZeroTTL_Rejected(t *testing.T) {
	cfg := authCfg()
	cfg.AccessTokenTTLMinutes = 0
	app := newTestApp(t, cfg, nil)

	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)
	rr := app.login(t, "alice@example.com", "correct-pw")
	require.Equal(t, http.StatusOK, rr.Code)

	rr = app.getUser(t, decodeTokens(t, rr).AccessToken)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestGetUser_Guard(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	rr := app.getUser(t, "")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))

	rr = app.getUser(t, "not.a.jwt")
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	// токен удалённого пользователя.
	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)
	login := app.login(t, "alice@example.com", "correct-pw")
	access := decodeTokens(t, login).AccessToken

	ctx := context.Background()
	u, err := app.store.UserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, app.store.DeleteUser(ctx, u.ID))

	rr = app.getUser(t, access)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateUser_Errors(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)

	rr := app.register(t, "Alice2", "ALICE@example.com", "another-pw")
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = app.register(t, "Bob", "not-an-email", "correct-pw")
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, service.ErrInvalidEmail.Error(), decodeError(t, rr).Error.Message)

	rr = app.register(t, "Bob", "bob@example.com", "short")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = app.register(t, "Bob", "bob@example.com", strings.Repeat("p", 80))
	require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
	require.Equal(t, "invalid_argument", decodeError(t, rr).Error.Code)
	require.Equal(t, service.ErrPasswordTooLong.Error(), decodeError(t, rr).Error.Message)

	rr = app.register(t, "Bob", "bob@example.com", strings.Repeat("p", 72))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/user/", strings.NewReader(`{"name":"x","unknown":1}`))
	rr = app.do(t, req)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLogin_RateLimited(t *testing.T) {
	app := newTestApp(t, authCfg(), ratelimit.NewLocal(2, time.Minute))

	require.Equal(t, http.StatusUnauthorized, app.login(t, "a@b.com", "x").Code)
	require.Equal(t, http.StatusUnauthorized, app.login(t, "a@b.com", "x").Code)

	rr := app.login(t, "a@b.com", "x")
	require.Equal(t, http.StatusTooManyRequests, rr.Code)
	require.Equal(t, "resource_exhausted", decodeError(t, rr).Error.Code)

	const want = `
# HELP http_rate_limited_total Requests rejected by the rate limiter.
# TYPE http_rate_limited_total counter
http_rate_limited_total{route="/login/token"} 1
`
	require.NoError(t, testutil.GatherAndCompare(app.reg, strings.NewReader(want), "http_rate_limited_total"))

	// регистрация лимитом не покрыта.
	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)
}

func TestRouter_NotFoundAndMethod(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	rr := app.do(t, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Equal(t, "not_found", decodeError(t, rr).Error.Code)

	rr = app.do(t, httptest.NewRequest(http.MethodGet, "/login/token", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestRouter_RequestIDInErrorBody(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)

	req := httptest.NewRequest(http.MethodPost, "/login/refresh", nil)
	req.Header.Set("X-Request-Id", "rid-42")
	rr := app.do(t, req)

	require.Equal(t, "rid-42", rr.Header().Get("X-Request-Id"))
	require.Equal(t, "rid-42", decodeError(t, rr).Error.RequestID)
}

func TestLogin_RateLimit_IgnoresForwardedForByDefault(t *testing.T) {
	app := newTestApp(t, authCfg(), ratelimit.NewLocal(2, time.Minute))

	var codes []int
	for i := 0; i < 6; i++ {
		rr := app.loginVia(t, "a@b.com", "x", fmt.Sprintf("203.0.113.%d", i+1))
		codes = append(codes, rr.Code)
	}

	require.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestLogin_ClientAddress_FromSocketByDefault(t *testing.T) {
	app := newTestApp(t, authCfg(), nil)
	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)

	rr := app.loginVia(t, "alice@example.com", "correct-pw", "203.0.113.7")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "192.0.2.10", app.storedClientAddress(t, rr))
}

func TestLogin_TrustedProxyHeaders(t *testing.T) {
	app := newTestAppWithProxy(t, authCfg(), ratelimit.NewLocal(1, time.Minute), true)
	require.Equal(t, http.StatusOK, app.register(t, "Alice", "alice@example.com", "correct-pw").Code)

	// разные клиенты за одним прокси лимитируются раздельно.
	rr := app.loginVia(t, "alice@example.com", "correct-pw", "203.0.113.7")
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "203.0.113.7", app.storedClientAddress(t, rr))

	require.Equal(t, http.StatusUnauthorized, app.loginVia(t, "a@b.com", "x", "203.0.113.8").Code)
	require.Equal(t, http.StatusTooManyRequests, app.loginVia(t, "a@b.com", "x", "203.0.113.8").Code)
}
