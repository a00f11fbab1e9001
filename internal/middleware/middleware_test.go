package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/calculations-api/internal/config"
	"github.com/iliyamo/calculations-api/internal/logger"
	"github.com/iliyamo/calculations-api/internal/model"
	"github.com/iliyamo/calculations-api/internal/service"
	"github.com/iliyamo/calculations-api/internal/utils"
)

type fakeAuth struct {
	token string
	user  model.User
	err   error
}

func (f fakeAuth) CurrentActiveUser(_ context.Context, raw string) (model.User, *utils.Claims, error) {
	if f.err != nil {
		return model.User{}, nil, f.err
	}
	if raw != f.token {
		return model.User{}, nil, service.ErrUnauthorized
	}
	return f.user, &utils.Claims{Type: utils.AccessToken}, nil
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		token  string
		ok     bool
	}{
		"valid":        {"Bearer abc", "abc", true},
		"lower scheme": {"bearer abc", "abc", true},
		"empty":        {"", "", false},
		"no token":     {"Bearer ", "", false},
		"basic":        {"Basic dXNlcjpwdw==", "", false},
		"no space":     {"Bearerabc", "", false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			tok, ok := bearerToken(tc.header)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.token, tok)
		})
	}
}

func runAuth(t *testing.T, auth Authenticator, header string) (echo.Context, bool, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/calculations", nil)
	if header != "" {
		req.Header.Set(echo.HeaderAuthorization, header)
	}
	c := e.NewContext(req, httptest.NewRecorder())
	called := false
	err := BearerAuth(auth)(func(c echo.Context) error {
		called = true
		return nil
	})(c)
	return c, called, err
}

func TestBearerAuth(t *testing.T) {
	auth := fakeAuth{token: "good", user: model.User{ID: "u1", Username: "alice", IsActive: true}}

	c, called, err := runAuth(t, auth, "Bearer good")
	require.NoError(t, err)
	assert.True(t, called)
	u, ok := CurrentUser(c)
	require.True(t, ok)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "u1", c.Get("user_id"))
	_, ok = TokenClaims(c)
	assert.True(t, ok)

	_, called, err = runAuth(t, auth, "")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.False(t, called)

	_, called, err = runAuth(t, auth, "Bearer bad")
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.False(t, called)
}

func TestBearerAuth_PassesThroughInternalErrors(t *testing.T) {
	boom := errors.New("redis down")
	_, called, err := runAuth(t, fakeAuth{err: boom}, "Bearer x")
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestCurrentUser_Missing(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	_, ok := CurrentUser(c)
	assert.False(t, ok)
	_, ok = TokenClaims(c)
	assert.False(t, ok)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := logger.New(&buf, "server", zerolog.DebugLevel)

	e := echo.New()
	e.Use(RequestLogger(base))
	var seen string
	e.GET("/ok", func(c echo.Context) error {
		logger.FromContext(c.Request().Context()).Info().Msg("inside")
		seen = c.Response().Header().Get(echo.HeaderXRequestID)
		return c.NoContent(http.StatusOK)
	})
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "nope")
	})

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set(echo.HeaderXRequestID, "req-1")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, "req-1", seen)
	assert.Equal(t, "req-1", rec.Header().Get(echo.HeaderXRequestID))

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fail", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))

	var entries []map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		entries = append(entries, m)
	}
	require.Len(t, entries, 3)
	assert.Equal(t, "inside", entries[0]["message"])
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, "request", entries[1]["message"])
	assert.Equal(t, float64(http.StatusOK), entries[1]["status"])
	assert.Equal(t, float64(http.StatusTeapot), entries[2]["status"])
	assert.Equal(t, "server", entries[2]["role"])
}

func rateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		Capacity:       2,
		RefillTokens:   1,
		RefillInterval: time.Minute,
		TTL:            10 * time.Minute,
		KeyStrategy:    "ip_route",
		Prefix:         "rl",
	}
}

func newLimitedEcho(cfg config.RateLimitConfig, rdb redis.Scripter) *echo.Echo {
	e := echo.New()
	limited := RateLimit(cfg, rdb)
	e.POST("/auth/login", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, limited)
	e.POST("/auth/register", func(c echo.Context) error { return c.NoContent(http.StatusCreated) }, limited)
	return e
}

func post(e *echo.Echo, path, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, nil)
	req.RemoteAddr = ip + ":5555"
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterCapacity(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	e := newLimitedEcho(rateLimitConfig(), rdb)

	first := post(e, "/auth/login", "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, post(e, "/auth/login", "10.0.0.1").Code)

	blocked := post(e, "/auth/login", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.NotEmpty(t, blocked.Header().Get("Retry-After"))
	assert.Contains(t, blocked.Body.String(), `"detail"`)

	// other client and other route have their own buckets
	assert.Equal(t, http.StatusOK, post(e, "/auth/login", "10.0.0.2").Code)
	assert.Equal(t, http.StatusCreated, post(e, "/auth/register", "10.0.0.1").Code)

	assert.True(t, mr.Exists("rl:ip:10.0.0.1:route:POST /auth/login"))
}

func TestRateLimit_Disabled(t *testing.T) {
	cfg := rateLimitConfig()
	cfg.Enabled = false
	e := newLimitedEcho(cfg, nil)

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, post(e, "/auth/login", "10.0.0.1").Code)
	}
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()
	e := newLimitedEcho(rateLimitConfig(), rdb)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, post(e, "/auth/login", "10.0.0.1").Code)
	}
}
