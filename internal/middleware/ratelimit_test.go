package middleware

import (
    "errors"
    "net/http"
    "net/http/httptest"
    "testing"
    "time"

    "github.com/go-redis/redismock/v9"
    "github.com/labstack/echo/v4"
    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/event-seat-manager/internal/config"
)

func limiterConfig() config.RateLimitConfig {
    return config.RateLimitConfig{
        Enabled:        true,
        Capacity:       2,
        RefillTokens:   1,
        RefillInterval: time.Second,
        TTL:            10 * time.Minute,
        KeyStrategy:    "user",
        Prefix:         "rl",
    }
}

func limiterArgs(now time.Time) []interface{} {
    return []interface{}{now.UnixMilli(), 2, 1, int64(1000), int64(600)}
}

func runLimited(t *testing.T, mw echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool) {
    t.Helper()
    e := echo.New()
    rec := httptest.NewRecorder()
    c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/invitations", nil), rec)
    c.Set(ContextEmail, "ana@example.com")
    called := false
    err := mw(func(c echo.Context) error {
        called = true
        return c.NoContent(http.StatusCreated)
    })(c)
    require.NoError(t, err)
    return rec, called
}

func TestTokenBucket_Allows(t *testing.T) {
    rdb, mock := redismock.NewClientMock()
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"rl:user:ana@example.com"}, limiterArgs(now)...).
        SetVal([]interface{}{int64(1), int64(1), int64(0)})

    rec, called := runLimited(t, newTokenBucket(limiterConfig(), rdb, func() time.Time { return now }))

    assert.True(t, called)
    assert.Equal(t, http.StatusCreated, rec.Code)
    assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
    assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_Blocks(t *testing.T) {
    rdb, mock := redismock.NewClientMock()
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"rl:user:ana@example.com"}, limiterArgs(now)...).
        SetVal([]interface{}{int64(0), int64(0), int64(1500)})

    rec, called := runLimited(t, newTokenBucket(limiterConfig(), rdb, func() time.Time { return now }))

    assert.False(t, called)
    assert.Equal(t, http.StatusTooManyRequests, rec.Code)
    assert.Equal(t, "2", rec.Header().Get("Retry-After"))
    assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenBucket_FailsOpen(t *testing.T) {
    rdb, mock := redismock.NewClientMock()
    now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
    mock.ExpectEvalSha(tokenBucketScript.Hash(), []string{"rl:user:ana@example.com"}, limiterArgs(now)...).
        SetErr(errors.New("connection refused"))

    rec, called := runLimited(t, newTokenBucket(limiterConfig(), rdb, func() time.Time { return now }))

    assert.True(t, called)
    assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestTokenBucket_DisabledWithoutRedis(t *testing.T) {
    _, called := runLimited(t, NewTokenBucket(limiterConfig(), nil))
    assert.True(t, called)
}

func TestBuildRateKey(t *testing.T) {
    e := echo.New()
    req := httptest.NewRequest(http.MethodGet, "/api/events/3", nil)
    req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
    c := e.NewContext(req, httptest.NewRecorder())
    c.SetPath("/api/events/:id")

    cfg := limiterConfig()
    cfg.KeyStrategy = "ip_user_route"
    assert.Equal(t, "rl:ip:10.0.0.9:user:anon:route:GET /api/events/:id", buildRateKey(cfg, c))

    cfg.KeyStrategy = "ip"
    assert.Equal(t, "rl:ip:10.0.0.9", buildRateKey(cfg, c))
}
