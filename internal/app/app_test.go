package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-manager/internal/config"
)

func memoryConfig() config.Config {
	return config.Config{
		App:   config.AppConfig{Env: "test", Name: "event-seat-manager"},
		HTTP:  config.HTTPConfig{Port: "0", ShutdownTimeout: time.Second},
		Store: config.StoreConfig{Driver: config.DriverMemory},
		Redis: config.RedisConfig{Disabled: true},
		Auth:  config.AuthConfig{JWTSecret: "s3cret", AdminRole: "ADMIN"},
		Reservation: config.ReservationConfig{
			LockTTL:             5 * time.Minute,
			ConfirmWindow:       30 * time.Minute,
			RedistributionBatch: 5,
			SweepInterval:       time.Minute,
			SweepMode:           config.SweepTicker,
		},
		Log: config.LogConfig{Level: "error"},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_MemoryStoreServesRoutes(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), quietLogger())
	require.NoError(t, err)
	require.NotNil(t, a.Manager())
	assert.Nil(t, a.redisHub)
	assert.Nil(t, a.publisher)

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/events", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), quietLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestRun_AsynqNeedsRedis(t *testing.T) {
	cfg := memoryConfig()
	cfg.Reservation.SweepMode = config.SweepAsynq
	a, err := New(context.Background(), cfg, quietLogger())
	require.NoError(t, err)
	assert.Error(t, a.Run(context.Background()))
}

func TestNew_UnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Store.Driver = "sqlite"
	_, err := New(context.Background(), cfg, quietLogger())
	assert.Error(t, err)
}

func TestNewLogger_Levels(t *testing.T) {
	log := NewLogger(config.LogConfig{Level: "warn", Format: "text"})
	assert.False(t, log.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, log.Enabled(context.Background(), slog.LevelWarn))

	log = NewLogger(config.LogConfig{Level: "bogus"})
	assert.True(t, log.Enabled(context.Background(), slog.LevelInfo))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "store=memory sweep=ticker redis=off", describe(memoryConfig()))
}
