package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestLoad_MemoryDefaults(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "memory")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "8080", cfg.HTTP.Port)
    assert.Equal(t, DriverMemory, cfg.Store.Driver)
    assert.Equal(t, 5*time.Minute, cfg.Reservation.LockTTL)
    assert.Equal(t, 30*time.Minute, cfg.Reservation.ConfirmWindow)
    assert.Equal(t, 5, cfg.Reservation.RedistributionBatch)
    assert.Equal(t, time.Minute, cfg.Reservation.SweepInterval)
    assert.Equal(t, SweepTicker, cfg.Reservation.SweepMode)
    assert.Equal(t, "ADMIN", cfg.Auth.AdminRole)
    assert.Equal(t, "logs/notifications.log", cfg.RabbitMQ.NotificationLog)
}

func TestLoad_MySQLRequiresConnectionSettings(t *testing.T) {
    t.Setenv("STORE_DRIVER", "mysql")
    t.Setenv("JWT_SECRET", "")
    t.Setenv("DB_USER", "")
    t.Setenv("DB_HOST", "db")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "JWT_SECRET")
    assert.Contains(t, err.Error(), "DB_USER")
    assert.Contains(t, err.Error(), "DB_NAME")
    assert.NotContains(t, err.Error(), "DB_HOST")
}

func TestLoad_InvalidValues(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("WAITLIST_CONFIRM_WINDOW", "soon")
    t.Setenv("WAITLIST_REDISTRIBUTION_BATCH", "0")
    t.Setenv("SWEEP_MODE", "cron")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "WAITLIST_CONFIRM_WINDOW")
    assert.Contains(t, err.Error(), "WAITLIST_REDISTRIBUTION_BATCH")
    assert.Contains(t, err.Error(), "SWEEP_MODE")
}

func TestLoad_Overrides(t *testing.T) {
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "memory")
    t.Setenv("WAITLIST_CONFIRM_WINDOW", "2h")
    t.Setenv("SWEEP_MODE", "ASYNQ")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, 2*time.Hour, cfg.Reservation.ConfirmWindow)
    assert.Equal(t, SweepAsynq, cfg.Reservation.SweepMode)
    assert.Equal(t, "cache:6380", cfg.Redis.Addr)
    assert.Equal(t, "cache:6380", cfg.Redis.Options().Addr)
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    rl := LoadRateLimitConfig()
    assert.Equal(t, 1, rl.Capacity)
    assert.Equal(t, 1, rl.RefillTokens)
    assert.Equal(t, 2*time.Second, rl.RefillInterval)
    assert.Equal(t, 10*time.Second, rl.TTL)
}

func TestLoadCacheConfig(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    cc := LoadCacheConfig()
    assert.True(t, cc.Methods["GET"])
    assert.True(t, cc.Methods["HEAD"])
    assert.Equal(t, 5*time.Second, cc.TTL)
}
