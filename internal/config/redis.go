package config

// Redis backs distributed rate limiting, response caching, change fan-out
// to event streams and the asynq sweep queue.  If the server cannot be
// reached at startup NewRedisClient returns nil and callers degrade
// gracefully to in-process behaviour.

import (
    "context"
    "crypto/tls"
    "time"

    "github.com/redis/go-redis/v9"
)

// Options converts the settings into go-redis client options.
func (c RedisConfig) Options() *redis.Options {
    opts := &redis.Options{
        Addr:     c.Addr,
        Password: c.Password,
        DB:       c.DB,
    }
    if c.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    return opts
}

// NewRedisClient connects to Redis and pings it with a short timeout.  The
// returned client is nil when Redis is disabled or unreachable.
func NewRedisClient(c RedisConfig) *redis.Client {
    if c.Disabled {
        return nil
    }
    client := redis.NewClient(c.Options())
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        client.Close()
        return nil
    }
    return client
}
