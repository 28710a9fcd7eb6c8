package config // package config loads application configuration from environment variables

import (
    "errors"
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"
)

// Config holds all runtime configuration values grouped by concern.  Each
// field corresponds to an environment variable; a .env file is loaded into
// the environment by the binaries before Load runs.
type Config struct {
    App         AppConfig
    HTTP        HTTPConfig
    Store       StoreConfig
    Redis       RedisConfig
    RabbitMQ    RabbitMQConfig
    Auth        AuthConfig
    Reservation ReservationConfig
    Log         LogConfig
}

type AppConfig struct {
    Env  string // application environment (e.g. "dev", "prod")
    Name string // service name used in logs and task queues
}

type HTTPConfig struct {
    Port            string        // HTTP port to listen on
    ShutdownTimeout time.Duration // grace period for in-flight requests
}

// Store drivers.
const (
    DriverMySQL  = "mysql"
    DriverMemory = "memory"
)

type StoreConfig struct {
    Driver  string // "mysql" or "memory"
    DBUser  string // database username
    DBPass  string // database password (optional)
    DBHost  string // database host address
    DBPort  string // database port number
    DBName  string // database name
    Migrate bool   // apply the embedded schema on start
}

type RedisConfig struct {
    Addr     string // host:port of the Redis server
    Password string // optional password
    DB       int    // database number
    TLS      bool   // connect over TLS
    Disabled bool   // skip Redis entirely
}

type RabbitMQConfig struct {
    URL             string // AMQP URL; empty disables messaging
    NotificationLog string // file the notification consumer appends deliveries to
    Consume         bool   // run the notification consumer in this process
}

type AuthConfig struct {
    JWTSecret string // secret used to verify HS256 bearer tokens
    AdminRole string // role that unlocks administrative routes
}

// Sweep modes.
const (
    SweepTicker = "ticker"
    SweepAsynq  = "asynq"
    SweepOff    = "off"
)

type ReservationConfig struct {
    LockTTL             time.Duration // seat lock validity without renewal
    ConfirmWindow       time.Duration // how long a waitlist offer stays open
    RedistributionBatch int           // max offers per manual redistribution
    SweepInterval       time.Duration // period of the expiry sweep
    SweepMode           string        // "ticker", "asynq" or "off"
}

type LogConfig struct {
    Level  string // debug, info, warn or error
    Format string // json or text
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must(); every missing or
// malformed value is reported in the returned error.
func Load() (Config, error) {
    var l loader
    cfg := Config{
        App: AppConfig{
            Env:  envStr("APP_ENV", "dev"),
            Name: envStr("APP_NAME", "event-seat-manager"),
        },
        HTTP: HTTPConfig{
            Port:            envStr("APP_PORT", "8080"),
            ShutdownTimeout: envDur("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
        },
        Store: StoreConfig{
            Driver:  strings.ToLower(envStr("STORE_DRIVER", DriverMySQL)),
            DBPass:  os.Getenv("DB_PASS"),
            Migrate: envBool("DB_MIGRATE", true),
        },
        Redis: RedisConfig{
            Addr:     redisAddr(),
            Password: os.Getenv("REDIS_PASSWORD"),
            DB:       envInt("REDIS_DB", 0),
            TLS:      envBool("REDIS_TLS", false),
            Disabled: envBool("REDIS_DISABLED", false),
        },
        RabbitMQ: RabbitMQConfig{
            URL:             os.Getenv("AMQP_URL"),
            NotificationLog: envStr("NOTIFICATION_LOG", "logs/notifications.log"),
            Consume:         envBool("NOTIFICATION_CONSUMER", true),
        },
        Auth: AuthConfig{
            JWTSecret: l.must("JWT_SECRET"),
            AdminRole: envStr("ADMIN_ROLE", "ADMIN"),
        },
        Reservation: ReservationConfig{
            LockTTL:             l.mustDur("SEAT_LOCK_TTL", 5*time.Minute),
            ConfirmWindow:       l.mustDur("WAITLIST_CONFIRM_WINDOW", 30*time.Minute),
            RedistributionBatch: l.mustInt("WAITLIST_REDISTRIBUTION_BATCH", 5),
            SweepInterval:       l.mustDur("SWEEP_INTERVAL", time.Minute),
            SweepMode:           strings.ToLower(envStr("SWEEP_MODE", SweepTicker)),
        },
        Log: LogConfig{
            Level:  strings.ToLower(envStr("LOG_LEVEL", "info")),
            Format: strings.ToLower(envStr("LOG_FORMAT", "json")),
        },
    }

    switch cfg.Store.Driver {
    case DriverMySQL:
        cfg.Store.DBUser = l.must("DB_USER") // database user
        cfg.Store.DBHost = l.must("DB_HOST") // database host
        cfg.Store.DBPort = l.must("DB_PORT") // database port
        cfg.Store.DBName = l.must("DB_NAME") // database name
    case DriverMemory:
    default:
        l.fail(fmt.Errorf("invalid STORE_DRIVER: %q", cfg.Store.Driver))
    }
    switch cfg.Reservation.SweepMode {
    case SweepTicker, SweepAsynq, SweepOff:
    default:
        l.fail(fmt.Errorf("invalid SWEEP_MODE: %q", cfg.Reservation.SweepMode))
    }
    if cfg.Reservation.SweepMode == SweepAsynq && cfg.Redis.Disabled {
        l.fail(errors.New("SWEEP_MODE=asynq requires Redis"))
    }
    return cfg, l.err()
}

// loader collects configuration errors so that all of them are reported at once.
type loader struct {
    errs []error
}

func (l *loader) fail(err error) { l.errs = append(l.errs, err) }

func (l *loader) err() error { return errors.Join(l.errs...) }

// must retrieves the value of a required environment variable and records
// an error when it is unset or empty.
func (l *loader) must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        l.fail(fmt.Errorf("missing required env var: %s", key))
    }
    return v
}

// mustInt reads an optional positive integer, recording an error when the
// value is set but malformed.
func (l *loader) mustInt(key string, def int) int {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    n, err := strconv.Atoi(s)
    if err != nil || n < 1 {
        l.fail(fmt.Errorf("invalid int for %s: %q", key, s))
        return def
    }
    return n
}

// mustDur is like mustInt for positive durations.
func (l *loader) mustDur(key string, def time.Duration) time.Duration {
    s := os.Getenv(key)
    if s == "" {
        return def
    }
    d, err := time.ParseDuration(s)
    if err != nil || d <= 0 {
        l.fail(fmt.Errorf("invalid duration for %s: %q", key, s))
        return def
    }
    return d
}

// redisAddr resolves REDIS_HOST/REDIS_PORT, falling back to REDIS_ADDR.
func redisAddr() string {
    host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
    if host != "" && port != "" {
        return host + ":" + port
    }
    return envStr("REDIS_ADDR", "localhost:6379")
}
