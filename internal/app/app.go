// Package app wires configuration, storage, messaging and the HTTP server
// into one runnable process.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-manager/internal/broadcast"
	"github.com/iliyamo/event-seat-manager/internal/config"
	"github.com/iliyamo/event-seat-manager/internal/database"
	"github.com/iliyamo/event-seat-manager/internal/handler"
	"github.com/iliyamo/event-seat-manager/internal/middleware"
	"github.com/iliyamo/event-seat-manager/internal/queue"
	"github.com/iliyamo/event-seat-manager/internal/repository"
	"github.com/iliyamo/event-seat-manager/internal/reservation"
	"github.com/iliyamo/event-seat-manager/internal/router"
	"github.com/iliyamo/event-seat-manager/internal/scheduler"
	"github.com/iliyamo/event-seat-manager/internal/tasks"
)

type App struct {
	cfg       config.Config
	log       *slog.Logger
	db        *sql.DB
	rdb       *redis.Client
	hub       *broadcast.Hub
	redisHub  *broadcast.RedisHub
	publisher *queue.Publisher
	manager   *reservation.Manager
	echo      *echo.Echo
}

// NewLogger builds the process logger from the log settings.
func NewLogger(c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// New connects every backing service named by cfg and builds the HTTP
// server.  Redis and RabbitMQ are optional; without them the process
// falls back to in-process fan-out and no notifications.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.Log)
	}
	a := &App{cfg: cfg, log: log}

	store, err := a.initStore(ctx)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	a.initRedis()

	opts := []reservation.Option{reservation.WithLogger(log)}
	if a.rdb != nil {
		a.redisHub = broadcast.NewRedisHub(a.rdb, log)
		a.hub = a.redisHub.Hub
		opts = append(opts, reservation.WithBroadcaster(a.redisHub))
	} else {
		a.hub = broadcast.NewHub()
		opts = append(opts, reservation.WithBroadcaster(a.hub))
	}
	if cfg.RabbitMQ.URL != "" {
		a.publisher = queue.NewPublisher(cfg.RabbitMQ.URL, log)
		opts = append(opts, reservation.WithNotifier(a.publisher))
	} else {
		log.Warn("AMQP_URL not set; waitlist notifications are disabled")
	}

	a.manager = reservation.NewManager(store, reservation.Config{
		LockTTL:             cfg.Reservation.LockTTL,
		ConfirmWindow:       cfg.Reservation.ConfirmWindow,
		RedistributionBatch: cfg.Reservation.RedistributionBatch,
	}, opts...)

	a.initHTTP()
	return a, nil
}

// Manager exposes the reservation manager to command-line tools.
func (a *App) Manager() *reservation.Manager { return a.manager }

func (a *App) initStore(ctx context.Context) (repository.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverMemory:
		a.log.Warn("using in-memory store; data is lost on restart")
		return repository.NewMemoryStore(), nil
	case config.DriverMySQL:
		s := a.cfg.Store
		db, err := database.Open(ctx, s)
		if err != nil {
			return nil, fmt.Errorf("connect mysql: %w", err)
		}
		a.db = db
		if s.Migrate {
			if err := database.Migrate(ctx, db); err != nil {
				db.Close()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			a.log.Info("schema applied")
		}
		a.log.Info("database connected", "host", s.DBHost, "port", s.DBPort, "database", s.DBName)
		return repository.NewMySQLStore(db), nil
	}
	return nil, fmt.Errorf("unknown store driver %q", a.cfg.Store.Driver)
}

func (a *App) initRedis() {
	if a.cfg.Redis.Disabled {
		return
	}
	a.rdb = config.NewRedisClient(a.cfg.Redis)
	if a.rdb == nil {
		a.log.Warn("redis unreachable; rate limiting, caching and cross-replica streams are off", "addr", a.cfg.Redis.Addr)
		return
	}
	a.log.Info("redis connected", "addr", a.cfg.Redis.Addr)
}

func (a *App) initHTTP() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(a.log))

	opts := router.Options{JWTSecret: a.cfg.Auth.JWTSecret, AdminRole: a.cfg.Auth.AdminRole}
	if a.rdb != nil {
		opts.RateLimit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), a.rdb)
		opts.Cache = middleware.NewRedisCache(config.LoadCacheConfig(), a.rdb)
	}
	var pinger handler.Pinger
	if a.db != nil {
		pinger = a.db
	}
	router.Register(e, pinger, router.Handlers{
		Events:      handler.NewEventHandler(a.manager, a.log),
		Invitations: handler.NewInvitationHandler(a.manager, a.cfg.Auth.AdminRole, a.log),
		Waitlist:    handler.NewWaitlistHandler(a.manager, a.log),
		Stream:      handler.NewStreamHandler(a.manager, a.hub, a.log),
	}, opts)
	a.echo = e
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			level := slog.LevelInfo
			if v.Error != nil || v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			if email := middleware.Email(c); email != "" {
				attrs = append(attrs, slog.String("email", email))
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// Run serves HTTP and runs the background workers until ctx is done or
// one of them fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.cfg.Reservation.SweepMode == config.SweepAsynq && a.rdb == nil {
		return errors.New("asynq sweep needs a reachable redis")
	}
	g, ctx := errgroup.WithContext(ctx)

	addr := ":" + a.cfg.HTTP.Port
	g.Go(func() error {
		a.log.Info("http server starting", "addr", addr, "env", a.cfg.App.Env, "mode", describe(a.cfg))
		if err := a.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		a.log.Info("http server stopped")
		return nil
	})

	switch a.cfg.Reservation.SweepMode {
	case config.SweepTicker:
		g.Go(func() error {
			scheduler.New(a.manager, a.cfg.Reservation.SweepInterval, a.log).Start(ctx)
			return nil
		})
	case config.SweepAsynq:
		g.Go(func() error {
			return tasks.Run(ctx, redisOpt(a.cfg.Redis), a.manager, a.cfg.Reservation.SweepInterval, a.log)
		})
	}
	if a.redisHub != nil {
		g.Go(func() error { return a.redisHub.Run(ctx) })
	}
	if a.cfg.RabbitMQ.URL != "" && a.cfg.RabbitMQ.Consume {
		c := queue.NewConsumer(a.cfg.RabbitMQ.URL, a.cfg.RabbitMQ.NotificationLog, a.log)
		g.Go(func() error { return c.Run(ctx) })
	}

	err := g.Wait()
	if cerr := a.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// Close releases every connection opened by New.
func (a *App) Close() error {
	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.rdb != nil {
		errs = append(errs, a.rdb.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	a.log.Info("app stopped")
	return errors.Join(errs...)
}

func redisOpt(c config.RedisConfig) asynq.RedisClientOpt {
	o := c.Options()
	return asynq.RedisClientOpt{
		Addr:      o.Addr,
		Password:  o.Password,
		DB:        o.DB,
		TLSConfig: o.TLSConfig,
	}
}

// describe summarises the enabled backends for the startup log.
func describe(cfg config.Config) string {
	parts := []string{"store=" + cfg.Store.Driver, "sweep=" + cfg.Reservation.SweepMode}
	if cfg.Redis.Disabled {
		parts = append(parts, "redis=off")
	}
	return strings.Join(parts, " ")
}
