// Package app builds the notes service from its configuration and owns the
// lifecycle of every external connection.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stonenotes/stonenotes/internal/auth"
	"github.com/stonenotes/stonenotes/internal/config"
	"github.com/stonenotes/stonenotes/internal/event"
	handler "github.com/stonenotes/stonenotes/internal/handler/http"
	"github.com/stonenotes/stonenotes/internal/repository"
	"github.com/stonenotes/stonenotes/internal/repository/postgres"
	redisrepo "github.com/stonenotes/stonenotes/internal/repository/redis"
	"github.com/stonenotes/stonenotes/internal/service"
	"github.com/stonenotes/stonenotes/migrations"
	"github.com/stonenotes/stonenotes/pkg/database"
	"github.com/stonenotes/stonenotes/pkg/health"
	"github.com/stonenotes/stonenotes/pkg/kafka"
	"github.com/stonenotes/stonenotes/pkg/middleware"
	"github.com/stonenotes/stonenotes/pkg/tracing"
)

const (
	version = "0.1.0"

	startupTimeout = 30 * time.Second
	drainTimeout   = 10 * time.Second
	closeTimeout   = 3 * time.Second
)

// closer releases one resource during shutdown.
type closer struct {
	name  string
	close func(ctx context.Context) error
}

// App is a fully wired notes service.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	server  *http.Server
	closers []closer
}

// NewApp connects to every dependency, applies migrations and builds the
// HTTP handler. Resources opened before a failure are released.
func NewApp(cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.release(context.Background())
		}
	}()

	shutdownTracer, err := tracing.Init(ctx, tracing.Config{
		ServiceName:    handler.ServiceName,
		ServiceVersion: version,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTELEndpoint,
		SampleRate:     cfg.OTELSampleRate,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.onClose("tracer", shutdownTracer)

	checks := health.NewHandler()

	pool, err := a.openPostgres(ctx)
	if err != nil {
		return nil, err
	}
	checks.Register("postgres", pool.Ping)

	refreshRepo, err := a.refreshTokenRepository(ctx, pool, checks)
	if err != nil {
		return nil, err
	}

	producer := kafka.NewProducer(kafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
	a.onClose("kafka producer", func(context.Context) error { return producer.Close() })
	checks.Register("kafka", producer.Ping, health.NonCritical())

	router, err := a.buildRouter(pool, refreshRepo, producer, checks)
	if err != nil {
		return nil, err
	}

	a.server = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return a, nil
}

func (a *App) openPostgres(ctx context.Context) (*pgxpool.Pool, error) {
	cfg := a.cfg
	pool, err := database.NewPostgresPool(ctx, &database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}, a.logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	a.onClose("postgres", func(context.Context) error { pool.Close(); return nil })
	a.logger.Info("postgres connected",
		slog.String("host", cfg.PostgresHost),
		slog.String("database", cfg.PostgresDB),
	)

	if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, handler.ServiceName); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}
	if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.SlowQueryThresholdMs > 0 {
		database.SetSlowQueryLogging(time.Duration(cfg.SlowQueryThresholdMs)*time.Millisecond, a.logger)
	}
	return pool, nil
}

// refreshTokenRepository picks the configured store. With the redis store
// refresh tokens live only in redis, so its check is critical.
func (a *App) refreshTokenRepository(ctx context.Context, pool *pgxpool.Pool, checks *health.Handler) (repository.RefreshTokenRepository, error) {
	if a.cfg.RefreshTokenStore != config.StoreRedis {
		return postgres.NewRefreshTokenRepository(pool), nil
	}

	redisCfg := database.RedisConfig{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}
	client, err := database.NewRedisClient(ctx, redisCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	a.onClose("redis", func(context.Context) error { return client.Close() })
	checks.Register("redis", func(ctx context.Context) error { return client.Ping(ctx).Err() })
	a.logger.Info("redis connected", slog.String("addr", redisCfg.Addr()))

	return redisrepo.NewRefreshTokenRepository(client), nil
}

func (a *App) buildRouter(
	pool *pgxpool.Pool,
	refreshRepo repository.RefreshTokenRepository,
	producer *kafka.Producer,
	checks *health.Handler,
) (http.Handler, error) {
	codec, err := auth.NewCodec([]byte(a.cfg.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("token codec: %w", err)
	}
	accessTokens, err := auth.NewAccessTokenProvider(codec, a.cfg.JWTAccessExpiry)
	if err != nil {
		return nil, fmt.Errorf("access tokens: %w", err)
	}

	events := event.NewProducer(producer, a.logger)
	users := service.NewUserService(postgres.NewUserRepository(pool), events, a.logger)

	refreshTokens, err := auth.NewRefreshTokenStore(refreshRepo, users, a.cfg.JWTRefreshExpiry)
	if err != nil {
		return nil, fmt.Errorf("refresh tokens: %w", err)
	}

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = a.cfg.CORSAllowedOrigins

	return handler.NewRouter(handler.RouterConfig{
		Authenticator:     auth.NewAuthenticator(accessTokens, users, a.logger),
		Users:             users,
		Auth:              service.NewAuthService(users, accessTokens, refreshTokens, a.cfg.RefreshTokenRotation, events, a.logger),
		Notes:             service.NewNoteService(postgres.NewNoteRepository(pool), a.logger),
		Health:            checks,
		Logger:            a.logger,
		CORS:              cors,
		PprofAllowedCIDRs: a.cfg.PprofAllowedCIDRs,
	}), nil
}

func (a *App) onClose(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, close: fn})
}

// release closes resources in reverse order of acquisition.
func (a *App) release(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(ctx); err != nil {
			a.logger.Error("close failed", slog.String("resource", c.name), slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Run serves HTTP until ctx is canceled or the listener fails, then shuts
// down.
func (a *App) Run(ctx context.Context) error {
	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening", slog.String("addr", a.server.Addr))
		serveErr <- a.server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = a.release(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("shutdown requested")
	}
	return a.Shutdown()
}

// Shutdown drains in-flight requests, then flushes spans and closes the
// producer and the database clients.
func (a *App) Shutdown() error {
	drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(drainCtx); err != nil {
		errs = append(errs, fmt.Errorf("drain http: %w", err))
	}

	closeCtx, cancelClose := context.WithTimeout(context.Background(), closeTimeout)
	defer cancelClose()
	errs = append(errs, a.release(closeCtx))

	a.logger.Info("shutdown complete")
	return errors.Join(errs...)
}
