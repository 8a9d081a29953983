package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/storefront-api/internal/accounts"
	"github.com/storefront/storefront-api/internal/app"
	"github.com/storefront/storefront-api/internal/auth"
	"github.com/storefront/storefront-api/internal/notify"
	"github.com/storefront/storefront-api/internal/observability"
	"github.com/storefront/storefront-api/internal/platform/cache"
	"github.com/storefront/storefront-api/internal/platform/db"
	"github.com/storefront/storefront-api/internal/security/otp"
	"github.com/storefront/storefront-api/internal/security/password"
	"github.com/storefront/storefront-api/internal/security/token"
	"github.com/storefront/storefront-api/jobs"
)

func main() {
	if app.SkipStartup(nil, "api") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("api exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	issuer, err := token.NewIssuer(token.Config{
		Secret:        cfg.JWTSecret,
		TTL:           cfg.JWTTTL,
		ResetGrantTTL: cfg.ResetGrantTTL,
		Issuer:        cfg.JWTIssuer,
	})
	if err != nil {
		return err
	}

	if cfg.MigrateOnStart {
		if err := migrateUp(cfg.PGDSN, logger); err != nil {
			return err
		}
	}

	dbpool, err := db.New(ctx, db.PoolOptions{
		DSN:             cfg.PGDSN,
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGMaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	queue, err := jobs.NewClient(redisOpts)
	if err != nil {
		return err
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logger.Warn("queue close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	authService := auth.NewService(auth.ServiceDeps{
		Directory: accounts.NewRepository(dbpool),
		Hasher:    password.NewHasher(cfg.BcryptCost),
		Tokens:    issuer,
		Codes:     otp.NewGenerator(),
		Notifier:  notify.NewQueueSender(queue),
		Throttle:  auth.NewRedisThrottle(redisClient, cfg.ResetCooldown),
		Metrics:   metrics,
		Logger:    logger,
		Config: auth.Config{
			CodeTTL:           cfg.ResetCodeTTL,
			RequireResetGrant: cfg.AuthRequireResetGrant,
			Brand:             cfg.Brand,
		},
	})

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      cfg,
		AuthHandler: auth.NewHandler(logger, authService, issuer),
		JobHandler:  jobs.NewHandler(inspector, logger),
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

func migrateUp(dsn string, logger *slog.Logger) error {
	migrator, err := db.NewMigrator(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn("migrator close", slog.Any("error", err))
		}
	}()
	if err := migrator.Up(); err != nil {
		return err
	}
	version, _, err := migrator.Version()
	if err != nil {
		return err
	}
	logger.Info("schema migrated", slog.Uint64("version", uint64(version)))
	return nil
}
