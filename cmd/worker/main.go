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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/storefront/storefront-api/internal/accounts"
	"github.com/storefront/storefront-api/internal/app"
	jobmetrics "github.com/storefront/storefront-api/internal/jobs"
	"github.com/storefront/storefront-api/internal/notify"
	"github.com/storefront/storefront-api/internal/platform/db"
	"github.com/storefront/storefront-api/jobs"
)

func main() {
	if app.SkipStartup(nil, "worker") {
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

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, db.PoolOptions{
		DSN:             cfg.PGDSN,
		MaxConns:        cfg.PGMaxConns,
		MaxConnLifetime: cfg.PGMaxConnLifetime,
	})
	if err != nil {
		return err
	}
	defer pool.Close()

	metrics := jobmetrics.NewMetrics(nil)
	mailer := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:       cfg.SMTPHost,
		Port:       cfg.SMTPPort,
		Username:   cfg.SMTPUsername,
		Password:   cfg.SMTPPassword,
		From:       cfg.SMTPFrom,
		MaxRetries: cfg.SMTPMaxRetries,
		Backoff:    cfg.SMTPBackoff,
	}, logger)
	sendJob := jobs.NewSendEmailJob(mailer, logger, metrics)
	purgeJob := jobs.NewPurgeResetCodesJob(accounts.NewRepository(pool), logger, metrics)

	purgeTask, err := jobs.NewPurgeResetCodesTask()
	if err != nil {
		return err
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendJob.Handle},
			{Type: jobs.TaskPurgeResetCodes, Handler: purgeJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(1)}},
		},
	})
	if err != nil {
		return err
	}

	metricsServer := &http.Server{
		Addr:              cfg.WorkerMetricsAddr,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting worker", slog.Int("concurrency", cfg.WorkerConcurrency))
		return worker.Run(gctx)
	})
	group.Go(func() error {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return metricsServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}
