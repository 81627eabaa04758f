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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/app"
	"github.com/gazette-cms/gazette/internal/auth"
	jobmetrics "github.com/gazette-cms/gazette/internal/jobs"
	"github.com/gazette-cms/gazette/internal/notify"
	"github.com/gazette-cms/gazette/internal/platform/db"
	"github.com/gazette-cms/gazette/jobs"
)

const metricsAddr = ":9091"

func main() {
	if code := run(); code != 0 {
		os.Exit(code)
	}
}

func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		return 1
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(registry)

	mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
		Host:      cfg.SMTPHost,
		Port:      cfg.SMTPPort,
		Username:  cfg.SMTPUsername,
		Password:  cfg.SMTPPassword,
		From:      cfg.SMTPFrom,
		TLSPolicy: cfg.SMTPTLSPolicy,
		Timeout:   cfg.SMTPTimeout,
	})
	if err != nil {
		logger.Error("init mailer", slog.Any("error", err))
		return 1
	}
	sendEmail := jobs.NewSendEmailJob(mailer, logger).WithMetrics(metrics)
	purge := jobs.NewPurgeExpiredJob(logger,
		accounts.NewPostgresStore(pool),
		auth.NewPGSessionLog(pool),
	).WithMetrics(metrics)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskTypeSendEmail, Handler: sendEmail.Handle},
			{Type: jobs.TaskPurgeExpiredCredentials, Handler: purge.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.PurgeCron, Task: jobs.NewPurgeExpiredTask(), Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		return 1
	}

	metricsServer := &http.Server{
		Addr:              metricsAddr,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if cfg.MetricsEnabled {
		g.Go(func() error {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		return 1
	}
	return 0
}
