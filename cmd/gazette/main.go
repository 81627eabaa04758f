package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/gazette-cms/gazette/cmd/gazette/cli"
	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/app"
	"github.com/gazette-cms/gazette/internal/auth"
	"github.com/gazette-cms/gazette/internal/content"
	"github.com/gazette-cms/gazette/internal/notify"
	"github.com/gazette-cms/gazette/internal/observability"
	"github.com/gazette-cms/gazette/internal/platform/cache"
	"github.com/gazette-cms/gazette/internal/platform/db"
	"github.com/gazette-cms/gazette/internal/shared"
	"github.com/gazette-cms/gazette/jobs"
)

const usage = `usage: gazette <command> [flags]

commands:
  serve       run the HTTP server (default)
  migrate     apply database migrations
  provision   create a verified account: provision -email x [-name y] [-role ROLE]
  queue       show mail queue stats: queue [-json] | queue trigger auth:purge-expired
`

func main() {
	if code := run(); code != 0 {
		os.Exit(code)
	}
}

// run executes one subcommand and returns the process exit code so deferred
// cleanup completes before main exits.
func run() int {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return 0
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		return 1
	}
	logger := app.NewLogger(cfg)

	var code int
	switch cmd {
	case "serve":
		code = exitCode(logger, "serve", serve(ctx, cfg, logger))
	case "migrate":
		code = exitCode(logger, "migrate", migrate(ctx, cfg, logger))
	case "provision":
		code = provision(ctx, cfg, logger, args)
	case "queue":
		code = queue(ctx, cfg, args)
	case "help", "-h", "--help":
		fmt.Fprint(os.Stdout, usage)
	default:
		fmt.Fprint(os.Stderr, usage)
		code = 2
	}
	return code
}

func exitCode(logger *slog.Logger, cmd string, err error) int {
	if err == nil || errors.Is(err, context.Canceled) {
		return 0
	}
	logger.Error(cmd, slog.Any("error", err))
	return 1
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if cfg.PGAutoMigrate {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	sessions := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	metrics := observability.NewMetrics()
	handlers := app.NewHandlers(app.Dependencies{
		Logger:      logger,
		Config:      cfg,
		Store:       accounts.NewPostgresStore(pool),
		ContentRepo: content.NewRepository(pool),
		Notifier:    notify.NewQueueNotifier(jobClient, logger, 5*time.Second),
		Hasher:      auth.NewBcryptHasher(cfg.BcryptCost),
		Sessions:    sessions,
		SessionLog:  auth.NewPGSessionLog(pool),
		Audit:       shared.NewAuditLogger(pool),
		Metrics:     metrics,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessions,
		CSRFManager:    handlers.CSRF,
		AuthHandler:    handlers.Auth,
		UsersHandler:   handlers.Users,
		ContentHandler: handlers.Content,
		JobHandler:     jobs.NewHandler(inspector, logger),
		RBACMiddleware: handlers.RBAC,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("migrations applied")
	return nil
}

func provision(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer pool.Close()
	handlers := usersOnly(cfg, logger, pool)
	return cli.ProvisionCommand(ctx, handlers.UsersService, args, os.Getenv, os.Stdout, os.Stderr)
}

// usersOnly builds the account services without session or mail transport.
func usersOnly(cfg *app.Config, logger *slog.Logger, pool *pgxpool.Pool) *app.Handlers {
	return app.NewHandlers(app.Dependencies{
		Logger: logger,
		Config: cfg,
		Store:  accounts.NewPostgresStore(pool),
		Hasher: auth.NewBcryptHasher(cfg.BcryptCost),
		Audit:  shared.NewAuditLogger(pool),
	})
}

func queue(ctx context.Context, cfg *app.Config, args []string) int {
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client := asynq.NewClient(redisOpts)
	defer client.Close()
	inspector := asynq.NewInspector(redisOpts)
	defer inspector.Close()
	jobsCLI := cli.NewJobsCLI(client, inspector)

	if len(args) >= 2 && args[0] == "trigger" {
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(os.Stdout, "enqueued %s (%s)\n", info.Type, info.ID)
		return 0
	}
	stats, err := jobsCLI.InspectQueues(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	asJSON := len(args) > 0 && args[0] == "-json"
	if err := cli.WriteQueueStats(os.Stdout, stats, asJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
