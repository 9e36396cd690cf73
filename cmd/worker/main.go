package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/amarflybot/curly-octo-memory/internal/app"
	"github.com/amarflybot/curly-octo-memory/internal/audit"
	jobmetrics "github.com/amarflybot/curly-octo-memory/internal/jobs"
	"github.com/amarflybot/curly-octo-memory/internal/platform/db"
	"github.com/amarflybot/curly-octo-memory/jobs"
)

// tracked wraps a task handler with run/duration instrumentation.
func tracked(metrics *jobmetrics.Metrics, taskType string, handler asynq.HandlerFunc) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		return metrics.Track(taskType).End(handler(ctx, t))
	}
}

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 5})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	writer := audit.NewWriter(pool)
	metrics := jobmetrics.NewMetrics(nil)

	pruneTask, err := audit.NewPruneTask(90)
	if err != nil {
		logger.Error("build prune task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: audit.TaskTypePolicyAudit, Handler: tracked(metrics, audit.TaskTypePolicyAudit, writer.HandleTask)},
			{Type: audit.TaskTypeAuditPrune, Handler: tracked(metrics, audit.TaskTypeAuditPrune, writer.HandlePruneTask)},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "45 2 * * *", Task: pruneTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
