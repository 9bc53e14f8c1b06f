package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alnoor-medical/stocktrack/internal/activity"
	"github.com/alnoor-medical/stocktrack/internal/app"
	jobmetrics "github.com/alnoor-medical/stocktrack/internal/jobs"
	"github.com/alnoor-medical/stocktrack/internal/platform/db"
	"github.com/alnoor-medical/stocktrack/internal/stock"
	"github.com/alnoor-medical/stocktrack/jobs"
)

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

	pool, err := db.New(ctx, db.Config{
		DSN:         cfg.PGDSN,
		MaxConns:    cfg.PGMaxConns,
		LockTimeout: cfg.LockTimeout,
	})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	stockMetrics := stock.NewMetrics(nil)
	jobMetrics := jobmetrics.NewMetrics(nil)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, nil, stockMetrics, nil)

	activityRepo := activity.NewRepository(pool)
	activityService := activity.NewService(activityRepo)

	scanJob := jobs.NewLowStockScanJob(stockService, stockMetrics, logger, jobMetrics, cfg.LowStockThreshold)
	purgeJob := jobs.NewActivityPurgeJob(activityService, logger, jobMetrics, cfg.ActivityRetentionDays)
	revalidateJob := jobs.NewStockRevalidateJob(pool, logger, jobMetrics)

	scanTask, err := jobs.NewLowStockScanTask(0)
	if err != nil {
		logger.Error("build scan task", slog.Any("error", err))
		os.Exit(1)
	}
	purgeTask, err := jobs.NewActivityPurgeTask(0)
	if err != nil {
		logger.Error("build purge task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLowStockScan, Handler: scanJob.Handle},
			{Type: jobs.TaskActivityPurge, Handler: purgeJob.Handle},
			{Type: jobs.TaskStockRevalidate, Handler: revalidateJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: cfg.LowStockScanCron, Task: scanTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: cfg.ActivityPurgeCron, Task: purgeTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	go func() {
		logger.Info("serving worker metrics", slog.String("addr", cfg.WorkerMetricsAddr))
		if err := http.ListenAndServe(cfg.WorkerMetricsAddr, promhttp.Handler()); err != nil && err != http.ErrServerClosed {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
