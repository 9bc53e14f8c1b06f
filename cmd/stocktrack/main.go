package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/alnoor-medical/stocktrack/cmd/stocktrack/cli"
	"github.com/alnoor-medical/stocktrack/internal/activity"
	"github.com/alnoor-medical/stocktrack/internal/analytics"
	"github.com/alnoor-medical/stocktrack/internal/app"
	"github.com/alnoor-medical/stocktrack/internal/coupons"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/centres"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/locations"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/products"
	"github.com/alnoor-medical/stocktrack/internal/observability"
	"github.com/alnoor-medical/stocktrack/internal/platform/cache"
	"github.com/alnoor-medical/stocktrack/internal/platform/db"
	"github.com/alnoor-medical/stocktrack/internal/procurement"
	"github.com/alnoor-medical/stocktrack/internal/shared"
	"github.com/alnoor-medical/stocktrack/internal/stock"
	"github.com/alnoor-medical/stocktrack/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		if err := cli.RunJobs(ctx, cfg.RedisAddr, cfg.RedisDB, os.Args[2:], os.Stdout); err != nil {
			logger.Error("jobs cli", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

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

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Warn("redis unavailable, statistics cache disabled", slog.Any("error", err))
		redisClient = nil
	}
	defer func() {
		if redisClient == nil {
			return
		}
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	activityLogger := shared.NewActivityLogger(pool)
	statsCache := analytics.NewCache(redisClient, cfg.SummaryCacheTTL)

	stockRepo := stock.NewRepository(pool)
	stockMetrics := stock.NewMetrics(metrics.Registerer())
	stockService := stock.NewService(stockRepo, activityLogger, stockMetrics, statsCache)
	stockHandler := stock.NewHandler(logger, stockService, cfg.LowStockThreshold)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, activityLogger)
	productsHandler := products.NewHandler(logger, productsService)

	locationsRepo := locations.NewRepository(pool)
	locationsService := locations.NewService(locationsRepo, activityLogger)
	locationsHandler := locations.NewHandler(logger, locationsService)

	centresRepo := centres.NewRepository(pool)
	centresService := centres.NewService(centresRepo, activityLogger)
	centresHandler := centres.NewHandler(logger, centresService)

	procurementRepo := procurement.NewRepository(pool)
	procurementService := procurement.NewService(procurementRepo, activityLogger)
	procurementHandler := procurement.NewHandler(logger, procurementService)

	couponsRepo := coupons.NewRepository(pool)
	couponsService := coupons.NewService(couponsRepo, stockService, activityLogger)
	couponsHandler := coupons.NewHandler(logger, couponsService)

	activityRepo := activity.NewRepository(pool)
	activityService := activity.NewService(activityRepo)
	activityHandler := activity.NewHandler(logger, activityService)

	analyticsRepo := analytics.NewRepository(pool)
	analyticsService := analytics.NewService(analyticsRepo, stockService, statsCache, cfg.LowStockThreshold)
	analyticsHandler := analytics.NewHandler(logger, analyticsService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Pool:               pool,
		Redis:              redisClient,
		ProductsHandler:    productsHandler,
		LocationsHandler:   locationsHandler,
		CentresHandler:     centresHandler,
		ProcurementHandler: procurementHandler,
		CouponsHandler:     couponsHandler,
		StockHandler:       stockHandler,
		ActivityHandler:    activityHandler,
		AnalyticsHandler:   analyticsHandler,
		JobsHandler:        jobsHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
