package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/alnoor-medical/stocktrack/internal/activity"
	"github.com/alnoor-medical/stocktrack/internal/analytics"
	"github.com/alnoor-medical/stocktrack/internal/coupons"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/centres"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/locations"
	"github.com/alnoor-medical/stocktrack/internal/masterdata/products"
	"github.com/alnoor-medical/stocktrack/internal/observability"
	"github.com/alnoor-medical/stocktrack/internal/procurement"
	"github.com/alnoor-medical/stocktrack/internal/stock"
	"github.com/alnoor-medical/stocktrack/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Pool               *pgxpool.Pool
	Redis              *redis.Client
	ProductsHandler    *products.Handler
	LocationsHandler   *locations.Handler
	CentresHandler     *centres.Handler
	ProcurementHandler *procurement.Handler
	CouponsHandler     *coupons.Handler
	StockHandler       *stock.Handler
	ActivityHandler    *activity.Handler
	AnalyticsHandler   *analytics.Handler
	JobsHandler        *jobs.Handler
	Metrics            *observability.Metrics
}

// NewRouter constructs the chi.Router for the stocktrack API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params))

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", params.ProductsHandler.MountRoutes)
		r.Route("/locations", params.LocationsHandler.MountRoutes)
		r.Route("/centres", params.CentresHandler.MountRoutes)
		r.Route("/purchase-orders", params.ProcurementHandler.MountRoutes)
		r.Route("/coupons", params.CouponsHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/activity", params.ActivityHandler.MountRoutes)
		if params.AnalyticsHandler != nil {
			r.Route("/statistics", params.AnalyticsHandler.MountRoutes)
		}
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}

func healthHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := `{"status":"ok"}`
		if params.Pool != nil {
			if err := params.Pool.Ping(ctx); err != nil {
				params.Logger.Error("health: database ping failed", slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","database":"down"}`
			}
		}
		if status == http.StatusOK && params.Redis != nil {
			if err := params.Redis.Ping(ctx).Err(); err != nil {
				params.Logger.Warn("health: redis ping failed", slog.Any("error", err))
				status = http.StatusServiceUnavailable
				body = `{"status":"degraded","redis":"down"}`
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}
