package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/alnoor-medical/stocktrack/internal/jobs"
)

// StockRevalidateJob recomputes the lot invariant 0 <= remaining <= quantity
// across the ledger. Every mutation path preserves it, so a hit means a
// write bypassed the service layer.
type StockRevalidateJob struct {
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewStockRevalidateJob initialises the revalidation handler.
func NewStockRevalidateJob(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *StockRevalidateJob {
	return &StockRevalidateJob{Pool: pool, Logger: logger, Metrics: metrics}
}

type lotViolation struct {
	LotID     int64
	Reference string
	ProductID int64
	Quantity  int64
	Remaining int64
}

// Handle executes the check.
func (j *StockRevalidateJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Pool == nil {
		return errors.New("stock revalidate: handler not configured")
	}
	var payload StockRevalidatePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskStockRevalidate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	if payload.ProductID > 0 {
		logger = logger.With(slog.Int64("product_id", payload.ProductID))
	}

	violations, err := j.scan(ctx, payload.ProductID)
	if err != nil {
		resultErr = err
		logger.Error("revalidation failed", slog.Any("error", err))
		return resultErr
	}

	for _, v := range violations {
		logger.Error("lot outside invariant",
			slog.Int64("lot_id", v.LotID),
			slog.String("reference", v.Reference),
			slog.Int64("product_id", v.ProductID),
			slog.Int64("quantity", v.Quantity),
			slog.Int64("remaining", v.Remaining),
		)
		j.metrics().AddViolations(v.ProductID, 1)
	}

	logger.Info("completed stock revalidation",
		slog.Int("violations", len(violations)),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *StockRevalidateJob) scan(ctx context.Context, productID int64) ([]lotViolation, error) {
	query := `SELECT id, po_reference, product_id, quantity, remaining_stock
FROM purchase_orders
WHERE (remaining_stock < 0 OR remaining_stock > quantity)`
	args := []any{}
	if productID > 0 {
		query += ` AND product_id = $1`
		args = append(args, productID)
	}
	query += ` ORDER BY product_id, id`

	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	violations := []lotViolation{}
	for rows.Next() {
		var v lotViolation
		if err := rows.Scan(&v.LotID, &v.Reference, &v.ProductID, &v.Quantity, &v.Remaining); err != nil {
			return nil, err
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return violations, nil
}

func (j *StockRevalidateJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskStockRevalidate))
	}
	return slog.Default().With(slog.String("job", TaskStockRevalidate))
}

func (j *StockRevalidateJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
