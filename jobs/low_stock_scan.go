package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/alnoor-medical/stocktrack/internal/jobs"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// StockReader is the slice of the stock service the scan reads.
type StockReader interface {
	Summary(ctx context.Context) ([]stock.ProductStockSummary, error)
}

// LowStockScanJob walks the per-product aggregates, publishes every
// product's remaining share as a gauge and flags the ones at or below the
// threshold. The scan only observes; it writes no rows.
type LowStockScanJob struct {
	Stock        StockReader
	StockMetrics *stock.Metrics
	Logger       *slog.Logger
	Metrics      *jobmetrics.Metrics
	Threshold    float64
}

// NewLowStockScanJob initialises the low-stock scan handler.
func NewLowStockScanJob(stockReader StockReader, stockMetrics *stock.Metrics, logger *slog.Logger, metrics *jobmetrics.Metrics, threshold float64) *LowStockScanJob {
	return &LowStockScanJob{
		Stock:        stockReader,
		StockMetrics: stockMetrics,
		Logger:       logger,
		Metrics:      metrics,
		Threshold:    threshold,
	}
}

// Handle executes the scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Stock == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	threshold := payload.Threshold
	if threshold <= 0 {
		threshold = j.Threshold
	}
	if threshold <= 0 || threshold > 100 {
		threshold = 20
	}

	start := time.Now()
	tracker := j.metrics().Track(TaskLowStockScan)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Float64("threshold", threshold))

	rows, err := j.Stock.Summary(ctx)
	if err != nil {
		resultErr = err
		logger.Error("scan failed", slog.Any("error", err))
		return resultErr
	}

	low := 0
	for _, row := range rows {
		if row.TotalOrdered <= 0 {
			continue
		}
		remainingPct := float64(row.TotalRemaining) / float64(row.TotalOrdered) * 100
		j.StockMetrics.SetRemainingPercent(row.ProductID, remainingPct)
		if remainingPct <= threshold {
			low++
			logger.Warn("product low on stock",
				slog.Int64("product_id", row.ProductID),
				slog.String("product", row.ProductName),
				slog.Int64("remaining", row.TotalRemaining),
				slog.Int64("ordered", row.TotalOrdered),
				slog.Float64("remaining_pct", remainingPct),
			)
		}
	}

	logger.Info("completed low stock scan",
		slog.Int("products", len(rows)),
		slog.Int("low", low),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
