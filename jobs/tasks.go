package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan walks the stock summary and flags products running out.
	TaskLowStockScan = "stock:low_stock_scan"
	// TaskActivityPurge trims activity rows past the retention window.
	TaskActivityPurge = "activity:purge"
	// TaskStockRevalidate checks every lot against its quantity bounds.
	TaskStockRevalidate = "stock:revalidate"
)

// LowStockScanPayload sets the threshold for a scan run. Zero means the
// worker's configured default.
type LowStockScanPayload struct {
	Threshold float64 `json:"threshold"`
}

// NewLowStockScanTask constructs a low-stock scan task.
func NewLowStockScanTask(threshold float64) (*asynq.Task, error) {
	body, err := json.Marshal(LowStockScanPayload{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, body, asynq.Queue(QueueDefault)), nil
}

// ActivityPurgePayload sets the retention for a purge run. Zero means the
// worker's configured default.
type ActivityPurgePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewActivityPurgeTask constructs an activity purge task.
func NewActivityPurgeTask(retentionDays int) (*asynq.Task, error) {
	body, err := json.Marshal(ActivityPurgePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskActivityPurge, body, asynq.Queue(QueueDefault)), nil
}

// StockRevalidatePayload scopes a revalidation run. A zero ProductID means
// every product.
type StockRevalidatePayload struct {
	ProductID   int64     `json:"product_id"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewStockRevalidateTask constructs an on-demand revalidation task. The
// task id is derived from the product, so repeat requests collapse into
// the run already waiting for that product.
func NewStockRevalidateTask(productID int64, requestedAt time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(StockRevalidatePayload{ProductID: productID, RequestedAt: requestedAt})
	if err != nil {
		return nil, err
	}
	id := uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("%s:%d", TaskStockRevalidate, productID)))
	return asynq.NewTask(TaskStockRevalidate, body, asynq.Queue(QueueDefault), asynq.TaskID(id.String())), nil
}
