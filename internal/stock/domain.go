package stock

import (
	"errors"
	"time"
)

// Lot is the ledger view of a purchase-order line: an original quantity
// and the portion of it still on hand. Creation time is the FIFO ordering
// key, with the id as tie-break so walks are deterministic.
type Lot struct {
	ID        int64
	Reference string
	ProductID int64
	Quantity  int64
	Remaining int64
	CreatedAt time.Time
}

// SummaryRow is the raw per-product aggregate the repository returns;
// derived figures are computed by the service.
type SummaryRow struct {
	ProductID        int64
	ProductName      string
	ProductReference string
	TotalOrdered     int64
	TotalRemaining   int64
}

// ProductStockSummary aggregates a product's lots.
type ProductStockSummary struct {
	ProductID        int64   `json:"product_id"`
	ProductName      string  `json:"product_name"`
	ProductReference string  `json:"product_reference"`
	TotalOrdered     int64   `json:"total_ordered"`
	TotalRemaining   int64   `json:"total_remaining"`
	TotalUsed        int64   `json:"total_used"`
	UsagePercentage  float64 `json:"usage_percentage"`
}

// DeductResult reports the outcome of a FIFO deduction. Insufficient stock
// is a business outcome, not an error: OK is false and Available/Requested
// carry the numbers the caller needs for its message.
type DeductResult struct {
	OK        bool
	Available int64
	Requested int64
}

// RestoreResult reports the outcome of a reverse-FIFO restoration. The
// operation always succeeds; Dropped is the portion that found no lot with
// capacity left and was discarded.
type RestoreResult struct {
	Requested int64
	Restored  int64
	Dropped   int64
}

// Availability is the answer to "can I take this much?".
type Availability struct {
	OK        bool   `json:"is_available"`
	Available int64  `json:"available"`
	Requested int64  `json:"requested"`
	Message   string `json:"message"`
}

// ErrInvalidQuantity rejects negative quantities before any storage work.
var ErrInvalidQuantity = errors.New("stock: quantity must not be negative")

// ErrProductNotFound rejects mutating calls against unknown products.
var ErrProductNotFound = errors.New("stock: product not found")

// ErrInvalidThreshold rejects low-stock thresholds outside 0..100.
var ErrInvalidThreshold = errors.New("stock: threshold must be between 0 and 100")

// ErrLockTimeout wraps a bounded lock wait that expired. The call made no
// changes and may be retried by the caller.
var ErrLockTimeout = errors.New("stock: lock wait timed out")
