package procurement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder is an incoming stock lot. Quantity is what was ordered,
// RemainingStock the portion not yet consumed by coupon verifications.
// Pricing is optional; when a unit price is present the derived amounts
// are always computed server-side, never taken from the client.
type PurchaseOrder struct {
	ID                 int64               `json:"id"`
	POReference        string              `json:"po_reference"`
	ProductID          int64               `json:"product_id"`
	ProductDescription string              `json:"product_description,omitempty"`
	Quantity           int64               `json:"quantity"`
	RemainingStock     int64               `json:"remaining_stock"`
	WarehouseLocation  string              `json:"warehouse_location,omitempty"`
	UnitPrice          decimal.NullDecimal `json:"unit_price"`
	TaxRate            decimal.NullDecimal `json:"tax_rate"`
	TaxAmount          decimal.NullDecimal `json:"tax_amount"`
	TotalWithoutTax    decimal.NullDecimal `json:"total_without_tax"`
	TotalWithTax       decimal.NullDecimal `json:"total_with_tax"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// Consumed is the portion of the lot already taken by verifications.
func (po PurchaseOrder) Consumed() int64 {
	return po.Quantity - po.RemainingStock
}

var (
	// ErrNotFound indicates the purchase order does not exist.
	ErrNotFound = errors.New("procurement: purchase order not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("procurement: invalid input")
	// ErrDuplicateReference indicates the po_reference is already taken.
	ErrDuplicateReference = errors.New("procurement: duplicate po reference")
	// ErrProductMissing indicates the referenced product does not exist.
	ErrProductMissing = errors.New("procurement: product does not exist")
	// ErrQuantityBelowConsumed rejects shrinking a lot below what coupon
	// verifications already took from it.
	ErrQuantityBelowConsumed = errors.New("procurement: quantity below consumed stock")
	// ErrLotConsumed rejects re-pointing a lot at another product once any
	// of it has been consumed.
	ErrLotConsumed = errors.New("procurement: lot already partially consumed")
	// ErrLockTimeout wraps a bounded lock wait that expired; the update
	// made no changes and can be retried.
	ErrLockTimeout = errors.New("procurement: lock wait timed out")
)
