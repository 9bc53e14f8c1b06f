package procurement

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error)
	Get(ctx context.Context, id int64) (PurchaseOrder, error)
	GetByReference(ctx context.Context, reference string) (PurchaseOrder, error)
	Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	Delete(ctx context.Context, id int64) (PurchaseOrder, error)
}

// Service orchestrates purchase-order management.
type Service struct {
	repo     RepositoryPort
	activity internalShared.ActivityRecorder
}

// NewService constructs the procurement service. activity may be nil.
func NewService(repo RepositoryPort, activity internalShared.ActivityRecorder) *Service {
	return &Service{repo: repo, activity: activity}
}

// CreateOrderInput describes a new lot.
type CreateOrderInput struct {
	POReference        string
	ProductID          int64
	ProductDescription string
	Quantity           int64
	RemainingStock     *int64
	WarehouseLocation  string
	UnitPrice          *decimal.Decimal
	TaxRate            *decimal.Decimal
}

// UpdateOrderInput patches an existing lot; nil fields stay untouched.
type UpdateOrderInput struct {
	POReference        *string
	ProductID          *int64
	ProductDescription *string
	Quantity           *int64
	WarehouseLocation  *string
	UnitPrice          *decimal.Decimal
	TaxRate            *decimal.Decimal
}

// ListOrders returns lots newest first.
func (s *Service) ListOrders(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	return s.repo.List(ctx, filter)
}

// GetOrder returns one lot by id.
func (s *Service) GetOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// GetOrderByReference returns one lot by reference, case-insensitively.
func (s *Service) GetOrderByReference(ctx context.Context, reference string) (PurchaseOrder, error) {
	reference = shared.NormalizeReference(reference)
	if reference == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: po_reference is required", ErrValidation)
	}
	return s.repo.GetByReference(ctx, reference)
}

// CreateOrder stores a new lot. Remaining stock defaults to the full
// quantity; imports may supply it lower, never higher.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	reference := shared.NormalizeReference(input.POReference)
	if reference == "" {
		return PurchaseOrder{}, fmt.Errorf("%w: po_reference is required", ErrValidation)
	}
	if input.ProductID <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if input.Quantity < 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: quantity must not be negative", ErrValidation)
	}

	remaining := input.Quantity
	if input.RemainingStock != nil {
		if *input.RemainingStock < 0 || *input.RemainingStock > input.Quantity {
			return PurchaseOrder{}, fmt.Errorf("%w: remaining_stock must be between 0 and quantity", ErrValidation)
		}
		remaining = *input.RemainingStock
	}

	po := PurchaseOrder{
		POReference:        reference,
		ProductID:          input.ProductID,
		ProductDescription: strings.TrimSpace(input.ProductDescription),
		Quantity:           input.Quantity,
		RemainingStock:     remaining,
		WarehouseLocation:  strings.TrimSpace(input.WarehouseLocation),
	}
	if err := applyPricing(&po, input.UnitPrice, input.TaxRate); err != nil {
		return PurchaseOrder{}, err
	}

	created, err := s.repo.Insert(ctx, po)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, internalShared.ActionCreate, created.ID,
		fmt.Sprintf("Created new purchase order (ID: %d)", created.ID),
		nil,
		map[string]any{"po_reference": created.POReference, "product_id": created.ProductID, "quantity": created.Quantity})
	return created, nil
}

// UpdateOrder patches the lot under a row lock. Quantity changes preserve
// the consumed amount: remaining moves by the same delta, and the new
// quantity may not fall below what verifications already took.
func (s *Service) UpdateOrder(ctx context.Context, id int64, input UpdateOrderInput) (PurchaseOrder, error) {
	if id <= 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}

	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		consumed := po.Consumed()

		if input.POReference != nil {
			reference := shared.NormalizeReference(*input.POReference)
			if reference == "" {
				return fmt.Errorf("%w: po_reference is required", ErrValidation)
			}
			po.POReference = reference
		}
		if input.ProductID != nil && *input.ProductID != po.ProductID {
			if consumed > 0 {
				return ErrLotConsumed
			}
			if *input.ProductID <= 0 {
				return fmt.Errorf("%w: product_id is required", ErrValidation)
			}
			po.ProductID = *input.ProductID
		}
		if input.ProductDescription != nil {
			po.ProductDescription = strings.TrimSpace(*input.ProductDescription)
		}
		if input.WarehouseLocation != nil {
			po.WarehouseLocation = strings.TrimSpace(*input.WarehouseLocation)
		}
		if input.Quantity != nil && *input.Quantity != po.Quantity {
			if *input.Quantity < consumed {
				return ErrQuantityBelowConsumed
			}
			po.Quantity = *input.Quantity
			po.RemainingStock = *input.Quantity - consumed
		}

		unitPrice := input.UnitPrice
		if unitPrice == nil && po.UnitPrice.Valid {
			unitPrice = &po.UnitPrice.Decimal
		}
		taxRate := input.TaxRate
		if taxRate == nil && po.TaxRate.Valid {
			taxRate = &po.TaxRate.Decimal
		}
		if err := applyPricing(&po, unitPrice, taxRate); err != nil {
			return err
		}

		updated, err = tx.Update(ctx, po)
		return err
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.record(ctx, internalShared.ActionUpdate, updated.ID,
		fmt.Sprintf("Updated purchase order (ID: %d)", updated.ID),
		nil,
		map[string]any{"po_reference": updated.POReference, "quantity": updated.Quantity, "remaining_stock": updated.RemainingStock})
	return updated, nil
}

// DeleteOrder removes a lot; partially consumed lots are flagged in the
// activity metadata so the removal leaves a trace of what disappeared.
func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	old := map[string]any{
		"po_reference":    deleted.POReference,
		"product_id":      deleted.ProductID,
		"quantity":        deleted.Quantity,
		"remaining_stock": deleted.RemainingStock,
	}
	if consumed := deleted.Consumed(); consumed > 0 {
		old["consumed"] = consumed
	}
	s.record(ctx, internalShared.ActionDelete, id,
		fmt.Sprintf("Deleted purchase order (ID: %d)", id), old, nil)
	return nil
}

// applyPricing recomputes the derived amounts from quantity, unit price
// and tax rate. Without a unit price every derived amount is null.
func applyPricing(po *PurchaseOrder, unitPrice, taxRate *decimal.Decimal) error {
	po.UnitPrice = decimal.NullDecimal{}
	po.TaxRate = decimal.NullDecimal{}
	po.TaxAmount = decimal.NullDecimal{}
	po.TotalWithoutTax = decimal.NullDecimal{}
	po.TotalWithTax = decimal.NullDecimal{}

	if unitPrice == nil {
		if taxRate != nil {
			if err := checkTaxRate(*taxRate); err != nil {
				return err
			}
			po.TaxRate = decimal.NullDecimal{Decimal: taxRate.Round(2), Valid: true}
		}
		return nil
	}

	if unitPrice.IsNegative() {
		return fmt.Errorf("%w: unit_price must not be negative", ErrValidation)
	}
	price := unitPrice.Round(3)

	rate := decimal.Zero
	if taxRate != nil {
		if err := checkTaxRate(*taxRate); err != nil {
			return err
		}
		rate = taxRate.Round(2)
		po.TaxRate = decimal.NullDecimal{Decimal: rate, Valid: true}
	}

	totalWithoutTax := price.Mul(decimal.NewFromInt(po.Quantity)).Round(3)
	taxAmount := totalWithoutTax.Mul(rate).Div(decimal.NewFromInt(100)).Round(3)

	po.UnitPrice = decimal.NullDecimal{Decimal: price, Valid: true}
	po.TaxAmount = decimal.NullDecimal{Decimal: taxAmount, Valid: true}
	po.TotalWithoutTax = decimal.NullDecimal{Decimal: totalWithoutTax, Valid: true}
	po.TotalWithTax = decimal.NullDecimal{Decimal: totalWithoutTax.Add(taxAmount), Valid: true}
	return nil
}

func checkTaxRate(rate decimal.Decimal) error {
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: tax_rate must be between 0 and 100", ErrValidation)
	}
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, description string, old, values map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, internalShared.ActivityEntry{
		Action:      action,
		Entity:      "purchase_orders",
		EntityID:    id,
		Description: description,
		OldValues:   old,
		NewValues:   values,
	})
}
