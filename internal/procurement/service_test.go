package procurement

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
)

type recordedActivity struct {
	entries []internalShared.ActivityEntry
}

func (r *recordedActivity) Record(_ context.Context, entry internalShared.ActivityEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type memoryRepo struct {
	orders map[int64]PurchaseOrder
	nextID int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]PurchaseOrder)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	result := []PurchaseOrder{}
	for _, po := range r.orders {
		if filter.ProductID != nil && po.ProductID != *filter.ProductID {
			continue
		}
		result = append(result, po)
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, nil
}

func (r *memoryRepo) GetByReference(ctx context.Context, reference string) (PurchaseOrder, error) {
	for _, po := range r.orders {
		if po.POReference == reference {
			return po, nil
		}
	}
	return PurchaseOrder{}, ErrNotFound
}

func (r *memoryRepo) Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	for _, existing := range r.orders {
		if existing.POReference == po.POReference {
			return PurchaseOrder{}, ErrDuplicateReference
		}
	}
	r.nextID++
	po.ID = r.nextID
	po.CreatedAt = time.Now()
	po.UpdatedAt = po.CreatedAt
	r.orders[po.ID] = po
	return po, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	delete(r.orders, id)
	return po, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) Update(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	if _, ok := tx.repo.orders[po.ID]; !ok {
		return PurchaseOrder{}, ErrNotFound
	}
	po.UpdatedAt = time.Now()
	tx.repo.orders[po.ID] = po
	return po, nil
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCreateOrderDefaultsRemainingToQuantity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	created, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		POReference: " po-2024-001 ",
		ProductID:   1,
		Quantity:    120,
	})
	require.NoError(t, err)
	require.Equal(t, "PO-2024-001", created.POReference)
	require.Equal(t, int64(120), created.Quantity)
	require.Equal(t, int64(120), created.RemainingStock)
	require.False(t, created.UnitPrice.Valid)
}

func TestCreateOrderComputesPricing(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)

	created, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		POReference: "PO-2024-002",
		ProductID:   1,
		Quantity:    10,
		UnitPrice:   dec("1.500"),
		TaxRate:     dec("10"),
	})
	require.NoError(t, err)
	require.True(t, created.UnitPrice.Valid)
	require.True(t, created.TotalWithoutTax.Decimal.Equal(decimal.RequireFromString("15.000")))
	require.True(t, created.TaxAmount.Decimal.Equal(decimal.RequireFromString("1.500")))
	require.True(t, created.TotalWithTax.Decimal.Equal(decimal.RequireFromString("16.500")))
}

func TestCreateOrderRejectsBadInput(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{POReference: "  ", ProductID: 1, Quantity: 5})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 0, Quantity: 5})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: -5})
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 5, TaxRate: dec("101")})
	require.ErrorIs(t, err, ErrValidation)

	bad := int64(6)
	_, err = svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 5, RemainingStock: &bad})
	require.ErrorIs(t, err, ErrValidation)
}

func TestCreateOrderRejectsDuplicateReference(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 5})
	require.NoError(t, err)

	_, err = svc.CreateOrder(ctx, CreateOrderInput{POReference: "po-1", ProductID: 2, Quantity: 7})
	require.ErrorIs(t, err, ErrDuplicateReference)
}

func TestUpdateOrderPreservesConsumedOnQuantityChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 100})
	require.NoError(t, err)

	// simulate 40 units consumed by verifications
	po := repo.orders[created.ID]
	po.RemainingStock = 60
	repo.orders[created.ID] = po

	qty := int64(130)
	updated, err := svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, int64(130), updated.Quantity)
	require.Equal(t, int64(90), updated.RemainingStock)

	qty = int64(40)
	updated, err = svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{Quantity: &qty})
	require.NoError(t, err)
	require.Equal(t, int64(40), updated.Quantity)
	require.Equal(t, int64(0), updated.RemainingStock)

	qty = int64(39)
	_, err = svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{Quantity: &qty})
	require.ErrorIs(t, err, ErrQuantityBelowConsumed)
}

func TestUpdateOrderRejectsProductChangeOnceConsumed(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 100})
	require.NoError(t, err)

	other := int64(2)
	_, err = svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{ProductID: &other})
	require.NoError(t, err)

	po := repo.orders[created.ID]
	po.RemainingStock = 99
	repo.orders[created.ID] = po

	third := int64(3)
	_, err = svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{ProductID: &third})
	require.ErrorIs(t, err, ErrLotConsumed)
}

func TestUpdateOrderRecomputesTotalsOnQuantityChange(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{
		POReference: "PO-1",
		ProductID:   1,
		Quantity:    10,
		UnitPrice:   dec("2.000"),
		TaxRate:     dec("5"),
	})
	require.NoError(t, err)
	require.True(t, created.TotalWithTax.Decimal.Equal(decimal.RequireFromString("21.000")))

	qty := int64(20)
	updated, err := svc.UpdateOrder(ctx, created.ID, UpdateOrderInput{Quantity: &qty})
	require.NoError(t, err)
	require.True(t, updated.TotalWithoutTax.Decimal.Equal(decimal.RequireFromString("40.000")))
	require.True(t, updated.TaxAmount.Decimal.Equal(decimal.RequireFromString("2.000")))
	require.True(t, updated.TotalWithTax.Decimal.Equal(decimal.RequireFromString("42.000")))
}

func TestDeleteOrderReportsConsumedStock(t *testing.T) {
	repo := newMemoryRepo()
	activity := &recordedActivity{}
	svc := NewService(repo, activity)
	ctx := context.Background()

	created, err := svc.CreateOrder(ctx, CreateOrderInput{POReference: "PO-1", ProductID: 1, Quantity: 100})
	require.NoError(t, err)

	po := repo.orders[created.ID]
	po.RemainingStock = 30
	repo.orders[created.ID] = po

	require.NoError(t, svc.DeleteOrder(ctx, created.ID))

	last := activity.entries[len(activity.entries)-1]
	require.Equal(t, int64(70), last.OldValues["consumed"])
}
