package stock

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alnoor-medical/stocktrack/internal/shared"
)

type memoryRepo struct {
	products map[int64]string
	lots     map[int64]*Lot
	txErr    error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]string),
		lots:     make(map[int64]*Lot),
	}
}

func (r *memoryRepo) addProduct(id int64, name string) {
	r.products[id] = name
}

func (r *memoryRepo) addLot(id, productID, quantity, remaining int64, createdAt time.Time) {
	r.lots[id] = &Lot{
		ID:        id,
		Reference: fmt.Sprintf("PO-%03d", id),
		ProductID: productID,
		Quantity:  quantity,
		Remaining: remaining,
		CreatedAt: createdAt,
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.txErr != nil {
		return r.txErr
	}
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) TotalByProduct(ctx context.Context, productID int64) (int64, error) {
	var total int64
	for _, lot := range r.lots {
		if lot.ProductID == productID {
			total += lot.Remaining
		}
	}
	return total, nil
}

func (r *memoryRepo) SummaryRows(ctx context.Context) ([]SummaryRow, error) {
	byProduct := map[int64]*SummaryRow{}
	for _, lot := range r.lots {
		row, ok := byProduct[lot.ProductID]
		if !ok {
			row = &SummaryRow{ProductID: lot.ProductID, ProductName: r.products[lot.ProductID]}
			byProduct[lot.ProductID] = row
		}
		row.TotalOrdered += lot.Quantity
		row.TotalRemaining += lot.Remaining
	}
	rows := make([]SummaryRow, 0, len(byProduct))
	for _, row := range byProduct {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProductID < rows[j].ProductID })
	return rows, nil
}

func (tx *memoryTx) LotsForUpdate(ctx context.Context, productID int64) ([]Lot, error) {
	lots := []Lot{}
	for _, lot := range tx.repo.lots {
		if lot.ProductID == productID {
			lots = append(lots, *lot)
		}
	}
	sort.Slice(lots, func(i, j int) bool {
		if lots[i].CreatedAt.Equal(lots[j].CreatedAt) {
			return lots[i].ID < lots[j].ID
		}
		return lots[i].CreatedAt.Before(lots[j].CreatedAt)
	})
	return lots, nil
}

func (tx *memoryTx) SetRemaining(ctx context.Context, lotID, remaining int64) error {
	lot, ok := tx.repo.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d not found", lotID)
	}
	lot.Remaining = remaining
	return nil
}

func (tx *memoryTx) ProductExists(ctx context.Context, productID int64) (bool, error) {
	_, ok := tx.repo.products[productID]
	return ok, nil
}

type recordedActivity struct {
	entries []shared.ActivityEntry
}

func (a *recordedActivity) Record(ctx context.Context, entry shared.ActivityEntry) error {
	a.entries = append(a.entries, entry)
	return nil
}

// seedThreeLots gives product 1 lots of 100, 50 and 75 units ordered a day
// apart, all untouched.
func seedThreeLots(repo *memoryRepo) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.addProduct(1, "Insulin Pen")
	repo.addLot(1, 1, 100, 100, base)
	repo.addLot(2, 1, 50, 50, base.Add(24*time.Hour))
	repo.addLot(3, 1, 75, 75, base.Add(48*time.Hour))
}

func TestDeductWalksOldestLotsFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	result, err := svc.Deduct(ctx, 1, 120)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, int64(225), result.Available)
	require.Equal(t, int64(120), result.Requested)

	require.Equal(t, int64(0), repo.lots[1].Remaining)
	require.Equal(t, int64(30), repo.lots[2].Remaining)
	require.Equal(t, int64(75), repo.lots[3].Remaining)

	total, err := svc.TotalStockByProduct(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(105), total)
}

func TestDeductExactTotalDrainsEveryLot(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.Deduct(context.Background(), 1, 225)
	require.NoError(t, err)
	require.True(t, result.OK)
	for id := int64(1); id <= 3; id++ {
		require.Equal(t, int64(0), repo.lots[id].Remaining)
	}
}

func TestDeductInsufficientStockLeavesLotsUntouched(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.Deduct(context.Background(), 1, 226)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, int64(225), result.Available)
	require.Equal(t, int64(226), result.Requested)

	require.Equal(t, int64(100), repo.lots[1].Remaining)
	require.Equal(t, int64(50), repo.lots[2].Remaining)
	require.Equal(t, int64(75), repo.lots[3].Remaining)
}

func TestDeductZeroQuantityIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	activity := &recordedActivity{}
	svc := NewService(repo, activity, nil, nil)

	result, err := svc.Deduct(context.Background(), 1, 0)
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, int64(100), repo.lots[1].Remaining)
	require.Empty(t, activity.entries)
}

func TestRestoreFillsNewestLotsFirst(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 120)
	require.NoError(t, err)

	result, err := svc.Restore(ctx, 1, 50)
	require.NoError(t, err)
	require.Equal(t, int64(50), result.Restored)
	require.Equal(t, int64(0), result.Dropped)

	require.Equal(t, int64(30), repo.lots[1].Remaining)
	require.Equal(t, int64(50), repo.lots[2].Remaining)
	require.Equal(t, int64(75), repo.lots[3].Remaining)
}

func TestRestoreCapsEachLotAtOriginalQuantity(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 30)
	require.NoError(t, err)
	require.Equal(t, int64(70), repo.lots[1].Remaining)

	result, err := svc.Restore(ctx, 1, 50)
	require.NoError(t, err)
	require.Equal(t, int64(30), result.Restored)
	require.Equal(t, int64(20), result.Dropped)

	require.Equal(t, int64(100), repo.lots[1].Remaining)
	require.Equal(t, int64(50), repo.lots[2].Remaining)
	require.Equal(t, int64(75), repo.lots[3].Remaining)
}

func TestRestoreIntoFullLotsDropsEverything(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.Restore(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Equal(t, int64(0), result.Restored)
	require.Equal(t, int64(10), result.Dropped)
	require.Equal(t, int64(100), repo.lots[1].Remaining)
}

func TestDeductThenRestoreRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 120)
	require.NoError(t, err)

	result, err := svc.Restore(ctx, 1, 120)
	require.NoError(t, err)
	require.Equal(t, int64(120), result.Restored)
	require.Equal(t, int64(0), result.Dropped)

	require.Equal(t, int64(100), repo.lots[1].Remaining)
	require.Equal(t, int64(50), repo.lots[2].Remaining)
	require.Equal(t, int64(75), repo.lots[3].Remaining)
}

func TestRestoreProductWithoutLots(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(7, "Gauze")
	svc := NewService(repo, nil, nil, nil)

	result, err := svc.Restore(context.Background(), 7, 25)
	require.NoError(t, err)
	require.Equal(t, int64(25), result.Requested)
	require.Equal(t, int64(0), result.Restored)
	require.Equal(t, int64(25), result.Dropped)
}

func TestNegativeQuantityRejected(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Restore(ctx, 1, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.ValidateAvailability(ctx, 1, -1)
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestUnknownProductRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 99, 5)
	require.ErrorIs(t, err, ErrProductNotFound)

	_, err = svc.Restore(ctx, 99, 5)
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestLockTimeoutSurfacesAsRetryable(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	repo.txErr = fmt.Errorf("%w: canceling statement due to lock timeout", ErrLockTimeout)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 5)
	require.ErrorIs(t, err, ErrLockTimeout)

	_, err = svc.Restore(ctx, 1, 5)
	require.ErrorIs(t, err, ErrLockTimeout)
}

func TestValidateAvailabilityMessages(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	avail, err := svc.ValidateAvailability(ctx, 1, 100)
	require.NoError(t, err)
	require.True(t, avail.OK)
	require.Equal(t, "Stock available: 225 units", avail.Message)

	avail, err = svc.ValidateAvailability(ctx, 1, 300)
	require.NoError(t, err)
	require.False(t, avail.OK)
	require.Equal(t, int64(225), avail.Available)
	require.Equal(t, "Insufficient stock. Available: 225, Requested: 300", avail.Message)
}

func TestSummaryComputesUsage(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(1, "Syringe 5ml")
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.addLot(1, 1, 200, 50, base)
	svc := NewService(repo, nil, nil, nil)

	summaries, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "Syringe 5ml", summaries[0].ProductName)
	require.Equal(t, int64(200), summaries[0].TotalOrdered)
	require.Equal(t, int64(50), summaries[0].TotalRemaining)
	require.Equal(t, int64(150), summaries[0].TotalUsed)
	require.InDelta(t, 75.0, summaries[0].UsagePercentage, 0.0001)
}

func TestLowStockThreshold(t *testing.T) {
	repo := newMemoryRepo()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.addProduct(1, "Insulin Pen")
	repo.addLot(1, 1, 200, 20, base) // 10% remaining
	repo.addProduct(2, "Bandage")
	repo.addLot(2, 2, 100, 80, base) // 80% remaining
	repo.addProduct(3, "Saline")
	repo.addLot(3, 3, 100, 0, base) // exhausted
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	low, err := svc.LowStock(ctx, 20)
	require.NoError(t, err)
	require.Len(t, low, 2)
	require.Equal(t, int64(1), low[0].ProductID)
	require.Equal(t, int64(3), low[1].ProductID)

	low, err = svc.LowStock(ctx, 5)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, int64(3), low[0].ProductID)

	low, err = svc.LowStock(ctx, 0)
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, int64(3), low[0].ProductID)
}

func TestLowStockBoundaryIsInclusive(t *testing.T) {
	repo := newMemoryRepo()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo.addProduct(1, "Insulin Pen")
	repo.addLot(1, 1, 100, 20, base) // exactly 20% remaining
	svc := NewService(repo, nil, nil, nil)

	low, err := svc.LowStock(context.Background(), 20)
	require.NoError(t, err)
	require.Len(t, low, 1)
}

func TestLowStockRejectsThresholdOutsideRange(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.LowStock(ctx, -1)
	require.ErrorIs(t, err, ErrInvalidThreshold)

	_, err = svc.LowStock(ctx, 100.5)
	require.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestActivityRecordedOnMutation(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	activity := &recordedActivity{}
	svc := NewService(repo, activity, nil, nil)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, activity.entries, 1)
	require.Equal(t, shared.ActionUpdate, activity.entries[0].Action)
	require.Equal(t, "purchase_orders", activity.entries[0].Entity)
	require.Equal(t, "Deducted 10 units of product ID 1 from stock", activity.entries[0].Description)

	_, err = svc.Restore(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, activity.entries, 2)
	require.Equal(t, "Restored 10 units of product ID 1 to stock", activity.entries[1].Description)

	// a restore that lands nothing leaves no trace
	_, err = svc.Restore(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, activity.entries, 2)
}

func TestInsufficientDeductRecordsNothing(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	activity := &recordedActivity{}
	svc := NewService(repo, activity, nil, nil)

	result, err := svc.Deduct(context.Background(), 1, 1000)
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Empty(t, activity.entries)
}

type countingInvalidator struct {
	bumps int
}

func (c *countingInvalidator) Bump(ctx context.Context) error {
	c.bumps++
	return nil
}

func TestCacheBumpedOnMutationsOnly(t *testing.T) {
	repo := newMemoryRepo()
	seedThreeLots(repo)
	cache := &countingInvalidator{}
	svc := NewService(repo, nil, nil, cache)
	ctx := context.Background()

	_, err := svc.Deduct(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, cache.bumps)

	_, err = svc.Restore(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 2, cache.bumps)

	// neither an insufficient deduction nor a read moves the version
	_, err = svc.Deduct(ctx, 1, 1000)
	require.NoError(t, err)
	_, err = svc.Summary(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, cache.bumps)
}
