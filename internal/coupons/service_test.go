package coupons

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

type stockState struct {
	products map[int64]bool
	lots     map[int64]*stock.Lot
}

func (s *stockState) LotsForUpdate(_ context.Context, productID int64) ([]stock.Lot, error) {
	lots := []stock.Lot{}
	for _, lot := range s.lots {
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

func (s *stockState) SetRemaining(_ context.Context, lotID, remaining int64) error {
	lot, ok := s.lots[lotID]
	if !ok {
		return fmt.Errorf("lot %d missing", lotID)
	}
	lot.Remaining = remaining
	return nil
}

func (s *stockState) ProductExists(_ context.Context, productID int64) (bool, error) {
	return s.products[productID], nil
}

type recordedActivity struct {
	entries []internalShared.ActivityEntry
}

func (r *recordedActivity) Record(_ context.Context, entry internalShared.ActivityEntry) error {
	r.entries = append(r.entries, entry)
	return nil
}

type memoryRepo struct {
	coupons map[int64]Coupon
	nextID  int64
	stock   *stockState
}

type memoryTx struct {
	repo *memoryRepo
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Coupon, int, error) {
	result := []Coupon{}
	for _, c := range r.coupons {
		if filter.Verified != nil && c.Verified != *filter.Verified {
			continue
		}
		result = append(result, c)
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Coupon, error) {
	c, ok := r.coupons[id]
	if !ok {
		return Coupon{}, ErrNotFound
	}
	return c, nil
}

func (r *memoryRepo) Insert(_ context.Context, c Coupon) (Coupon, error) {
	for _, existing := range r.coupons {
		if existing.CouponReference == c.CouponReference {
			return Coupon{}, ErrDuplicateReference
		}
	}
	r.nextID++
	c.ID = r.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.coupons[c.ID] = c
	return c, nil
}

func (tx *memoryTx) GetForUpdate(ctx context.Context, id int64) (Coupon, error) {
	return tx.repo.Get(ctx, id)
}

func (tx *memoryTx) Update(_ context.Context, c Coupon) (Coupon, error) {
	if _, ok := tx.repo.coupons[c.ID]; !ok {
		return Coupon{}, ErrNotFound
	}
	c.UpdatedAt = time.Now()
	tx.repo.coupons[c.ID] = c
	return c, nil
}

func (tx *memoryTx) Delete(_ context.Context, id int64) error {
	if _, ok := tx.repo.coupons[id]; !ok {
		return ErrNotFound
	}
	delete(tx.repo.coupons, id)
	return nil
}

func (tx *memoryTx) Stock() stock.TxRepository {
	return tx.repo.stock
}

// newTestService seeds product 1 with two lots: 100 units received first,
// then 50 units a day later.
func newTestService() (*Service, *memoryRepo, *recordedActivity) {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	st := &stockState{
		products: map[int64]bool{1: true},
		lots: map[int64]*stock.Lot{
			1: {ID: 1, Reference: "PO-001", ProductID: 1, Quantity: 100, Remaining: 100, CreatedAt: base},
			2: {ID: 2, Reference: "PO-002", ProductID: 1, Quantity: 50, Remaining: 50, CreatedAt: base.AddDate(0, 0, 1)},
		},
	}
	repo := &memoryRepo{coupons: make(map[int64]Coupon), stock: st}
	activity := &recordedActivity{}
	svc := NewService(repo, stock.NewService(nil, nil, nil, nil), activity)
	svc.now = func() time.Time { return time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC) }
	return svc, repo, activity
}

func seedCoupon(repo *memoryRepo, productID *int64, qty int64) Coupon {
	repo.nextID++
	c := Coupon{
		ID:                     repo.nextID,
		PatientName:            "Test Patient",
		CPR:                    "900101234",
		QuantityPieces:         qty,
		CouponReference:        fmt.Sprintf("CPN-%03d", repo.nextID),
		MedicalCentreID:        1,
		DistributionLocationID: 1,
		ProductID:              productID,
		DateReceived:           time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	repo.coupons[c.ID] = c
	return c
}

func productOne() *int64 {
	id := int64(1)
	return &id
}

func TestVerifyDeductsOldestLotsFirst(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, productOne(), 120)

	result, err := svc.Verify(context.Background(), coupon.ID, VerifyInput{})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, int64(150), result.Available)

	require.Equal(t, int64(0), repo.stock.lots[1].Remaining)
	require.Equal(t, int64(30), repo.stock.lots[2].Remaining)

	stored := repo.coupons[coupon.ID]
	require.True(t, stored.Verified)
	require.NotNil(t, stored.DateVerified)
	require.Equal(t, "VRF-20240310-0001", stored.VerificationReference)
}

func TestVerifyUsesSuppliedReferences(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, productOne(), 10)

	result, err := svc.Verify(context.Background(), coupon.ID, VerifyInput{
		VerificationReference: " ver-2024-001 ",
		DeliveryNoteNumber:    "dn-55",
		GRVReference:          "grv-9",
	})
	require.NoError(t, err)
	require.True(t, result.OK)
	require.Equal(t, "VER-2024-001", result.Coupon.VerificationReference)
	require.Equal(t, "DN-55", result.Coupon.DeliveryNoteNumber)
	require.Equal(t, "GRV-9", result.Coupon.GRVReference)
}

func TestVerifyTwiceRejectsSecondAttempt(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, productOne(), 40)
	ctx := context.Background()

	_, err := svc.Verify(ctx, coupon.ID, VerifyInput{})
	require.NoError(t, err)

	_, err = svc.Verify(ctx, coupon.ID, VerifyInput{})
	require.ErrorIs(t, err, ErrAlreadyVerified)
	require.Equal(t, int64(60), repo.stock.lots[1].Remaining)
}

func TestVerifyInsufficientStockChangesNothing(t *testing.T) {
	svc, repo, activity := newTestService()
	coupon := seedCoupon(repo, productOne(), 200)

	result, err := svc.Verify(context.Background(), coupon.ID, VerifyInput{})
	require.NoError(t, err)
	require.False(t, result.OK)
	require.Equal(t, int64(150), result.Available)
	require.Equal(t, int64(200), result.Requested)

	require.False(t, repo.coupons[coupon.ID].Verified)
	require.Equal(t, int64(100), repo.stock.lots[1].Remaining)
	require.Equal(t, int64(50), repo.stock.lots[2].Remaining)
	require.Empty(t, activity.entries)
}

func TestVerifyWithoutProductLink(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, nil, 10)

	_, err := svc.Verify(context.Background(), coupon.ID, VerifyInput{})
	require.ErrorIs(t, err, ErrNoProduct)
}

func TestUnverifyRestoresNewestLotsFirst(t *testing.T) {
	svc, repo, activity := newTestService()
	coupon := seedCoupon(repo, productOne(), 120)
	ctx := context.Background()

	_, err := svc.Verify(ctx, coupon.ID, VerifyInput{DeliveryNoteNumber: "DN-1"})
	require.NoError(t, err)

	updated, err := svc.Unverify(ctx, coupon.ID)
	require.NoError(t, err)
	require.False(t, updated.Verified)
	require.Nil(t, updated.DateVerified)
	require.Empty(t, updated.VerificationReference)
	require.Empty(t, updated.DeliveryNoteNumber)
	require.Empty(t, updated.GRVReference)

	require.Equal(t, int64(100), repo.stock.lots[1].Remaining)
	require.Equal(t, int64(50), repo.stock.lots[2].Remaining)

	last := activity.entries[len(activity.entries)-1]
	require.Equal(t, internalShared.ActionRestore, last.Action)
	require.Equal(t, "Unverified patient coupon (ID: 1)", last.Description)
}

func TestUnverifyUnverifiedCouponRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, productOne(), 10)

	_, err := svc.Unverify(context.Background(), coupon.ID)
	require.ErrorIs(t, err, ErrNotVerified)
	require.Equal(t, int64(100), repo.stock.lots[1].Remaining)
}

func TestDeleteVerifiedCouponRestoresStock(t *testing.T) {
	svc, repo, activity := newTestService()
	coupon := seedCoupon(repo, productOne(), 120)
	ctx := context.Background()

	_, err := svc.Verify(ctx, coupon.ID, VerifyInput{})
	require.NoError(t, err)
	require.Equal(t, int64(0), repo.stock.lots[1].Remaining)

	require.NoError(t, svc.Delete(ctx, coupon.ID))
	require.NotContains(t, repo.coupons, coupon.ID)
	require.Equal(t, int64(100), repo.stock.lots[1].Remaining)
	require.Equal(t, int64(50), repo.stock.lots[2].Remaining)

	last := activity.entries[len(activity.entries)-1]
	require.Equal(t, internalShared.ActionDelete, last.Action)
	require.Equal(t, int64(120), last.OldValues["restored"])
}

func TestDeleteUnverifiedCouponKeepsStock(t *testing.T) {
	svc, repo, activity := newTestService()
	coupon := seedCoupon(repo, productOne(), 120)

	require.NoError(t, svc.Delete(context.Background(), coupon.ID))
	require.NotContains(t, repo.coupons, coupon.ID)
	require.Equal(t, int64(100), repo.stock.lots[1].Remaining)

	last := activity.entries[len(activity.entries)-1]
	require.NotContains(t, last.OldValues, "restored")
}

func TestUpdateVerifiedCouponRejected(t *testing.T) {
	svc, repo, _ := newTestService()
	coupon := seedCoupon(repo, productOne(), 10)
	ctx := context.Background()

	_, err := svc.Verify(ctx, coupon.ID, VerifyInput{})
	require.NoError(t, err)

	_, err = svc.Update(ctx, coupon.ID, CouponInput{
		CouponReference:        coupon.CouponReference,
		QuantityPieces:         25,
		MedicalCentreID:        1,
		DistributionLocationID: 1,
	})
	require.ErrorIs(t, err, ErrVerifiedImmutable)
}

func TestCreateValidatesInput(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	valid := CouponInput{
		CouponReference:        " cpn-9 ",
		QuantityPieces:         5,
		MedicalCentreID:        1,
		DistributionLocationID: 1,
	}
	created, err := svc.Create(ctx, valid)
	require.NoError(t, err)
	require.Equal(t, "CPN-9", created.CouponReference)
	require.False(t, created.Verified)
	require.Equal(t, time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC), created.DateReceived)

	bad := valid
	bad.QuantityPieces = 0
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.CouponReference = "  "
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrValidation)

	bad = valid
	bad.MedicalCentreID = 0
	_, err = svc.Create(ctx, bad)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(ctx, valid)
	require.ErrorIs(t, err, ErrDuplicateReference)
}

func TestVerifyRoundTripIsQuantityExact(t *testing.T) {
	svc, repo, _ := newTestService()
	ctx := context.Background()

	first := seedCoupon(repo, productOne(), 70)
	second := seedCoupon(repo, productOne(), 60)

	_, err := svc.Verify(ctx, first.ID, VerifyInput{})
	require.NoError(t, err)
	_, err = svc.Verify(ctx, second.ID, VerifyInput{})
	require.NoError(t, err)

	require.Equal(t, int64(0), repo.stock.lots[1].Remaining)
	require.Equal(t, int64(20), repo.stock.lots[2].Remaining)

	_, err = svc.Unverify(ctx, first.ID)
	require.NoError(t, err)

	var total int64
	for _, lot := range repo.stock.lots {
		total += lot.Remaining
	}
	require.Equal(t, int64(90), total)
}
