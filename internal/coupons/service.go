package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/alnoor-medical/stocktrack/internal/masterdata/shared"
	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, filter ListFilter) ([]Coupon, int, error)
	Get(ctx context.Context, id int64) (Coupon, error)
	Insert(ctx context.Context, c Coupon) (Coupon, error)
}

// StockLedger is the slice of the stock engine the workflow needs:
// tx-scoped deduction and restoration running inside the coupon
// transaction.
type StockLedger interface {
	DeductInTx(ctx context.Context, tx stock.TxRepository, productID, qty int64) (stock.DeductResult, error)
	RestoreInTx(ctx context.Context, tx stock.TxRepository, productID, qty int64) (stock.RestoreResult, error)
}

// Service orchestrates the coupon lifecycle. A coupon's quantity is
// deducted from stock exactly once, at verification, and restored exactly
// once, at unverification or when a verified coupon is deleted. The guard
// is the verified flag, flipped in the same transaction as the lot walk.
type Service struct {
	repo     RepositoryPort
	ledger   StockLedger
	activity internalShared.ActivityRecorder
	now      func() time.Time
}

// NewService constructs the coupon service. activity may be nil.
func NewService(repo RepositoryPort, ledger StockLedger, activity internalShared.ActivityRecorder) *Service {
	return &Service{repo: repo, ledger: ledger, activity: activity, now: time.Now}
}

// CouponInput carries the writable coupon fields for create and update.
type CouponInput struct {
	PatientName            string
	CPR                    string
	QuantityPieces         int64
	CouponReference        string
	MedicalCentreID        int64
	DistributionLocationID int64
	ProductID              *int64
	DateReceived           *time.Time
	Notes                  string
}

// VerifyInput carries the delivery confirmation details. A blank
// verification reference is replaced with a generated one.
type VerifyInput struct {
	VerificationReference string
	DeliveryNoteNumber    string
	GRVReference          string
}

func (input CouponInput) toCoupon() (Coupon, error) {
	c := Coupon{
		PatientName:            strings.TrimSpace(input.PatientName),
		CPR:                    strings.TrimSpace(input.CPR),
		QuantityPieces:         input.QuantityPieces,
		CouponReference:        shared.NormalizeReference(input.CouponReference),
		MedicalCentreID:        input.MedicalCentreID,
		DistributionLocationID: input.DistributionLocationID,
		ProductID:              input.ProductID,
		Notes:                  strings.TrimSpace(input.Notes),
	}
	if c.CouponReference == "" {
		return Coupon{}, fmt.Errorf("%w: coupon_reference is required", ErrValidation)
	}
	if c.QuantityPieces <= 0 {
		return Coupon{}, fmt.Errorf("%w: quantity_pieces must be positive", ErrValidation)
	}
	if c.MedicalCentreID <= 0 {
		return Coupon{}, fmt.Errorf("%w: medical_centre_id is required", ErrValidation)
	}
	if c.DistributionLocationID <= 0 {
		return Coupon{}, fmt.Errorf("%w: distribution_location_id is required", ErrValidation)
	}
	if c.ProductID != nil && *c.ProductID <= 0 {
		return Coupon{}, fmt.Errorf("%w: product_id must be positive", ErrValidation)
	}
	return c, nil
}

// List returns coupons newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Coupon, int, error) {
	return s.repo.List(ctx, filter)
}

// Get returns one coupon by id.
func (s *Service) Get(ctx context.Context, id int64) (Coupon, error) {
	if id <= 0 {
		return Coupon{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// Create stores a new, unverified coupon.
func (s *Service) Create(ctx context.Context, input CouponInput) (Coupon, error) {
	c, err := input.toCoupon()
	if err != nil {
		return Coupon{}, err
	}
	c.DateReceived = s.now()
	if input.DateReceived != nil {
		c.DateReceived = *input.DateReceived
	}

	created, err := s.repo.Insert(ctx, c)
	if err != nil {
		return Coupon{}, err
	}
	s.record(ctx, internalShared.ActionCreate, created.ID,
		fmt.Sprintf("Created new patient coupon (ID: %d)", created.ID),
		nil,
		map[string]any{"coupon_reference": created.CouponReference, "quantity_pieces": created.QuantityPieces})
	return created, nil
}

// Update replaces the coupon's content fields. Verified coupons are
// immutable; unverify first.
func (s *Service) Update(ctx context.Context, id int64, input CouponInput) (Coupon, error) {
	if id <= 0 {
		return Coupon{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}
	next, err := input.toCoupon()
	if err != nil {
		return Coupon{}, err
	}

	var updated Coupon
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Verified {
			return ErrVerifiedImmutable
		}
		c.PatientName = next.PatientName
		c.CPR = next.CPR
		c.QuantityPieces = next.QuantityPieces
		c.CouponReference = next.CouponReference
		c.MedicalCentreID = next.MedicalCentreID
		c.DistributionLocationID = next.DistributionLocationID
		c.ProductID = next.ProductID
		c.Notes = next.Notes
		if input.DateReceived != nil {
			c.DateReceived = *input.DateReceived
		}
		updated, err = tx.Update(ctx, c)
		return err
	})
	if err != nil {
		return Coupon{}, err
	}
	s.record(ctx, internalShared.ActionUpdate, updated.ID,
		fmt.Sprintf("Updated patient coupon (ID: %d)", updated.ID),
		nil,
		map[string]any{"coupon_reference": updated.CouponReference, "quantity_pieces": updated.QuantityPieces})
	return updated, nil
}

// Verify confirms the delivery: the coupon's quantity is deducted from
// the product's lots and the verification details are stamped, in one
// transaction. Insufficient stock reports OK=false and changes nothing.
func (s *Service) Verify(ctx context.Context, id int64, input VerifyInput) (VerifyResult, error) {
	if id <= 0 {
		return VerifyResult{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}

	var result VerifyResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Verified {
			return ErrAlreadyVerified
		}
		if c.ProductID == nil {
			return ErrNoProduct
		}

		deducted, err := s.ledger.DeductInTx(ctx, tx.Stock(), *c.ProductID, c.QuantityPieces)
		if err != nil {
			return err
		}
		result = VerifyResult{Available: deducted.Available, Requested: deducted.Requested}
		if !deducted.OK {
			return nil
		}

		now := s.now()
		reference := shared.NormalizeReference(input.VerificationReference)
		if reference == "" {
			reference = fmt.Sprintf("VRF-%s-%04d", now.Format("20060102"), c.ID%10000)
		}
		c.Verified = true
		c.DateVerified = &now
		c.VerificationReference = reference
		c.DeliveryNoteNumber = shared.NormalizeReference(input.DeliveryNoteNumber)
		c.GRVReference = shared.NormalizeReference(input.GRVReference)

		updated, err := tx.Update(ctx, c)
		if err != nil {
			return err
		}
		result.OK = true
		result.Coupon = updated
		return nil
	})
	if err != nil {
		return VerifyResult{}, err
	}

	if result.OK {
		s.record(ctx, internalShared.ActionVerify, id,
			fmt.Sprintf("Verified patient coupon (ID: %d)", id),
			nil,
			map[string]any{
				"verification_reference": result.Coupon.VerificationReference,
				"product_id":             *result.Coupon.ProductID,
				"quantity_pieces":        result.Coupon.QuantityPieces,
			})
	}
	return result, nil
}

// Unverify reverses a verification: the coupon's quantity goes back to
// the lots newest-first and the verification details are cleared, in one
// transaction.
func (s *Service) Unverify(ctx context.Context, id int64) (Coupon, error) {
	if id <= 0 {
		return Coupon{}, fmt.Errorf("%w: id must be positive", ErrValidation)
	}

	var updated Coupon
	var restored int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !c.Verified {
			return ErrNotVerified
		}

		if c.ProductID != nil {
			res, err := s.ledger.RestoreInTx(ctx, tx.Stock(), *c.ProductID, c.QuantityPieces)
			if err != nil {
				return err
			}
			restored = res.Restored
		}

		c.Verified = false
		c.DateVerified = nil
		c.VerificationReference = ""
		c.DeliveryNoteNumber = ""
		c.GRVReference = ""
		updated, err = tx.Update(ctx, c)
		return err
	})
	if err != nil {
		return Coupon{}, err
	}

	s.record(ctx, internalShared.ActionRestore, id,
		fmt.Sprintf("Unverified patient coupon (ID: %d)", id),
		nil,
		map[string]any{"quantity_pieces": updated.QuantityPieces, "restored": restored})
	return updated, nil
}

// Delete removes the coupon. A verified coupon gives its quantity back to
// the lots first, in the same transaction as the delete, so no stock is
// lost with the row.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: id must be positive", ErrValidation)
	}

	var deleted Coupon
	var restored int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Verified && c.ProductID != nil {
			res, err := s.ledger.RestoreInTx(ctx, tx.Stock(), *c.ProductID, c.QuantityPieces)
			if err != nil {
				return err
			}
			restored = res.Restored
		}
		deleted = c
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	old := map[string]any{
		"coupon_reference": deleted.CouponReference,
		"quantity_pieces":  deleted.QuantityPieces,
		"verified":         deleted.Verified,
	}
	if restored > 0 {
		old["restored"] = restored
	}
	s.record(ctx, internalShared.ActionDelete, id,
		fmt.Sprintf("Deleted patient coupon (ID: %d)", id), old, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, description string, old, values map[string]any) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, internalShared.ActivityEntry{
		Action:      action,
		Entity:      "patient_coupons",
		EntityID:    id,
		Description: description,
		OldValues:   old,
		NewValues:   values,
	})
}
