package coupons

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnoor-medical/stocktrack/internal/platform/db"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// Repository persists patient coupons in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a transaction.
// Stock returns the ledger's view of the same transaction, so a coupon
// transition and its lot mutation commit together.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Coupon, error)
	Update(ctx context.Context, c Coupon) (Coupon, error)
	Delete(ctx context.Context, id int64) error
	Stock() stock.TxRepository
}

type txRepository struct {
	tx pgx.Tx
}

// ListFilter narrows List results.
type ListFilter struct {
	Verified               *bool
	ProductID              *int64
	MedicalCentreID        *int64
	DistributionLocationID *int64
	Search                 string
	Page                   int
	Limit                  int
}

const couponColumns = `id, COALESCE(patient_name, ''), COALESCE(cpr, ''), quantity_pieces, coupon_reference, medical_centre_id, distribution_location_id, product_id, verified, COALESCE(verification_reference, ''), COALESCE(delivery_note_number, ''), COALESCE(grv_reference, ''), date_received, date_verified, COALESCE(notes, ''), created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCoupon(row rowScanner) (Coupon, error) {
	var c Coupon
	err := row.Scan(&c.ID, &c.PatientName, &c.CPR, &c.QuantityPieces, &c.CouponReference,
		&c.MedicalCentreID, &c.DistributionLocationID, &c.ProductID, &c.Verified,
		&c.VerificationReference, &c.DeliveryNoteNumber, &c.GRVReference,
		&c.DateReceived, &c.DateVerified, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// WithTx executes the callback inside a repeatable-read transaction. Lock
// waits on the coupon row or the lots are bounded by the pool's
// lock_timeout and surface as a retryable timeout.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("coupons repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsLockTimeout(err) {
		return fmt.Errorf("%w: %v", stock.ErrLockTimeout, err)
	}
	return err
}

// List returns coupons newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Coupon, int, error) {
	query := `SELECT ` + couponColumns + ` FROM patient_coupons WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM patient_coupons WHERE 1=1`
	args := []any{}
	argCount := 0

	addClause := func(clause string, value any) {
		argCount++
		clause = clause + `$` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, value)
	}

	if filter.Verified != nil {
		addClause(` AND verified = `, *filter.Verified)
	}
	if filter.ProductID != nil {
		addClause(` AND product_id = `, *filter.ProductID)
	}
	if filter.MedicalCentreID != nil {
		addClause(` AND medical_centre_id = `, *filter.MedicalCentreID)
	}
	if filter.DistributionLocationID != nil {
		addClause(` AND distribution_location_id = `, *filter.DistributionLocationID)
	}
	if filter.Search != "" {
		argCount++
		placeholder := `$` + strconv.Itoa(argCount)
		clause := ` AND (patient_name ILIKE ` + placeholder + ` OR cpr ILIKE ` + placeholder + ` OR coupon_reference ILIKE ` + placeholder + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY created_at DESC, id DESC`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var coupons []Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, 0, err
		}
		coupons = append(coupons, c)
	}
	return coupons, total, rows.Err()
}

// Get returns one coupon by id.
func (r *Repository) Get(ctx context.Context, id int64) (Coupon, error) {
	c, err := scanCoupon(r.pool.QueryRow(ctx, `SELECT `+couponColumns+` FROM patient_coupons WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// Insert stores a new coupon.
func (r *Repository) Insert(ctx context.Context, c Coupon) (Coupon, error) {
	created, err := scanCoupon(r.pool.QueryRow(ctx, `
		INSERT INTO patient_coupons (patient_name, cpr, quantity_pieces, coupon_reference, medical_centre_id, distribution_location_id, product_id, verified, date_received, notes, created_at, updated_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, $7, FALSE, $8, NULLIF($9, ''), NOW(), NOW())
		RETURNING `+couponColumns,
		c.PatientName, c.CPR, c.QuantityPieces, c.CouponReference,
		c.MedicalCentreID, c.DistributionLocationID, c.ProductID,
		c.DateReceived, c.Notes))
	switch {
	case db.IsUniqueViolation(err):
		return Coupon{}, ErrDuplicateReference
	case db.IsForeignKeyViolation(err):
		return Coupon{}, ErrUnknownLink
	case err != nil:
		return Coupon{}, err
	}
	return created, nil
}

// GetForUpdate locks the coupon row for the rest of the transaction,
// serializing verify, unverify and delete per coupon.
func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (Coupon, error) {
	c, err := scanCoupon(r.tx.QueryRow(ctx, `SELECT `+couponColumns+` FROM patient_coupons WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Coupon{}, ErrNotFound
	}
	return c, err
}

// Update writes every mutable column of the coupon.
func (r *txRepository) Update(ctx context.Context, c Coupon) (Coupon, error) {
	updated, err := scanCoupon(r.tx.QueryRow(ctx, `
		UPDATE patient_coupons
		SET patient_name = NULLIF($2, ''), cpr = NULLIF($3, ''), quantity_pieces = $4, coupon_reference = $5,
		    medical_centre_id = $6, distribution_location_id = $7, product_id = $8,
		    verified = $9, verification_reference = NULLIF($10, ''), delivery_note_number = NULLIF($11, ''),
		    grv_reference = NULLIF($12, ''), date_received = $13, date_verified = $14, notes = NULLIF($15, ''),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+couponColumns,
		c.ID, c.PatientName, c.CPR, c.QuantityPieces, c.CouponReference,
		c.MedicalCentreID, c.DistributionLocationID, c.ProductID,
		c.Verified, c.VerificationReference, c.DeliveryNoteNumber,
		c.GRVReference, c.DateReceived, c.DateVerified, c.Notes))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return Coupon{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return Coupon{}, ErrDuplicateReference
	case db.IsForeignKeyViolation(err):
		return Coupon{}, ErrUnknownLink
	case db.IsCheckViolation(err):
		return Coupon{}, fmt.Errorf("%w: %v", ErrValidation, err)
	case err != nil:
		return Coupon{}, err
	}
	return updated, nil
}

// Delete removes the coupon row.
func (r *txRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM patient_coupons WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stock adapts the open transaction to the ledger's interface.
func (r *txRepository) Stock() stock.TxRepository {
	return stock.NewTxRepository(r.tx)
}
