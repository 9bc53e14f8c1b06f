package procurement

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnoor-medical/stocktrack/internal/platform/db"
)

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the operations available inside a transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	Update(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
}

type txRepository struct {
	tx pgx.Tx
}

// ListFilter narrows List results.
type ListFilter struct {
	ProductID *int64
	Search    string
	Page      int
	Limit     int
}

const orderColumns = `id, po_reference, product_id, COALESCE(product_description, ''), quantity, remaining_stock, COALESCE(warehouse_location, ''), unit_price, tax_rate, tax_amount, total_without_tax, total_with_tax, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.POReference, &po.ProductID, &po.ProductDescription,
		&po.Quantity, &po.RemainingStock, &po.WarehouseLocation,
		&po.UnitPrice, &po.TaxRate, &po.TaxAmount, &po.TotalWithoutTax, &po.TotalWithTax,
		&po.CreatedAt, &po.UpdatedAt)
	return po, err
}

// WithTx executes the callback inside a repeatable-read transaction. An
// expired lock wait is surfaced as ErrLockTimeout.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("procurement repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsLockTimeout(err) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}

// List returns lots newest first, optionally narrowed to one product or a
// reference search.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]PurchaseOrder, int, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM purchase_orders WHERE 1=1`
	args := []any{}
	argCount := 0

	if filter.ProductID != nil {
		argCount++
		clause := ` AND product_id = $` + strconv.Itoa(argCount)
		query += clause
		countQuery += clause
		args = append(args, *filter.ProductID)
	}
	if filter.Search != "" {
		argCount++
		clause := ` AND po_reference ILIKE $` + strconv.Itoa(argCount)
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

	var orders []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		orders = append(orders, po)
	}
	return orders, total, rows.Err()
}

// Get returns one lot by id.
func (r *Repository) Get(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// GetByReference returns one lot by its normalized reference.
func (r *Repository) GetByReference(ctx context.Context, reference string) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE po_reference = $1`, reference))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// Insert stores a new lot.
func (r *Repository) Insert(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	created, err := scanOrder(r.pool.QueryRow(ctx, `
		INSERT INTO purchase_orders (po_reference, product_id, product_description, quantity, remaining_stock, warehouse_location, unit_price, tax_rate, tax_amount, total_without_tax, total_with_tax, created_at, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING `+orderColumns,
		po.POReference, po.ProductID, po.ProductDescription, po.Quantity, po.RemainingStock, po.WarehouseLocation,
		po.UnitPrice, po.TaxRate, po.TaxAmount, po.TotalWithoutTax, po.TotalWithTax))
	switch {
	case db.IsUniqueViolation(err):
		return PurchaseOrder{}, ErrDuplicateReference
	case db.IsForeignKeyViolation(err):
		return PurchaseOrder{}, ErrProductMissing
	case err != nil:
		return PurchaseOrder{}, err
	}
	return created, nil
}

// Delete removes the lot and returns it as it was.
func (r *Repository) Delete(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.pool.QueryRow(ctx, `DELETE FROM purchase_orders WHERE id = $1 RETURNING `+orderColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// GetForUpdate locks the lot row for the rest of the transaction.
func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanOrder(r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, ErrNotFound
	}
	return po, err
}

// Update writes every mutable column of the lot.
func (r *txRepository) Update(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	updated, err := scanOrder(r.tx.QueryRow(ctx, `
		UPDATE purchase_orders
		SET po_reference = $2, product_id = $3, product_description = NULLIF($4, ''), quantity = $5, remaining_stock = $6, warehouse_location = NULLIF($7, ''), unit_price = $8, tax_rate = $9, tax_amount = $10, total_without_tax = $11, total_with_tax = $12, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderColumns,
		po.ID, po.POReference, po.ProductID, po.ProductDescription, po.Quantity, po.RemainingStock, po.WarehouseLocation,
		po.UnitPrice, po.TaxRate, po.TaxAmount, po.TotalWithoutTax, po.TotalWithTax))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return PurchaseOrder{}, ErrNotFound
	case db.IsUniqueViolation(err):
		return PurchaseOrder{}, ErrDuplicateReference
	case db.IsForeignKeyViolation(err):
		return PurchaseOrder{}, ErrProductMissing
	case db.IsCheckViolation(err):
		return PurchaseOrder{}, fmt.Errorf("%w: %v", ErrValidation, err)
	case err != nil:
		return PurchaseOrder{}, err
	}
	return updated, nil
}
