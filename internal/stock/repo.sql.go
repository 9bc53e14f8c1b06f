package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alnoor-medical/stocktrack/internal/platform/db"
)

// Repository persists the stock ledger in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the transactional operations used by the service.
type TxRepository interface {
	LotsForUpdate(ctx context.Context, productID int64) ([]Lot, error)
	SetRemaining(ctx context.Context, lotID, remaining int64) error
	ProductExists(ctx context.Context, productID int64) (bool, error)
}

type txRepository struct {
	tx pgx.Tx
}

// NewTxRepository wraps an already-open transaction in the ledger's
// transactional interface. Workflows that mutate their own rows and the
// lots in one commit build their stock view with this.
func NewTxRepository(tx pgx.Tx) TxRepository {
	return &txRepository{tx: tx}
}

// WithTx executes the callback inside a repeatable-read transaction.
// Lock waits are bounded by the pool's lock_timeout; an expired wait is
// surfaced as ErrLockTimeout so callers know the call is retryable.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
	}
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
	if err != nil && db.IsLockTimeout(err) {
		return fmt.Errorf("%w: %v", ErrLockTimeout, err)
	}
	return err
}

// TotalByProduct sums remaining stock over the product's lots. A single
// statement, so the result is a consistent snapshot.
func (r *Repository) TotalByProduct(ctx context.Context, productID int64) (int64, error) {
	if r == nil {
		return 0, errors.New("stock repository not initialised")
	}
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(remaining_stock), 0) FROM purchase_orders WHERE product_id = $1`, productID).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// SummaryRows aggregates ordered and remaining quantities per product,
// limited to products with at least one lot.
func (r *Repository) SummaryRows(ctx context.Context) ([]SummaryRow, error) {
	if r == nil {
		return nil, errors.New("stock repository not initialised")
	}
	rows, err := r.pool.Query(ctx, `SELECT p.id, p.name, p.reference, COALESCE(SUM(po.quantity), 0), COALESCE(SUM(po.remaining_stock), 0)
FROM products p
JOIN purchase_orders po ON po.product_id = p.id
GROUP BY p.id, p.name, p.reference
ORDER BY p.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	summaries := []SummaryRow{}
	for rows.Next() {
		var row SummaryRow
		if err := rows.Scan(&row.ProductID, &row.ProductName, &row.ProductReference, &row.TotalOrdered, &row.TotalRemaining); err != nil {
			return nil, err
		}
		summaries = append(summaries, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return summaries, nil
}

// LotsForUpdate locks and returns every lot of the product in creation
// order (id as tie-break). Both the allocator and the restorer lock in
// this ascending order so the two never deadlock on the same product.
func (r *txRepository) LotsForUpdate(ctx context.Context, productID int64) ([]Lot, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, po_reference, product_id, quantity, remaining_stock, created_at
FROM purchase_orders
WHERE product_id = $1
ORDER BY created_at ASC, id ASC
FOR UPDATE`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	lots := []Lot{}
	for rows.Next() {
		var lot Lot
		if err := rows.Scan(&lot.ID, &lot.Reference, &lot.ProductID, &lot.Quantity, &lot.Remaining, &lot.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, lot)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lots, nil
}

// SetRemaining writes a lot's remaining stock. The table's CHECK
// constraints back up the service's own range guard.
func (r *txRepository) SetRemaining(ctx context.Context, lotID, remaining int64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE purchase_orders SET remaining_stock = $2, updated_at = NOW() WHERE id = $1`, lotID, remaining)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("stock: lot %d vanished mid-transaction", lotID)
	}
	return nil
}

func (r *txRepository) ProductExists(ctx context.Context, productID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, productID).Scan(&exists)
	return exists, err
}
