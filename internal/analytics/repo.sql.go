package analytics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository resolves the count queries behind the totals block. The
// per-product aggregates come from the stock repository; this one only
// counts rows.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository builds Repository over a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const totalsQuery = `
SELECT
	(SELECT COUNT(*) FROM products),
	(SELECT COUNT(*) FROM purchase_orders),
	(SELECT COUNT(*) FROM patient_coupons),
	(SELECT COUNT(*) FROM distribution_locations),
	(SELECT COUNT(*) FROM medical_centres)`

// Totals counts every primary entity in a single statement, so the five
// figures come from one consistent snapshot.
func (r *Repository) Totals(ctx context.Context) (Totals, error) {
	if r == nil {
		return Totals{}, errors.New("analytics repository not initialised")
	}
	var totals Totals
	err := r.pool.QueryRow(ctx, totalsQuery).Scan(
		&totals.Products,
		&totals.PurchaseOrders,
		&totals.Coupons,
		&totals.Locations,
		&totals.Centres,
	)
	if err != nil {
		return Totals{}, err
	}
	return totals, nil
}
