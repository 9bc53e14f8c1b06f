package stock

import (
	"context"
	"fmt"

	"github.com/alnoor-medical/stocktrack/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	TotalByProduct(ctx context.Context, productID int64) (int64, error)
	SummaryRows(ctx context.Context) ([]SummaryRow, error)
}

// ActivityPort abstracts activity logging.
type ActivityPort interface {
	Record(ctx context.Context, entry shared.ActivityEntry) error
}

// Invalidator notifies derived read models that lot quantities changed.
// The statistics cache plugs in here.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates the stock ledger: FIFO deduction, reverse-FIFO
// restoration, and the aggregate queries built on top of the lots.
type Service struct {
	repo     RepositoryPort
	activity ActivityPort
	metrics  *Metrics
	cache    Invalidator
}

// NewService builds Service. activity, metrics and cache may be nil.
func NewService(repo RepositoryPort, activity ActivityPort, metrics *Metrics, cache Invalidator) *Service {
	return &Service{repo: repo, activity: activity, metrics: metrics, cache: cache}
}

// TotalStockByProduct sums remaining stock across the product's lots.
// A product with no lots has zero stock; that is not an error.
func (s *Service) TotalStockByProduct(ctx context.Context, productID int64) (int64, error) {
	return s.repo.TotalByProduct(ctx, productID)
}

// Summary returns one aggregate entry per product that has at least one
// lot, ordered by product id.
func (s *Service) Summary(ctx context.Context) ([]ProductStockSummary, error) {
	rows, err := s.repo.SummaryRows(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ProductStockSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, summarise(row))
	}
	return summaries, nil
}

// LowStock filters the summary to products whose remaining share of the
// ordered quantity is at or below thresholdPct. Products with nothing
// ordered are never low on stock.
func (s *Service) LowStock(ctx context.Context, thresholdPct float64) ([]ProductStockSummary, error) {
	if thresholdPct < 0 || thresholdPct > 100 {
		return nil, ErrInvalidThreshold
	}
	rows, err := s.repo.SummaryRows(ctx)
	if err != nil {
		return nil, err
	}
	low := []ProductStockSummary{}
	for _, row := range rows {
		if row.TotalOrdered <= 0 {
			continue
		}
		remainingPct := float64(row.TotalRemaining) / float64(row.TotalOrdered) * 100
		if remainingPct <= thresholdPct {
			low = append(low, summarise(row))
		}
	}
	return low, nil
}

// ValidateAvailability answers whether the requested quantity can be taken
// from the product's stock, with a message fit for direct display.
func (s *Service) ValidateAvailability(ctx context.Context, productID, requested int64) (Availability, error) {
	if requested < 0 {
		return Availability{}, ErrInvalidQuantity
	}
	available, err := s.repo.TotalByProduct(ctx, productID)
	if err != nil {
		return Availability{}, err
	}
	result := Availability{Available: available, Requested: requested}
	if available >= requested {
		result.OK = true
		result.Message = fmt.Sprintf("Stock available: %d units", available)
	} else {
		result.Message = fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", available, requested)
	}
	return result, nil
}

// Deduct removes qty from the product's lots oldest-first. The whole
// deduction commits as one unit or not at all; insufficient stock leaves
// every lot untouched and reports OK=false.
func (s *Service) Deduct(ctx context.Context, productID, qty int64) (DeductResult, error) {
	if qty < 0 {
		return DeductResult{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return DeductResult{OK: true, Requested: 0}, nil
	}

	var result DeductResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.DeductInTx(ctx, tx, productID, qty)
		return err
	})
	if err != nil {
		return DeductResult{}, err
	}

	if result.OK {
		s.recordActivity(ctx, shared.ActionUpdate,
			fmt.Sprintf("Deducted %d units of product ID %d from stock", qty, productID),
			productID, qty)
	}
	return result, nil
}

// DeductInTx runs the FIFO walk inside the caller's transaction, for
// workflows that commit a lot mutation together with rows of their own.
// The caller owns the commit and any activity trail.
func (s *Service) DeductInTx(ctx context.Context, tx TxRepository, productID, qty int64) (DeductResult, error) {
	if qty < 0 {
		return DeductResult{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return DeductResult{OK: true, Requested: 0}, nil
	}

	lots, err := tx.LotsForUpdate(ctx, productID)
	if err != nil {
		return DeductResult{}, err
	}
	if len(lots) == 0 {
		exists, err := tx.ProductExists(ctx, productID)
		if err != nil {
			return DeductResult{}, err
		}
		if !exists {
			return DeductResult{}, ErrProductNotFound
		}
	}

	var available int64
	for _, lot := range lots {
		available += lot.Remaining
	}
	result := DeductResult{Available: available, Requested: qty}
	if available < qty {
		s.metrics.observeInsufficient()
		return result, nil
	}

	left := qty
	for _, lot := range lots {
		if left == 0 {
			break
		}
		if lot.Remaining == 0 {
			continue
		}
		take := lot.Remaining
		if take > left {
			take = left
		}
		if err := tx.SetRemaining(ctx, lot.ID, lot.Remaining-take); err != nil {
			return DeductResult{}, err
		}
		left -= take
	}
	result.OK = true
	s.metrics.observeDeduct(qty)
	s.bumpCache(ctx)
	return result, nil
}

// Restore adds qty back to the product's lots newest-first, each lot
// bounded by its original quantity. Restoring more than was ever deducted
// drops the excess rather than failing; callers that must not lose units
// guard against over-restoration before calling.
func (s *Service) Restore(ctx context.Context, productID, qty int64) (RestoreResult, error) {
	if qty < 0 {
		return RestoreResult{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return RestoreResult{}, nil
	}

	var result RestoreResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		result, err = s.RestoreInTx(ctx, tx, productID, qty)
		return err
	})
	if err != nil {
		return RestoreResult{}, err
	}

	if result.Restored > 0 {
		s.recordActivity(ctx, shared.ActionUpdate,
			fmt.Sprintf("Restored %d units of product ID %d to stock", result.Restored, productID),
			productID, result.Restored)
	}
	return result, nil
}

// RestoreInTx runs the reverse-FIFO walk inside the caller's transaction.
// The caller owns the commit and any activity trail.
func (s *Service) RestoreInTx(ctx context.Context, tx TxRepository, productID, qty int64) (RestoreResult, error) {
	if qty < 0 {
		return RestoreResult{}, ErrInvalidQuantity
	}
	if qty == 0 {
		return RestoreResult{}, nil
	}

	lots, err := tx.LotsForUpdate(ctx, productID)
	if err != nil {
		return RestoreResult{}, err
	}
	if len(lots) == 0 {
		exists, err := tx.ProductExists(ctx, productID)
		if err != nil {
			return RestoreResult{}, err
		}
		if !exists {
			return RestoreResult{}, ErrProductNotFound
		}
	}

	left := qty
	for i := len(lots) - 1; i >= 0 && left > 0; i-- {
		lot := lots[i]
		capacity := lot.Quantity - lot.Remaining
		if capacity <= 0 {
			continue
		}
		add := capacity
		if add > left {
			add = left
		}
		if err := tx.SetRemaining(ctx, lot.ID, lot.Remaining+add); err != nil {
			return RestoreResult{}, err
		}
		left -= add
	}
	result := RestoreResult{Requested: qty, Restored: qty - left, Dropped: left}
	s.metrics.observeRestore(result.Restored)
	if result.Restored > 0 {
		s.bumpCache(ctx)
	}
	return result, nil
}

// bumpCache is best-effort; stale statistics age out through the TTL.
func (s *Service) bumpCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Bump(ctx)
}

func (s *Service) recordActivity(ctx context.Context, action, description string, productID, qty int64) {
	if s.activity == nil {
		return
	}
	_ = s.activity.Record(ctx, shared.ActivityEntry{
		Action:      action,
		Entity:      "purchase_orders",
		Description: description,
		NewValues: map[string]any{
			"product_id": productID,
			"quantity":   qty,
		},
	})
}

func summarise(row SummaryRow) ProductStockSummary {
	used := row.TotalOrdered - row.TotalRemaining
	var pct float64
	if row.TotalOrdered > 0 {
		pct = float64(used) / float64(row.TotalOrdered) * 100
	}
	return ProductStockSummary{
		ProductID:        row.ProductID,
		ProductName:      row.ProductName,
		ProductReference: row.ProductReference,
		TotalOrdered:     row.TotalOrdered,
		TotalRemaining:   row.TotalRemaining,
		TotalUsed:        used,
		UsagePercentage:  pct,
	}
}
