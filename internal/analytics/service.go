package analytics

import (
	"context"
	"strconv"

	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// RepositoryPort exposes the count queries the statistics need.
type RepositoryPort interface {
	Totals(ctx context.Context) (Totals, error)
}

// StockReader is the slice of the stock service the statistics read.
type StockReader interface {
	Summary(ctx context.Context) ([]stock.ProductStockSummary, error)
	LowStock(ctx context.Context, thresholdPct float64) ([]stock.ProductStockSummary, error)
}

// Service coordinates statistics query execution with the cache layer.
// Each block of the document is cached under its own versioned key; writes
// to the ledger bump the version and the next read rebuilds.
type Service struct {
	repo      RepositoryPort
	stock     StockReader
	cache     *Cache
	threshold float64
}

// NewService wires the counts repository and the stock reader with a Cache
// helper. threshold is the low-stock percentage the document reports on.
func NewService(repo RepositoryPort, stockReader StockReader, cache *Cache, threshold float64) *Service {
	return &Service{repo: repo, stock: stockReader, cache: cache, threshold: threshold}
}

// Totals resolves the entity counts using cache-aware lookups.
func (s *Service) Totals(ctx context.Context) (Totals, error) {
	loader := func(ctx context.Context) (any, error) {
		return s.repo.Totals(ctx)
	}
	key, err := s.cache.BuildKey(ctx, "statistics", "totals")
	if err != nil {
		return Totals{}, err
	}
	var totals Totals
	if err := s.cache.FetchJSON(ctx, key, &totals, loader); err != nil {
		return Totals{}, err
	}
	return totals, nil
}

// StockSummary resolves the per-product aggregates using cache-aware
// lookups.
func (s *Service) StockSummary(ctx context.Context) ([]stock.ProductStockSummary, error) {
	loader := func(ctx context.Context) (any, error) {
		return s.stock.Summary(ctx)
	}
	key, err := s.cache.BuildKey(ctx, "statistics", "stock_summary")
	if err != nil {
		return nil, err
	}
	var rows []stock.ProductStockSummary
	if err := s.cache.FetchJSON(ctx, key, &rows, loader); err != nil {
		return nil, err
	}
	return rows, nil
}

// LowStock resolves the products at or below the configured threshold
// using cache-aware lookups. The threshold is part of the key, so a config
// change never serves figures computed for the old threshold.
func (s *Service) LowStock(ctx context.Context) ([]stock.ProductStockSummary, error) {
	loader := func(ctx context.Context) (any, error) {
		return s.stock.LowStock(ctx, s.threshold)
	}
	key, err := s.cache.BuildKey(ctx, "statistics", "low_stock", thresholdToken(s.threshold))
	if err != nil {
		return nil, err
	}
	var rows []stock.ProductStockSummary
	if err := s.cache.FetchJSON(ctx, key, &rows, loader); err != nil {
		return nil, err
	}
	return rows, nil
}

func thresholdToken(threshold float64) string {
	return strconv.FormatFloat(threshold, 'f', -1, 64)
}
