package analytics

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/alnoor-medical/stocktrack/internal/stock"
)

type mockRepo struct {
	totals      Totals
	totalsErr   error
	totalsCalls int
}

func (m *mockRepo) Totals(ctx context.Context) (Totals, error) {
	m.totalsCalls++
	return m.totals, m.totalsErr
}

type mockStock struct {
	summary       []stock.ProductStockSummary
	low           []stock.ProductStockSummary
	summaryCalls  int
	lowCalls      int
	lastThreshold float64
}

func (m *mockStock) Summary(ctx context.Context) ([]stock.ProductStockSummary, error) {
	m.summaryCalls++
	return m.summary, nil
}

func (m *mockStock) LowStock(ctx context.Context, thresholdPct float64) ([]stock.ProductStockSummary, error) {
	m.lowCalls++
	m.lastThreshold = thresholdPct
	return m.low, nil
}

func newTestService(t *testing.T, repo *mockRepo, reader *mockStock) (*Service, func()) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCache(client, time.Minute)
	svc := NewService(repo, reader, cache, 20)
	return svc, func() {
		_ = client.Close()
		mr.Close()
	}
}

func TestTotalsCaches(t *testing.T) {
	repo := &mockRepo{totals: Totals{
		Products:       12,
		PurchaseOrders: 48,
		Coupons:        230,
		Locations:      5,
		Centres:        3,
	}}
	svc, cleanup := newTestService(t, repo, &mockStock{})
	defer cleanup()

	ctx := context.Background()
	totals, err := svc.Totals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Coupons != 230 {
		t.Fatalf("expected 230 coupons got %d", totals.Coupons)
	}
	if repo.totalsCalls != 1 {
		t.Fatalf("expected 1 repo call, got %d", repo.totalsCalls)
	}

	// Second call should hit cache.
	if _, err := svc.Totals(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.totalsCalls != 1 {
		t.Fatalf("expected cached result, repo called %d times", repo.totalsCalls)
	}

	// Bumping the cache should trigger reload.
	if err := svc.cache.Bump(ctx); err != nil {
		t.Fatalf("bump failed: %v", err)
	}
	repo.totals.Coupons = 231
	totals, err = svc.Totals(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if totals.Coupons != 231 {
		t.Fatalf("expected refreshed value 231 got %d", totals.Coupons)
	}
	if repo.totalsCalls != 2 {
		t.Fatalf("expected repo to refresh, calls %d", repo.totalsCalls)
	}
}

func TestStockSummaryAndLowStock(t *testing.T) {
	reader := &mockStock{
		summary: []stock.ProductStockSummary{
			{ProductID: 1, ProductName: "Insulin Pen", TotalOrdered: 100, TotalRemaining: 40, TotalUsed: 60, UsagePercentage: 60},
			{ProductID: 2, ProductName: "Test Strips", TotalOrdered: 200, TotalRemaining: 180, TotalUsed: 20, UsagePercentage: 10},
		},
		low: []stock.ProductStockSummary{
			{ProductID: 3, ProductName: "Lancets", TotalOrdered: 50, TotalRemaining: 5, TotalUsed: 45, UsagePercentage: 90},
		},
	}
	svc, cleanup := newTestService(t, &mockRepo{}, reader)
	defer cleanup()

	ctx := context.Background()
	rows, err := svc.StockSummary(ctx)
	if err != nil {
		t.Fatalf("summary error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 summary rows got %d", len(rows))
	}
	if _, err := svc.StockSummary(ctx); err != nil {
		t.Fatalf("summary cache error: %v", err)
	}
	if reader.summaryCalls != 1 {
		t.Fatalf("expected cached summary, reader calls %d", reader.summaryCalls)
	}

	low, err := svc.LowStock(ctx)
	if err != nil {
		t.Fatalf("low stock error: %v", err)
	}
	if len(low) != 1 || low[0].ProductID != 3 {
		t.Fatalf("unexpected low stock rows %#v", low)
	}
	if reader.lastThreshold != 20 {
		t.Fatalf("expected configured threshold 20, reader saw %.1f", reader.lastThreshold)
	}
}

func TestNilCacheFallsBackToLoader(t *testing.T) {
	repo := &mockRepo{totals: Totals{Products: 7}}
	svc := NewService(repo, &mockStock{}, nil, 20)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		totals, err := svc.Totals(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if totals.Products != 7 {
			t.Fatalf("expected 7 products got %d", totals.Products)
		}
	}
	if repo.totalsCalls != 2 {
		t.Fatalf("expected loader on every call without cache, got %d", repo.totalsCalls)
	}
}

func TestHandlerAssemblesDocument(t *testing.T) {
	repo := &mockRepo{totals: Totals{Products: 2, PurchaseOrders: 9, Coupons: 14, Locations: 4, Centres: 1}}
	reader := &mockStock{
		summary: []stock.ProductStockSummary{
			{ProductID: 1, ProductName: "Insulin Pen", ProductReference: "INS-01", TotalOrdered: 100, TotalRemaining: 15, TotalUsed: 85, UsagePercentage: 85},
		},
		low: []stock.ProductStockSummary{
			{ProductID: 1, ProductName: "Insulin Pen", ProductReference: "INS-01", TotalOrdered: 100, TotalRemaining: 15, TotalUsed: 85, UsagePercentage: 85},
		},
	}
	svc := NewService(repo, reader, nil, 20)
	handler := NewHandler(nil, svc)

	router := chi.NewRouter()
	router.Route("/statistics", handler.MountRoutes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/statistics/inventory", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var doc InventoryStatistics
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Totals.Coupons != 14 {
		t.Fatalf("expected 14 coupons got %d", doc.Totals.Coupons)
	}
	if len(doc.StockSummary) != 1 || doc.StockSummary[0].ProductReference != "INS-01" {
		t.Fatalf("unexpected stock summary %#v", doc.StockSummary)
	}
	if len(doc.LowStock) != 1 {
		t.Fatalf("expected 1 low stock row got %d", len(doc.LowStock))
	}
}

func TestHandlerReturnsEmptySlicesNotNull(t *testing.T) {
	svc := NewService(&mockRepo{}, &mockStock{}, nil, 20)
	handler := NewHandler(nil, svc)

	router := chi.NewRouter()
	router.Route("/statistics", handler.MountRoutes)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/statistics/inventory", nil)
	router.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if string(raw["stock_summary"]) != "[]" {
		t.Fatalf("expected empty array for stock_summary, got %s", raw["stock_summary"])
	}
	if string(raw["low_stock"]) != "[]" {
		t.Fatalf("expected empty array for low_stock, got %s", raw["low_stock"])
	}
}
