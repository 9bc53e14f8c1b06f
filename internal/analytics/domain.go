package analytics

import (
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// Totals counts the primary records across the system, one figure per
// top-level entity.
type Totals struct {
	Products       int64 `json:"products"`
	PurchaseOrders int64 `json:"purchase_orders"`
	Coupons        int64 `json:"coupons"`
	Locations      int64 `json:"locations"`
	Centres        int64 `json:"centres"`
}

// InventoryStatistics is the full statistics document served to clients:
// entity totals plus the per-product stock aggregates the dashboard plots.
type InventoryStatistics struct {
	Totals       Totals                      `json:"totals"`
	StockSummary []stock.ProductStockSummary `json:"stock_summary"`
	LowStock     []stock.ProductStockSummary `json:"low_stock"`
}
