package stock

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for ledger operations.
type Metrics struct {
	deducted     prometheus.Counter
	restored     prometheus.Counter
	insufficient prometheus.Counter
	lowStock     *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the ledger metrics against the provided registerer.
// When the registerer is nil the default Prometheus registerer is used.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	deducted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocktrack_stock_deducted_units_total",
		Help: "Units deducted from lots by FIFO allocation.",
	})
	restored := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocktrack_stock_restored_units_total",
		Help: "Units restored to lots by reverse-FIFO restoration.",
	})
	insufficient := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stocktrack_stock_insufficient_total",
		Help: "Deduction attempts rejected for insufficient stock.",
	})
	lowStock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stocktrack_stock_remaining_percent",
		Help: "Remaining share of ordered quantity per product, set by the low-stock scan.",
	}, []string{"product_id"})
	registerer.MustRegister(deducted, restored, insufficient, lowStock)
	return &Metrics{deducted: deducted, restored: restored, insufficient: insufficient, lowStock: lowStock}
}

func (m *Metrics) observeDeduct(units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.deducted.Add(float64(units))
}

func (m *Metrics) observeRestore(units int64) {
	if m == nil || units <= 0 {
		return
	}
	m.restored.Add(float64(units))
}

func (m *Metrics) observeInsufficient() {
	if m == nil {
		return
	}
	m.insufficient.Inc()
}

// SetRemainingPercent records a product's remaining share of its ordered
// quantity. Used by the periodic low-stock scan.
func (m *Metrics) SetRemainingPercent(productID int64, pct float64) {
	if m == nil {
		return
	}
	m.lowStock.WithLabelValues(strconv.FormatInt(productID, 10)).Set(pct)
}
