package analytics

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/alnoor-medical/stocktrack/internal/platform/httpx"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// Handler serves the statistics endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a statistics handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the statistics endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/inventory", h.handleInventory)
}

func (h *Handler) handleInventory(w http.ResponseWriter, r *http.Request) {
	value, err, _ := singleflightStatistics(r.Context(), "statistics:inventory", func(ctx context.Context) (any, error) {
		return h.buildDocument(ctx)
	})
	if err != nil {
		h.logger.Error("build inventory statistics", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	stats, ok := value.(InventoryStatistics)
	if !ok {
		h.logger.Error("build inventory statistics", slog.String("error", "unexpected document type"))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

// buildDocument fans the three independent queries out and assembles the
// document once all of them land.
func (h *Handler) buildDocument(ctx context.Context) (InventoryStatistics, error) {
	var doc InventoryStatistics

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		totals, err := h.service.Totals(ctx)
		if err != nil {
			return err
		}
		doc.Totals = totals
		return nil
	})

	g.Go(func() error {
		rows, err := h.service.StockSummary(ctx)
		if err != nil {
			return err
		}
		doc.StockSummary = rows
		return nil
	})

	g.Go(func() error {
		rows, err := h.service.LowStock(ctx)
		if err != nil {
			return err
		}
		doc.LowStock = rows
		return nil
	})

	if err := g.Wait(); err != nil {
		return InventoryStatistics{}, err
	}
	if doc.StockSummary == nil {
		doc.StockSummary = []stock.ProductStockSummary{}
	}
	if doc.LowStock == nil {
		doc.LowStock = []stock.ProductStockSummary{}
	}
	return doc, nil
}
