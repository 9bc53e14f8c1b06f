package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/alnoor-medical/stocktrack/internal/platform/httpx"
)

// Handler serves the read-only stock endpoints. Mutations go through the
// coupon workflow, never through this surface.
type Handler struct {
	logger           *slog.Logger
	service          *Service
	defaultThreshold float64
}

// NewHandler builds a stock handler. defaultThreshold is the low-stock
// percentage applied when a request does not carry its own.
func NewHandler(logger *slog.Logger, service *Service, defaultThreshold float64) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:           logger,
		service:          service,
		defaultThreshold: defaultThreshold,
	}
}

// MountRoutes registers the stock endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/summary", h.handleSummary)
	r.Get("/low", h.handleLowStock)
	r.Get("/validate", h.handleValidate)
	r.Get("/products/{productID}", h.handleProductTotal)
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summary(r.Context())
	if err != nil {
		h.respondError(w, "load stock summary", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": summaries})
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	threshold := h.defaultThreshold
	if raw := strings.TrimSpace(r.URL.Query().Get("threshold")); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Threshold", "threshold must be a number")
			return
		}
		threshold = parsed
	}
	rows, err := h.service.LowStock(r.Context(), threshold)
	if err != nil {
		h.respondError(w, "load low stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows, "threshold": threshold})
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	productID, err := queryInt64(r, "product_id")
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "product_id must be a positive integer")
		return
	}
	quantity, err := queryInt64(r, "quantity")
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "quantity must be an integer")
		return
	}
	availability, err := h.service.ValidateAvailability(r.Context(), productID, quantity)
	if err != nil {
		h.respondError(w, "validate availability", err)
		return
	}
	httpx.JSON(w, http.StatusOK, availability)
}

func (h *Handler) handleProductTotal(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "product id must be a positive integer")
		return
	}
	total, err := h.service.TotalStockByProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, "load product stock", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"product_id":  productID,
		"total_stock": total,
	})
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidThreshold):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Threshold", "threshold must be between 0 and 100")
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Invalid Quantity", "quantity must not be negative")
	case errors.Is(err, ErrProductNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "product does not exist")
	case errors.Is(err, ErrLockTimeout):
		httpx.Retryable(w, "stock rows are locked, retry shortly", 1)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func queryInt64(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, errors.New("missing " + key)
	}
	return strconv.ParseInt(raw, 10, 64)
}
