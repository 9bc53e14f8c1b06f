package procurement

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/alnoor-medical/stocktrack/internal/platform/httpx"
	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
)

// OrderForm is the create payload.
type OrderForm struct {
	POReference        string           `json:"po_reference"`
	ProductID          int64            `json:"product_id"`
	ProductDescription string           `json:"product_description"`
	Quantity           int64            `json:"quantity"`
	RemainingStock     *int64           `json:"remaining_stock"`
	WarehouseLocation  string           `json:"warehouse_location"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
}

// OrderPatch is the update payload; absent fields stay untouched.
type OrderPatch struct {
	POReference        *string          `json:"po_reference"`
	ProductID          *int64           `json:"product_id"`
	ProductDescription *string          `json:"product_description"`
	Quantity           *int64           `json:"quantity"`
	WarehouseLocation  *string          `json:"warehouse_location"`
	UnitPrice          *decimal.Decimal `json:"unit_price"`
	TaxRate            *decimal.Decimal `json:"tax_rate"`
}

// Handler serves the purchase-order endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers the purchase-order endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/reference/{reference}", h.ShowByReference)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := internalShared.PageFromRequest(r)
	filter := ListFilter{
		Search: r.URL.Query().Get("search"),
		Page:   page,
		Limit:  perPage,
	}
	if raw := r.URL.Query().Get("product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "product_id must be an integer")
			return
		}
		filter.ProductID = &id
	}

	orders, total, err := h.service.ListOrders(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list purchase orders", err)
		return
	}
	if orders == nil {
		orders = []PurchaseOrder{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       orders,
		"pagination": internalShared.NewPagination(page, perPage, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "purchase order id must be an integer")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, "get purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) ShowByReference(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.GetOrderByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.respondError(w, "get purchase order by reference", err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form OrderForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	created, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		POReference:        form.POReference,
		ProductID:          form.ProductID,
		ProductDescription: form.ProductDescription,
		Quantity:           form.Quantity,
		RemainingStock:     form.RemainingStock,
		WarehouseLocation:  form.WarehouseLocation,
		UnitPrice:          form.UnitPrice,
		TaxRate:            form.TaxRate,
	})
	if err != nil {
		h.respondError(w, "create purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "purchase order id must be an integer")
		return
	}
	var patch OrderPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	updated, err := h.service.UpdateOrder(r.Context(), id, UpdateOrderInput{
		POReference:        patch.POReference,
		ProductID:          patch.ProductID,
		ProductDescription: patch.ProductDescription,
		Quantity:           patch.Quantity,
		WarehouseLocation:  patch.WarehouseLocation,
		UnitPrice:          patch.UnitPrice,
		TaxRate:            patch.TaxRate,
	})
	if err != nil {
		h.respondError(w, "update purchase order", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "purchase order id must be an integer")
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id); err != nil {
		h.respondError(w, "delete purchase order", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "purchase order does not exist")
	case errors.Is(err, ErrDuplicateReference):
		httpx.Problem(w, http.StatusConflict, "Duplicate Reference", "a purchase order with this reference already exists")
	case errors.Is(err, ErrProductMissing):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Product", "the referenced product does not exist")
	case errors.Is(err, ErrQuantityBelowConsumed):
		httpx.Problem(w, http.StatusConflict, "Quantity Below Consumed", "quantity may not drop below the consumed stock")
	case errors.Is(err, ErrLotConsumed):
		httpx.Problem(w, http.StatusConflict, "Lot Consumed", "the product of a partially consumed lot cannot change")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrLockTimeout):
		httpx.Retryable(w, "purchase order rows are locked, retry shortly", 1)
	default:
		h.logger.Error(op, "error", err)
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}
