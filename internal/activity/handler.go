package activity

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/alnoor-medical/stocktrack/internal/platform/httpx"
	"github.com/alnoor-medical/stocktrack/internal/shared"
)

const (
	defaultDateRange = 7 * 24 * time.Hour
	maxDateRangeDays = 90
)

type validationError struct {
	field string
}

func (e validationError) Error() string {
	return "invalid filter: " + e.field
}

// Handler serves the audit trail, read-only.
type Handler struct {
	logger  *slog.Logger
	service *Service
	now     func() time.Time
}

// NewHandler constructs the activity handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

// MountRoutes registers the activity endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.Timeline)
}

func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	filters, err := h.parseFilters(r)
	if err != nil {
		var verr validationError
		if errors.As(err, &verr) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", verr.Error())
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", err.Error())
		return
	}

	result, err := h.service.Timeline(r.Context(), filters)
	if err != nil {
		h.logger.Error("load activity timeline", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":   result.Rows,
		"paging": result.Paging,
	})
}

// parseFilters reads the query string. Dates are whole days; the `to` day
// is widened by one so it is included in the window.
func (h *Handler) parseFilters(r *http.Request) (Filters, error) {
	now := h.now().UTC()

	toStr := strings.TrimSpace(r.URL.Query().Get("to"))
	if toStr == "" {
		toStr = now.Format("2006-01-02")
	}
	toDay, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return Filters{}, validationError{field: "to"}
	}

	fromStr := strings.TrimSpace(r.URL.Query().Get("from"))
	if fromStr == "" {
		fromStr = toDay.Add(-defaultDateRange).Format("2006-01-02")
	}
	fromDay, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return Filters{}, validationError{field: "from"}
	}
	if fromDay.After(toDay) {
		return Filters{}, validationError{field: "range"}
	}
	if toDay.Sub(fromDay) > maxDateRangeDays*24*time.Hour {
		return Filters{}, validationError{field: "range"}
	}

	filters := Filters{
		From:   fromDay,
		To:     toDay.AddDate(0, 0, 1),
		Entity: strings.TrimSpace(r.URL.Query().Get("entity")),
	}

	if action := strings.TrimSpace(r.URL.Query().Get("action")); action != "" {
		action = strings.ToUpper(action)
		if !shared.IsAllowedAction(action) {
			return Filters{}, validationError{field: "action"}
		}
		filters.Action = action
	}

	if raw := strings.TrimSpace(r.URL.Query().Get("entity_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return Filters{}, validationError{field: "entity_id"}
		}
		filters.EntityID = &id
	}

	if v := strings.TrimSpace(r.URL.Query().Get("page")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Filters{}, validationError{field: "page"}
		}
		filters.Page = parsed
	}
	if v := strings.TrimSpace(r.URL.Query().Get("page_size")); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return Filters{}, validationError{field: "page_size"}
		}
		filters.PageSize = parsed
	}
	return filters, nil
}
