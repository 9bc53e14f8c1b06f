package coupons

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/alnoor-medical/stocktrack/internal/platform/httpx"
	internalShared "github.com/alnoor-medical/stocktrack/internal/shared"
	"github.com/alnoor-medical/stocktrack/internal/stock"
)

// CouponForm is the JSON body for creating and replacing a coupon.
type CouponForm struct {
	PatientName            string     `json:"patient_name" validate:"required,max=255"`
	CPR                    string     `json:"cpr" validate:"omitempty,max=20"`
	QuantityPieces         int64      `json:"quantity_pieces" validate:"required,gt=0"`
	CouponReference        string     `json:"coupon_reference" validate:"required,max=100"`
	MedicalCentreID        int64      `json:"medical_centre_id" validate:"required,gt=0"`
	DistributionLocationID int64      `json:"distribution_location_id" validate:"required,gt=0"`
	ProductID              *int64     `json:"product_id" validate:"omitempty,gt=0"`
	DateReceived           *time.Time `json:"date_received"`
	Notes                  string     `json:"notes" validate:"max=2000"`
}

func (f CouponForm) toInput() CouponInput {
	return CouponInput{
		PatientName:            f.PatientName,
		CPR:                    f.CPR,
		QuantityPieces:         f.QuantityPieces,
		CouponReference:        f.CouponReference,
		MedicalCentreID:        f.MedicalCentreID,
		DistributionLocationID: f.DistributionLocationID,
		ProductID:              f.ProductID,
		DateReceived:           f.DateReceived,
		Notes:                  f.Notes,
	}
}

// VerifyForm is the JSON body for the verify endpoint. All fields are
// optional; a missing verification reference is generated.
type VerifyForm struct {
	VerificationReference string `json:"verification_reference" validate:"omitempty,max=100"`
	DeliveryNoteNumber    string `json:"delivery_note_number" validate:"omitempty,max=100"`
	GRVReference          string `json:"grv_reference" validate:"omitempty,max=100"`
}

type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validate: newFormValidator()}
}

// newFormValidator reports violations under the field's JSON name.
func newFormValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func validationDetail(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		case "max":
			msgs = append(msgs, fe.Field()+" must be at most "+fe.Param()+" characters")
		default:
			msgs = append(msgs, fe.Field()+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// MountRoutes registers the coupon endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Show)
	r.Put("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/verify", h.Verify)
	r.Post("/{id}/unverify", h.Unverify)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromRequest(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", err.Error())
		return
	}
	coupons, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, "list coupons", err)
		return
	}
	if coupons == nil {
		coupons = []Coupon{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"data":       coupons,
		"pagination": internalShared.NewPagination(filter.Page, filter.Limit, total),
	})
}

func (h *Handler) Show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "coupon id must be an integer")
		return
	}
	coupon, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, "get coupon", err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var form CouponForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	created, err := h.service.Create(r.Context(), form.toInput())
	if err != nil {
		h.respondError(w, "create coupon", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "coupon id must be an integer")
		return
	}
	var form CouponForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
		return
	}
	updated, err := h.service.Update(r.Context(), id, form.toInput())
	if err != nil {
		h.respondError(w, "update coupon", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "coupon id must be an integer")
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.respondError(w, "delete coupon", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "coupon id must be an integer")
		return
	}
	form := VerifyForm{}
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		if err := h.validate.Struct(form); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", validationDetail(err))
			return
		}
	}
	result, err := h.service.Verify(r.Context(), id, VerifyInput{
		VerificationReference: form.VerificationReference,
		DeliveryNoteNumber:    form.DeliveryNoteNumber,
		GRVReference:          form.GRVReference,
	})
	if err != nil {
		h.respondError(w, "verify coupon", err)
		return
	}
	if !result.OK {
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock",
			fmt.Sprintf("Insufficient stock. Available: %d, Requested: %d", result.Available, result.Requested))
		return
	}
	httpx.JSON(w, http.StatusOK, result.Coupon)
}

func (h *Handler) Unverify(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Parameter", "coupon id must be an integer")
		return
	}
	coupon, err := h.service.Unverify(r.Context(), id)
	if err != nil {
		h.respondError(w, "unverify coupon", err)
		return
	}
	httpx.JSON(w, http.StatusOK, coupon)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "coupon does not exist")
	case errors.Is(err, ErrDuplicateReference):
		httpx.Problem(w, http.StatusConflict, "Duplicate Reference", "a coupon with this reference already exists")
	case errors.Is(err, ErrAlreadyVerified):
		httpx.Problem(w, http.StatusConflict, "Already Verified", "this coupon has already been verified")
	case errors.Is(err, ErrNotVerified):
		httpx.Problem(w, http.StatusConflict, "Not Verified", "this coupon is not verified")
	case errors.Is(err, ErrVerifiedImmutable):
		httpx.Problem(w, http.StatusConflict, "Verified Coupon", "verified coupons cannot be edited, unverify first")
	case errors.Is(err, ErrNoProduct):
		httpx.Problem(w, http.StatusConflict, "No Product Link", "this coupon has no product to deduct stock from")
	case errors.Is(err, ErrUnknownLink):
		httpx.Problem(w, http.StatusBadRequest, "Unknown Reference", "referenced centre, location or product does not exist")
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, stock.ErrLockTimeout):
		httpx.Retryable(w, "stock rows are locked, retry shortly", 1)
	default:
		h.logger.Error(op, slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func filterFromRequest(r *http.Request) (ListFilter, error) {
	page, limit := internalShared.PageFromRequest(r)
	filter := ListFilter{
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Page:   page,
		Limit:  limit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("verified")); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return ListFilter{}, errors.New("verified must be true or false")
		}
		filter.Verified = &verified
	}

	var err error
	if filter.ProductID, err = queryID(r, "product_id"); err != nil {
		return ListFilter{}, err
	}
	if filter.MedicalCentreID, err = queryID(r, "medical_centre_id"); err != nil {
		return ListFilter{}, err
	}
	if filter.DistributionLocationID, err = queryID(r, "distribution_location_id"); err != nil {
		return ListFilter{}, err
	}
	return filter, nil
}

func queryID(r *http.Request, param string) (*int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.New(param + " must be a positive integer")
	}
	return &id, nil
}
