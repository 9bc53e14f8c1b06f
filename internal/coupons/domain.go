package coupons

import (
	"errors"
	"time"
)

// Coupon is one patient distribution entry. A coupon is received from a
// medical centre, optionally linked to a product, and later verified when
// the delivery is confirmed; verification deducts the coupon's quantity
// from the product's lots.
type Coupon struct {
	ID                     int64      `json:"id"`
	PatientName            string     `json:"patient_name,omitempty"`
	CPR                    string     `json:"cpr,omitempty"`
	QuantityPieces         int64      `json:"quantity_pieces"`
	CouponReference        string     `json:"coupon_reference"`
	MedicalCentreID        int64      `json:"medical_centre_id"`
	DistributionLocationID int64      `json:"distribution_location_id"`
	ProductID              *int64     `json:"product_id"`
	Verified               bool       `json:"verified"`
	VerificationReference  string     `json:"verification_reference,omitempty"`
	DeliveryNoteNumber     string     `json:"delivery_note_number,omitempty"`
	GRVReference           string     `json:"grv_reference,omitempty"`
	DateReceived           time.Time  `json:"date_received"`
	DateVerified           *time.Time `json:"date_verified,omitempty"`
	Notes                  string     `json:"notes,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// VerifyResult reports a verification attempt. Insufficient stock is a
// business outcome, not an error: OK is false, the coupon is untouched,
// and Available/Requested carry the numbers for the caller's message.
type VerifyResult struct {
	OK        bool
	Coupon    Coupon
	Available int64
	Requested int64
}

var (
	ErrNotFound           = errors.New("coupons: coupon not found")
	ErrValidation         = errors.New("coupons: invalid input")
	ErrDuplicateReference = errors.New("coupons: coupon reference already exists")
	ErrUnknownLink        = errors.New("coupons: referenced centre, location or product does not exist")
	ErrAlreadyVerified    = errors.New("coupons: coupon already verified")
	ErrNotVerified        = errors.New("coupons: coupon is not verified")
	ErrNoProduct          = errors.New("coupons: coupon has no product link")
	ErrVerifiedImmutable  = errors.New("coupons: verified coupons cannot be edited")
)
