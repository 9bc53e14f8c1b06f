package centres

import (
	"time"
)

// Centre is a medical centre that issues patient coupons.
type Centre struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	Reference     string    `json:"reference"`
	Address       string    `json:"address,omitempty"`
	ContactPerson string    `json:"contact_person,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
