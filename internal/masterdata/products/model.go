package products

import (
	"time"
)

// Product represents a product entity
type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Reference   string    `json:"reference"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
