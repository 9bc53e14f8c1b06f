package activity

import (
	"encoding/json"
	"time"
)

// Entry is one row of the audit trail as served to clients. OldValues and
// NewValues pass through as raw JSON; the writer controls their shape.
type Entry struct {
	ID          int64           `json:"id"`
	Action      string          `json:"action"`
	Entity      string          `json:"entity"`
	EntityID    int64           `json:"entity_id"`
	Description string          `json:"description"`
	Actor       string          `json:"actor,omitempty"`
	OldValues   json.RawMessage `json:"old_values,omitempty"`
	NewValues   json.RawMessage `json:"new_values,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Filters narrows the timeline.
type Filters struct {
	From     time.Time
	To       time.Time
	Action   string
	Entity   string
	EntityID *int64
	Page     int
	PageSize int
}

// PagingInfo describes the window position. The table is append-only and
// unbounded, so paging reports has-next instead of a total count.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	NextPage int  `json:"next_page,omitempty"`
	PrevPage int  `json:"prev_page,omitempty"`
}

// Result is a timeline window with its paging position.
type Result struct {
	Rows   []Entry
	Paging PagingInfo
}
