package models

import "time"

// UsageRecord is one quota-counted action. Rows are append-only.
type UsageRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Plan      Plan      `json:"plan"`
	Action    string    `json:"action"`
	CreatedAt time.Time `json:"created_at"`
}

// UsageWindow is the quota a store must re-check inside the transaction
// that appends a UsageRecord: at most Limit free rows since Since.
type UsageWindow struct {
	Since time.Time
	Limit int
}
