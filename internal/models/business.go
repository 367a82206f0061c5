package models

import "time"

// Business is a user-owned business listing.
type Business struct {
	ID          string    `db:"id" json:"id"`
	OwnerUserID string    `db:"owner_user_id" json:"ownerUserId"`
	Name        string    `db:"name" json:"name"`
	Category    string    `db:"category" json:"category"`
	Description string    `db:"description" json:"description"`
	City        string    `db:"city" json:"city"`
	State       string    `db:"state" json:"state"`
	Website     string    `db:"website" json:"website"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
