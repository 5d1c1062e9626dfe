package domain

import "time"

// User is an account holder whose linked mailbox is scanned for receipts
type User struct {
	Email           string    `json:"email" gorm:"primaryKey"`
	DisplayName     string    `json:"display_name"`
	Active          bool      `json:"active" gorm:"not null;index"`
	LastSynced      *int64    `json:"last_synced,omitempty"` // epoch milliseconds
	LinkedAccountID string    `json:"linked_account_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
