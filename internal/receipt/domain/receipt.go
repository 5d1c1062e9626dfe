package domain

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Receipt is one transaction extracted from a message. Only Categories
// changes after insert.
type Receipt struct {
	ID         string          `json:"id" gorm:"primaryKey"`
	MessageID  string          `json:"message_id" gorm:"not null;index:idx_receipt_owner_msg"`
	Owner      string          `json:"owner" gorm:"not null;index:idx_receipt_owner_msg;index:idx_receipt_owner_ts"`
	Issuer     string          `json:"issuer" gorm:"not null"`
	Merchant   string          `json:"merchant"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(18,4);not null"`
	Currency   string          `json:"currency"`
	Categories pq.StringArray  `json:"categories,omitempty" gorm:"type:text[]"`
	Timestamp  int64           `json:"timestamp" gorm:"not null;index:idx_receipt_owner_ts"` // epoch seconds
	CreatedAt  time.Time       `json:"created_at"`
}

// TableName specifies the table name for GORM
func (Receipt) TableName() string {
	return "receipts"
}

// Complete reports whether the fields every stored receipt must carry are set
func (r *Receipt) Complete() bool {
	return r.MessageID != "" && r.Owner != "" && r.Issuer != "" && r.Timestamp > 0
}
