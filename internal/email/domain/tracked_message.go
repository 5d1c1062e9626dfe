package domain

import (
	"time"

	"github.com/lib/pq"
)

// TrackedMessageSet records every message id already processed for a user.
// The set only grows; writes replace the whole row with a superset.
type TrackedMessageSet struct {
	Owner      string         `json:"owner" gorm:"primaryKey"`
	MessageIDs pq.StringArray `json:"message_ids" gorm:"type:text[];not null;default:'{}'"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (TrackedMessageSet) TableName() string {
	return "tracked_emails"
}
