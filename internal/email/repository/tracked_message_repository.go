package repository

import (
	"context"
	"errors"
	"time"

	emaildomain "github.com/vynious/finOS/internal/email/domain"

	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// trackedMessageRepository implements TrackedMessageRepository on Postgres
type trackedMessageRepository struct {
	db *gorm.DB
}

// NewTrackedMessageRepository creates a new instance of trackedMessageRepository
func NewTrackedMessageRepository(db *gorm.DB) TrackedMessageRepository {
	return &trackedMessageRepository{
		db: db,
	}
}

func (r *trackedMessageRepository) Get(ctx context.Context, owner string) ([]string, error) {
	var set emaildomain.TrackedMessageSet
	err := r.db.WithContext(ctx).Where("owner = ?", owner).First(&set).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return []string(set.MessageIDs), nil
}

// Set upserts the whole id array in one statement
func (r *trackedMessageRepository) Set(ctx context.Context, owner string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	set := emaildomain.TrackedMessageSet{
		Owner:      owner,
		MessageIDs: pq.StringArray(ids),
		UpdatedAt:  time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner"}},
		DoUpdates: clause.AssignmentColumns([]string{"message_ids", "updated_at"}),
	}).Create(&set).Error
}
