package repository

import (
	"context"
	"errors"
	"time"

	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrReceiptNotFound = errors.New("receipt not found")

const insertBatchSize = 200

// ReceiptRepository is the receipt store
type ReceiptRepository interface {
	InsertMany(ctx context.Context, receipts []*receiptdomain.Receipt) error
	FindByOwner(ctx context.Context, owner string) ([]*receiptdomain.Receipt, error)
	// FindByOwnerAndMonth returns receipts whose timestamp falls in the UTC calendar month
	FindByOwnerAndMonth(ctx context.Context, owner string, year int, month time.Month) ([]*receiptdomain.Receipt, error)
	// UpdateCategories sets the categories of every receipt from one message
	UpdateCategories(ctx context.Context, owner, messageID string, categories []string) error
}

// receiptRepository implements ReceiptRepository interface
type receiptRepository struct {
	db *gorm.DB
}

// NewReceiptRepository creates a new instance of receiptRepository
func NewReceiptRepository(db *gorm.DB) ReceiptRepository {
	return &receiptRepository{
		db: db,
	}
}

func (r *receiptRepository) InsertMany(ctx context.Context, receipts []*receiptdomain.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	now := time.Now()
	for _, rc := range receipts {
		if rc.ID == "" {
			rc.ID = uuid.New().String()
		}
		rc.CreatedAt = now
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(receipts, insertBatchSize).Error
}

func (r *receiptRepository) FindByOwner(ctx context.Context, owner string) ([]*receiptdomain.Receipt, error) {
	var receipts []*receiptdomain.Receipt
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("timestamp DESC").
		Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) FindByOwnerAndMonth(ctx context.Context, owner string, year int, month time.Month) ([]*receiptdomain.Receipt, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var receipts []*receiptdomain.Receipt
	err := r.db.WithContext(ctx).
		Where("owner = ? AND timestamp >= ? AND timestamp < ?", owner, start.Unix(), end.Unix()).
		Order("timestamp DESC").
		Find(&receipts).Error
	return receipts, err
}

func (r *receiptRepository) UpdateCategories(ctx context.Context, owner, messageID string, categories []string) error {
	result := r.db.WithContext(ctx).
		Model(&receiptdomain.Receipt{}).
		Where("owner = ? AND message_id = ?", owner, messageID).
		Update("categories", pq.StringArray(categories))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrReceiptNotFound
	}
	return nil
}
