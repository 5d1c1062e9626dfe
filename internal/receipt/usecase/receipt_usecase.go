package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	"github.com/vynious/finOS/internal/receipt/repository"
)

var (
	ErrInvalidPeriod     = errors.New("year and month must be given together")
	ErrTooManyCategories = errors.New("too many categories")
)

const maxCategories = 10

// ReceiptUsecase serves stored receipts to their owner
type ReceiptUsecase interface {
	// List returns all receipts, or one UTC month's when year and month are set
	List(ctx context.Context, owner string, year int, month int) ([]*receiptdomain.Receipt, error)
	UpdateCategories(ctx context.Context, owner, messageID string, categories []string) ([]string, error)
}

type receiptUsecase struct {
	repo repository.ReceiptRepository
}

// NewReceiptUsecase creates a new instance of receiptUsecase
func NewReceiptUsecase(repo repository.ReceiptRepository) ReceiptUsecase {
	return &receiptUsecase{repo: repo}
}

func (u *receiptUsecase) List(ctx context.Context, owner string, year int, month int) ([]*receiptdomain.Receipt, error) {
	if year == 0 && month == 0 {
		return u.repo.FindByOwner(ctx, owner)
	}
	if year == 0 || month < 1 || month > 12 {
		return nil, ErrInvalidPeriod
	}
	return u.repo.FindByOwnerAndMonth(ctx, owner, year, time.Month(month))
}

// UpdateCategories trims, lower-cases and de-duplicates the labels before
// storing them. The normalized list is returned.
func (u *receiptUsecase) UpdateCategories(ctx context.Context, owner, messageID string, categories []string) ([]string, error) {
	seen := make(map[string]struct{}, len(categories))
	cleaned := make([]string, 0, len(categories))
	for _, c := range categories {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		cleaned = append(cleaned, c)
	}
	if len(cleaned) > maxCategories {
		return nil, fmt.Errorf("%w: at most %d are allowed", ErrTooManyCategories, maxCategories)
	}

	if err := u.repo.UpdateCategories(ctx, owner, messageID, cleaned); err != nil {
		return nil, err
	}
	return cleaned, nil
}
