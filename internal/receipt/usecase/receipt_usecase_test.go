package usecase

import (
	"context"
	"testing"
	"time"

	receiptdomain "github.com/vynious/finOS/internal/receipt/domain"
	"github.com/vynious/finOS/internal/receipt/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReceiptRepo struct {
	mock.Mock
}

func (m *mockReceiptRepo) InsertMany(ctx context.Context, receipts []*receiptdomain.Receipt) error {
	return m.Called(ctx, receipts).Error(0)
}

func (m *mockReceiptRepo) FindByOwner(ctx context.Context, owner string) ([]*receiptdomain.Receipt, error) {
	args := m.Called(ctx, owner)
	out, _ := args.Get(0).([]*receiptdomain.Receipt)
	return out, args.Error(1)
}

func (m *mockReceiptRepo) FindByOwnerAndMonth(ctx context.Context, owner string, year int, month time.Month) ([]*receiptdomain.Receipt, error) {
	args := m.Called(ctx, owner, year, month)
	out, _ := args.Get(0).([]*receiptdomain.Receipt)
	return out, args.Error(1)
}

func (m *mockReceiptRepo) UpdateCategories(ctx context.Context, owner, messageID string, categories []string) error {
	return m.Called(ctx, owner, messageID, categories).Error(0)
}

func TestListAll(t *testing.T) {
	repo := new(mockReceiptRepo)
	want := []*receiptdomain.Receipt{{MessageID: "m1"}}
	repo.On("FindByOwner", mock.Anything, "alice@example.com").Return(want, nil)

	got, err := NewReceiptUsecase(repo).List(context.Background(), "alice@example.com", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	repo.AssertExpectations(t)
}

func TestListMonth(t *testing.T) {
	repo := new(mockReceiptRepo)
	repo.On("FindByOwnerAndMonth", mock.Anything, "alice@example.com", 2024, time.March).Return([]*receiptdomain.Receipt{}, nil)

	_, err := NewReceiptUsecase(repo).List(context.Background(), "alice@example.com", 2024, 3)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestListInvalidPeriod(t *testing.T) {
	uc := NewReceiptUsecase(new(mockReceiptRepo))

	for _, p := range [][2]int{{2024, 0}, {0, 3}, {2024, 13}} {
		_, err := uc.List(context.Background(), "alice@example.com", p[0], p[1])
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	}
}

func TestUpdateCategoriesNormalizes(t *testing.T) {
	repo := new(mockReceiptRepo)
	repo.On("UpdateCategories", mock.Anything, "alice@example.com", "m1", []string{"food", "coffee"}).Return(nil)

	got, err := NewReceiptUsecase(repo).UpdateCategories(context.Background(), "alice@example.com", "m1", []string{" Food", "coffee", "", "FOOD"})
	require.NoError(t, err)
	assert.Equal(t, []string{"food", "coffee"}, got)
	repo.AssertExpectations(t)
}

func TestUpdateCategoriesErrors(t *testing.T) {
	repo := new(mockReceiptRepo)
	repo.On("UpdateCategories", mock.Anything, "alice@example.com", "missing", []string{}).Return(repository.ErrReceiptNotFound)
	uc := NewReceiptUsecase(repo)

	_, err := uc.UpdateCategories(context.Background(), "alice@example.com", "missing", nil)
	assert.ErrorIs(t, err, repository.ErrReceiptNotFound)

	many := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}
	_, err = uc.UpdateCategories(context.Background(), "alice@example.com", "m1", many)
	assert.ErrorIs(t, err, ErrTooManyCategories)
}
