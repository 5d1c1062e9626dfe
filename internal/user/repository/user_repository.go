package repository

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/vynious/finOS/internal/user/domain"

	"gorm.io/gorm"
)

// UserRepository is the user directory the ingestor reads from
type UserRepository interface {
	// ListActive returns every user with active = true
	ListActive(ctx context.Context) ([]*userdomain.User, error)
	// UpdateWatermarks writes LastSynced for each given user in one transaction
	UpdateWatermarks(ctx context.Context, users []*userdomain.User) error
	// FindByEmail returns nil, nil when the user does not exist
	FindByEmail(ctx context.Context, email string) (*userdomain.User, error)
}

// userRepository implements UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new instance of userRepository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{
		db: db,
	}
}

func (r *userRepository) ListActive(ctx context.Context) ([]*userdomain.User, error) {
	var users []*userdomain.User
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("email").Find(&users).Error
	return users, err
}

func (r *userRepository) UpdateWatermarks(ctx context.Context, users []*userdomain.User) error {
	if len(users) == 0 {
		return nil
	}
	now := time.Now()
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range users {
			err := tx.Model(&userdomain.User{}).
				Where("email = ?", u.Email).
				Updates(map[string]interface{}{"last_synced": u.LastSynced, "updated_at": now}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*userdomain.User, error) {
	var user userdomain.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
