package repository

import (
	"context"
	"errors"
	"time"

	authdomain "github.com/vynious/finOS/internal/auth/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository persists OAuth tokens per (user, provider)
type TokenRepository interface {
	// Find returns nil, nil when no token is stored
	Find(ctx context.Context, email, provider string) (*authdomain.OAuthToken, error)
	Save(ctx context.Context, token *authdomain.OAuthToken) error
}

// tokenRepository implements TokenRepository interface
type tokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository creates a new instance of tokenRepository
func NewTokenRepository(db *gorm.DB) TokenRepository {
	return &tokenRepository{
		db: db,
	}
}

func (r *tokenRepository) Find(ctx context.Context, email, provider string) (*authdomain.OAuthToken, error) {
	var token authdomain.OAuthToken
	err := r.db.WithContext(ctx).Where("user_email = ? AND provider = ?", email, provider).First(&token).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &token, nil
}

func (r *tokenRepository) Save(ctx context.Context, token *authdomain.OAuthToken) error {
	token.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_email"}, {Name: "provider"}},
		DoUpdates: clause.AssignmentColumns([]string{"access_token", "refresh_token", "expires_at", "updated_at"}),
	}).Create(token).Error
}
