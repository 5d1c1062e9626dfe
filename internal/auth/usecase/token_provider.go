package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vynious/finOS/internal/auth/repository"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoLinkedAccount = errors.New("no linked account for user")
	ErrRefreshFailed   = errors.New("failed to refresh access token")
)

// expirySkew treats tokens this close to expiry as already expired.
const expirySkew = time.Minute

// TokenProvider hands out non-expired access tokens. Concurrent callers
// needing a refresh for the same (user, provider) share a single refresh.
type TokenProvider struct {
	repo           repository.TokenRepository
	oauth          *oauth2.Config
	group          singleflight.Group
	refreshTimeout time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewTokenProvider creates a new TokenProvider
func NewTokenProvider(repo repository.TokenRepository, oauthCfg *oauth2.Config, refreshTimeout time.Duration, logger *zap.Logger) *TokenProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenProvider{
		repo:           repo,
		oauth:          oauthCfg,
		refreshTimeout: refreshTimeout,
		logger:         logger.Named("token"),
		now:            time.Now,
	}
}

// GetValidToken returns an access token for the user, refreshing it first
// when it is missing or about to expire.
func (p *TokenProvider) GetValidToken(ctx context.Context, email, provider string) (string, error) {
	tok, err := p.repo.Find(ctx, email, provider)
	if err != nil {
		return "", fmt.Errorf("failed to load token for %s: %w", email, err)
	}
	if tok == nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrNoLinkedAccount, email, provider)
	}
	if tok.ValidAt(p.now().Add(expirySkew)) {
		return tok.AccessToken, nil
	}

	ch := p.group.DoChan(email+"|"+provider, func() (interface{}, error) {
		// The refresh outlives any single caller's cancellation; it is
		// bounded by refreshTimeout instead.
		rctx := context.WithoutCancel(ctx)
		if p.refreshTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, p.refreshTimeout)
			defer cancel()
		}
		return p.refresh(rctx, email, provider)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (p *TokenProvider) refresh(ctx context.Context, email, provider string) (string, error) {
	// Re-read: a refresh that finished just before this flight started has
	// already stored a fresh token.
	tok, err := p.repo.Find(ctx, email, provider)
	if err != nil {
		return "", fmt.Errorf("failed to load token for %s: %w", email, err)
	}
	if tok == nil {
		return "", fmt.Errorf("%w: %s (%s)", ErrNoLinkedAccount, email, provider)
	}
	if tok.ValidAt(p.now().Add(expirySkew)) {
		return tok.AccessToken, nil
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("%w: %s has no refresh token", ErrRefreshFailed, email)
	}

	src := p.oauth.TokenSource(ctx, &oauth2.Token{
		RefreshToken: tok.RefreshToken,
		Expiry:       time.Unix(1, 0),
	})
	fresh, err := src.Token()
	if err != nil {
		p.logger.Warn("token refresh failed", zap.String("user", email), zap.String("provider", provider), zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}

	tok.AccessToken = fresh.AccessToken
	tok.ExpiresAt = fresh.Expiry
	if tok.ExpiresAt.IsZero() {
		tok.ExpiresAt = p.now().Add(time.Hour)
	}
	if fresh.RefreshToken != "" {
		tok.RefreshToken = fresh.RefreshToken
	}
	if err := p.repo.Save(ctx, tok); err != nil {
		return "", fmt.Errorf("failed to store refreshed token for %s: %w", email, err)
	}

	p.logger.Info("token refreshed", zap.String("user", email), zap.String("provider", provider), zap.Time("expires_at", tok.ExpiresAt))
	return tok.AccessToken, nil
}
