package usecase

import (
	"context"
	"errors"
	"time"

	userdomain "github.com/vynious/finOS/internal/user/domain"
	userrepo "github.com/vynious/finOS/internal/user/repository"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrUserNotFound = errors.New("user not found")
)

// AuthUsecase validates the session JWTs issued by the account-linking flow
type AuthUsecase interface {
	ValidateToken(ctx context.Context, tokenString string) (*userdomain.User, error)
	IssueToken(user *userdomain.User, ttl time.Duration) (string, error)
}

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo userrepo.UserRepository
	secret   []byte
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo userrepo.UserRepository, jwtSecret string) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		secret:   []byte(jwtSecret),
	}
}

func (u *authUsecase) IssueToken(user *userdomain.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.Email,
		"email": user.Email,
		"exp":   now.Add(ttl).Unix(),
		"iat":   now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(u.secret)
}

func (u *authUsecase) ValidateToken(ctx context.Context, tokenString string) (*userdomain.User, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return u.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	email, _ := claims["email"].(string)
	if email == "" {
		email, _ = claims["sub"].(string)
	}
	if email == "" {
		return nil, ErrInvalidToken
	}

	user, err := u.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}
