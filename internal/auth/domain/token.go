package domain

import "time"

const ProviderGoogle = "google"

// OAuthToken is the stored credential for one user and mail provider
type OAuthToken struct {
	UserEmail    string    `json:"user_email" gorm:"primaryKey"`
	Provider     string    `json:"provider" gorm:"primaryKey"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// ValidAt reports whether the access token is usable at t
func (t *OAuthToken) ValidAt(at time.Time) bool {
	return t.AccessToken != "" && at.Before(t.ExpiresAt)
}
