package domain

import (
	"context"
	"strings"
	"time"
)

// UnverifiedAccountTTL is how long an account may stay without a verified email.
const UnverifiedAccountTTL = 30 * 24 * time.Hour

// User is a platform account. Accounts are issued by the identity provider;
// this service only reads them and sweeps the abandoned ones.
// swagger:model User
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Name          string     `json:"name"`
	EmailVerified bool       `json:"email_verified"`
	Image         *string    `json:"image,omitempty"`
	Banned        bool       `json:"banned"`
	BanReason     *string    `json:"ban_reason,omitempty"`
	BanExpires    *time.Time `json:"ban_expires,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Identity is the authenticated caller as resolved by the identity provider.
type Identity struct {
	UserID        string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
}

// NormalizeEmail lower-cases and trims an email address for comparisons.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SameEmail compares two addresses case-insensitively.
func SameEmail(a, b string) bool {
	return NormalizeEmail(a) == NormalizeEmail(b)
}

// TokenIssuer issues tokens (e.g. JWT) for an identity.
type TokenIssuer interface {
	Issue(identity *Identity, expiry time.Duration) (string, error)
}

// TokenVerifier verifies a token and returns the identity it was issued for.
type TokenVerifier interface {
	Verify(token string) (*Identity, error)
}

// UserRepository defines read access to platform accounts.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	// GetByEmail matches case-insensitively and returns ErrUserNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)
}
