package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an account document. Wallets, Notifications and RefreshTokens are
// embedded collections: they live in child tables but are exposed as array
// fields on the document.
type User struct {
	ID               uuid.UUID
	Email            string
	Password         string // plaintext until the first save, bcrypt hash after
	Name             string
	Role             UserRole
	Status           UserStatus
	EmailVerified    bool
	TwoFactorEnabled bool
	LastLoginAt      *time.Time
	Wallets          []UserWallet
	Notifications    []Notification
	RefreshTokens    []RefreshToken
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsNew reports whether the document has never been persisted.
func (u *User) IsNew() bool { return u.ID == uuid.Nil }

// UserWallet is one entry of the User's embedded wallet collection.
// Equality is content-based: two entries with the same address, network and
// label are the same wallet.
type UserWallet struct {
	Address string
	Network Network
	Label   string
}

// Notification is one entry of the User's embedded notification collection.
type Notification struct {
	Type    string
	Title   string
	Message string
	Read    bool
}

// RefreshToken is one entry of the User's embedded token collection.
// TokenHash is the identifying key used for delta synchronization.
type RefreshToken struct {
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired reports whether the token has expired relative to now.
func (t RefreshToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}

// AppendRefreshToken adds a token entry to the embedded collection.
func (u *User) AppendRefreshToken(tokenHash string, expiresAt time.Time) {
	u.RefreshTokens = append(u.RefreshTokens, RefreshToken{
		TokenHash: tokenHash,
		ExpiresAt: expiresAt,
	})
}

// RemoveRefreshToken removes the entry with the given hash, keeping order.
// Removing an absent hash is a no-op.
func (u *User) RemoveRefreshToken(tokenHash string) {
	kept := u.RefreshTokens[:0]
	for _, t := range u.RefreshTokens {
		if t.TokenHash != tokenHash {
			kept = append(kept, t)
		}
	}
	u.RefreshTokens = kept
}
