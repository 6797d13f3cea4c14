package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a standalone wallet document (distinct from the User's embedded
// wallet entries, which are display shortcuts on the account).
type Wallet struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Address   string
	Network   Network
	Label     string
	IsPrimary bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNew reports whether the document has never been persisted.
func (w *Wallet) IsNew() bool { return w.ID == uuid.Nil }
