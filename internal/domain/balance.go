package domain

import (
	"time"

	"github.com/google/uuid"
)

// Balance is a per-user, per-currency balance document.
type Balance struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Currency  string
	Amount    float64
	Locked    float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNew reports whether the document has never been persisted.
func (b *Balance) IsNew() bool { return b.ID == uuid.Nil }

// Available returns the spendable part of the balance.
func (b *Balance) Available() float64 { return b.Amount - b.Locked }
