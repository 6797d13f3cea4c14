package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction is a blockchain transaction document. ReviewMeta is a free-form
// JSON blob written by the compliance review flow; User is filled only when
// the caller asks for reference expansion.
type Transaction struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	WalletID   *uuid.UUID
	TxHash     string
	Type       TxType
	Status     TxStatus
	Amount     float64
	Currency   string
	Network    Network
	ReviewMeta map[string]any
	User       *User
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsNew reports whether the document has never been persisted.
func (t *Transaction) IsNew() bool { return t.ID == uuid.Nil }
