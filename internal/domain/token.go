package domain

import (
	"time"

	"github.com/google/uuid"
)

// Token is a listed asset document (a coin or an ERC-20 style contract).
// Enabled defaults to true: a token is tradable unless explicitly disabled.
type Token struct {
	ID              uuid.UUID
	Symbol          string
	Name            string
	Network         Network
	ContractAddress *string
	Decimals        int
	Enabled         bool
	CreatedAt       time.Time
}

// IsNew reports whether the document has never been persisted.
func (t *Token) IsNew() bool { return t.ID == uuid.Nil }
