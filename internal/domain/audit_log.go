package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog records one user-visible action (login, withdrawal request,
// settings change). UserID is nil for actions taken by deleted accounts.
type AuditLog struct {
	ID        uuid.UUID
	UserID    *uuid.UUID
	Action    string
	Network   Network
	IP        string
	Metadata  map[string]any
	CreatedAt time.Time
}

// IsNew reports whether the document has never been persisted.
func (a *AuditLog) IsNew() bool { return a.ID == uuid.Nil }
