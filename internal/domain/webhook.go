package domain

import (
	"time"

	"github.com/google/uuid"
)

// Webhook is a third-party delivery endpoint document. Active defaults to
// true; Secret signs outgoing payloads and is compared in constant time.
type Webhook struct {
	ID        uuid.UUID
	URL       string
	Secret    string
	Events    []string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNew reports whether the document has never been persisted.
func (w *Webhook) IsNew() bool { return w.ID == uuid.Nil }

// WebhookEvent is one queued delivery for a webhook endpoint. Webhook is
// filled only when the caller asks for reference expansion.
type WebhookEvent struct {
	ID            uuid.UUID
	WebhookID     uuid.UUID
	Event         string
	Payload       map[string]any
	Status        DeliveryStatus
	Attempts      int
	LastAttemptAt *time.Time
	Webhook       *Webhook
	CreatedAt     time.Time
}

// IsNew reports whether the document has never been persisted.
func (e *WebhookEvent) IsNew() bool { return e.ID == uuid.Nil }
