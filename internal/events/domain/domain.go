package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event represents an audit event.
// Type examples: "customer.notify.admin.sent", "settings.update.success"
// Subject is the affected record or actor; Meta may contain recipient,
// request id, changed fields, etc.
type Event struct {
	ID      uuid.UUID         `json:"id"`
	Type    string            `json:"type"`
	Subject string            `json:"subject"`
	Meta    map[string]string `json:"meta,omitempty"`
	Time    time.Time         `json:"time"`
}

// Publisher publishes events to an external system (log, queue, etc.).
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
