package domain

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned when a transport lacks credentials or a host.
var ErrNotConfigured = errors.New("email transport not configured")

// Message is one plain-text mail to a single recipient.
type Message struct {
	FromAddress string
	FromName    string
	To          string
	Subject     string
	Body        string
}

// Transport delivers messages. Send returns the number of recipients the
// transport accepted; zero with a nil error means the message was refused
// without a transport failure.
type Transport interface {
	Send(ctx context.Context, m Message) (int, error)
}
