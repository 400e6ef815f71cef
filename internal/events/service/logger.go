package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/events/domain"
)

// Logger is a Publisher that writes events to a zerolog logger.
type Logger struct{ log zerolog.Logger }

func NewLogger(log zerolog.Logger) *Logger { return &Logger{log: log} }

func (l *Logger) Publish(ctx context.Context, e domain.Event) error {
	l.log.Info().
		Str("event_id", e.ID.String()).
		Str("type", e.Type).
		Str("subject", e.Subject).
		Fields(map[string]any{"meta": e.Meta}).
		Time("ts", e.Time).
		Msg("event")
	return nil
}
