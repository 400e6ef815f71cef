// Package capture decides when a detected change becomes a notification.
//
// Session binds to a unit of work: diffs are computed before commit but
// only delivered once the commit succeeded. EditTracker compares a snapshot
// taken at edit start with the committed state. A deployment uses one of
// the two, never both.
package capture

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/changes"
	"github.com/corvusHold/changenotify/internal/metrics"
	notify "github.com/corvusHold/changenotify/internal/notify/domain"
	"github.com/corvusHold/changenotify/internal/platform/uow"
)

// Strategy names accepted by configuration.
const (
	StrategyCommit = "commit"
	StrategyEdit   = "edit"
)

// State is the lifecycle position of a Session.
type State int

const (
	Idle State = iota
	Detecting
	Queued
	Delivering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Detecting:
		return "detecting"
	case Queued:
		return "queued"
	case Delivering:
		return "delivering"
	default:
		return "unknown"
	}
}

type pending struct {
	subject notify.Subject
	diff    *changes.Diff
	req     *notify.Request
}

// Session queues notifications for one unit of work. It implements
// uow.Listener and must not be shared between concurrent units of work.
type Session struct {
	builder    *changes.Builder
	notifier   notify.Notifier
	entityType string
	log        zerolog.Logger

	state   State
	pending []pending
}

var _ uow.Listener = (*Session)(nil)

// SessionOption customizes a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(l zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = l }
}

// NewSession returns an idle session that reports changes of entityType.
func NewSession(entityType string, builder *changes.Builder, notifier notify.Notifier, opts ...SessionOption) *Session {
	s := &Session{
		builder:    builder,
		notifier:   notifier,
		entityType: entityType,
		log:        zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Pending returns the number of queued notifications.
func (s *Session) Pending() int { return len(s.pending) }

// OnChangeDetected builds diffs for changed records of the watched type and
// queues the non-empty ones. Whatever a previous cycle left queued is
// dropped first.
func (s *Session) OnChangeDetected(ctx context.Context, changed []uow.EntityChange) {
	s.drop("new detection cycle")
	s.state = Detecting

	req := notify.RequestFrom(ctx)
	for _, ec := range changed {
		if ec.Type != s.entityType {
			continue
		}
		subject, ok := ec.Entity.(notify.Subject)
		if !ok {
			s.log.Warn().Str("entity_type", ec.Type).Msgf("changed entity %T cannot be notified", ec.Entity)
			continue
		}
		diff := s.builder.Build(ec.Changes)
		if diff.IsEmpty() {
			continue
		}
		s.log.Info().
			Str("entity_type", ec.Type).
			Str("subject_id", subject.SubjectID()).
			Strs("fields", diff.Fields()).
			Msg("change detected")
		metrics.IncChangesDetected(StrategyCommit)
		s.pending = append(s.pending, pending{subject: subject, diff: diff, req: req})
	}

	if len(s.pending) > 0 {
		s.state = Queued
		return
	}
	s.state = Idle
}

// OnCommitted delivers every queued notification in queue order. A failing
// delivery does not stop the ones after it. The queue is empty afterwards.
// Delivery ignores cancellation of ctx: the changes are already committed.
func (s *Session) OnCommitted(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	items := s.pending
	s.pending = nil
	if len(items) == 0 {
		s.state = Idle
		return
	}

	s.state = Delivering
	defer func() { s.state = Idle }()
	for _, p := range items {
		s.deliver(ctx, p)
	}
}

// OnReset drops queued notifications.
func (s *Session) OnReset(ctx context.Context) {
	s.drop("unit of work reset")
	s.state = Idle
}

func (s *Session) deliver(ctx context.Context, p pending) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Str("subject_id", p.subject.SubjectID()).
				Interface("panic", r).
				Msg("notification delivery panicked")
		}
	}()
	s.notifier.Notify(ctx, p.subject, p.diff, p.req)
}

func (s *Session) drop(reason string) {
	if len(s.pending) == 0 {
		return
	}
	s.log.Warn().Int("dropped", len(s.pending)).Str("reason", reason).Msg("discarding undelivered notifications")
	metrics.AddPendingDropped(len(s.pending))
	s.pending = nil
}
