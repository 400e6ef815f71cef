// Package uow runs one transactional unit of work and reports its lifecycle
// to listeners: which tracked records changed (before commit), whether the
// commit succeeded, and when pending state must be discarded.
package uow

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/changes"
)

// Tx is the part of a database transaction the unit of work drives.
// pgx.Tx satisfies it.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// EntityChange is the field-level change set of one tracked record.
type EntityChange struct {
	Type    string
	Entity  any
	Changes changes.ChangeSet
}

// Listener receives lifecycle signals. Implementations must not fail the
// unit of work; panics are recovered and logged.
type Listener interface {
	// OnChangeDetected fires after the work ran and before commit, once per
	// unit of work, with the changed records in tracking order (possibly none).
	OnChangeDetected(ctx context.Context, changed []EntityChange)
	// OnCommitted fires after a successful commit.
	OnCommitted(ctx context.Context)
	// OnReset fires when the unit of work is rolled back or cleared.
	OnReset(ctx context.Context)
}

type tracked struct {
	typ    string
	entity any
	diff   func() changes.ChangeSet
}

// UnitOfWork is single-use per request and not safe for concurrent use.
type UnitOfWork[T Tx] struct {
	begin     func(ctx context.Context) (T, error)
	listeners []Listener
	log       zerolog.Logger
	tracked   []tracked
}

// Option customizes a UnitOfWork.
type Option[T Tx] func(*UnitOfWork[T])

// WithLogger sets the logger used for recovered listener panics.
func WithLogger[T Tx](l zerolog.Logger) Option[T] {
	return func(u *UnitOfWork[T]) { u.log = l }
}

// WithListeners appends lifecycle listeners.
func WithListeners[T Tx](ls ...Listener) Option[T] {
	return func(u *UnitOfWork[T]) { u.listeners = append(u.listeners, ls...) }
}

// New returns a unit of work that opens transactions with begin.
func New[T Tx](begin func(ctx context.Context) (T, error), opts ...Option[T]) *UnitOfWork[T] {
	u := &UnitOfWork[T]{begin: begin, log: zerolog.Nop()}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Track registers a record whose change set is computed by diff right
// before commit.
func (u *UnitOfWork[T]) Track(entityType string, entity any, diff func() changes.ChangeSet) {
	u.tracked = append(u.tracked, tracked{typ: entityType, entity: entity, diff: diff})
}

// Run executes work inside a transaction. When work succeeds, tracked
// change sets are reported, the transaction commits and listeners are told
// it committed. Any failure rolls back and resets listeners.
func (u *UnitOfWork[T]) Run(ctx context.Context, work func(ctx context.Context, tx T) error) error {
	defer func() { u.tracked = nil }()

	tx, err := u.begin(ctx)
	if err != nil {
		u.reset(ctx)
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := work(ctx, tx); err != nil {
		u.rollback(ctx, tx)
		return err
	}

	changed := u.collect()
	for _, l := range u.listeners {
		u.safe("change_detected", func() { l.OnChangeDetected(ctx, changed) })
	}

	if err := tx.Commit(ctx); err != nil {
		u.rollback(ctx, tx)
		return fmt.Errorf("commit transaction: %w", err)
	}
	for _, l := range u.listeners {
		u.safe("committed", func() { l.OnCommitted(ctx) })
	}
	return nil
}

// Clear drops tracked records and resets listeners.
func (u *UnitOfWork[T]) Clear(ctx context.Context) {
	u.tracked = nil
	u.reset(ctx)
}

func (u *UnitOfWork[T]) collect() []EntityChange {
	out := make([]EntityChange, 0, len(u.tracked))
	for _, t := range u.tracked {
		cs := t.diff()
		if len(cs) == 0 {
			continue
		}
		out = append(out, EntityChange{Type: t.typ, Entity: t.entity, Changes: cs})
	}
	return out
}

func (u *UnitOfWork[T]) rollback(ctx context.Context, tx T) {
	if err := tx.Rollback(ctx); err != nil {
		u.log.Debug().Err(err).Msg("rollback after failed unit of work")
	}
	u.reset(ctx)
}

func (u *UnitOfWork[T]) reset(ctx context.Context) {
	for _, l := range u.listeners {
		u.safe("reset", func() { l.OnReset(ctx) })
	}
}

func (u *UnitOfWork[T]) safe(phase string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			u.log.Error().Str("phase", phase).Interface("panic", r).Msg("unit of work listener panicked")
		}
	}()
	fn()
}
