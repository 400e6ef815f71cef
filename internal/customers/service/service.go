package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/capture"
	"github.com/corvusHold/changenotify/internal/changes"
	domain "github.com/corvusHold/changenotify/internal/customers/domain"
	notify "github.com/corvusHold/changenotify/internal/notify/domain"
	"github.com/corvusHold/changenotify/internal/platform/uow"
)

// Service implements profile use cases over transactions of type T.
// Profile updates notify through the configured capture strategy.
type Service[T uow.Tx] struct {
	repo     domain.Repository[T]
	begin    func(ctx context.Context) (T, error)
	builder  *changes.Builder
	notifier notify.Notifier
	strategy string
	tracker  *capture.EditTracker
	log      zerolog.Logger
}

var _ domain.Service = (*Service[uow.Tx])(nil)

// Option customizes a Service.
type Option[T uow.Tx] func(*Service[T])

func WithLogger[T uow.Tx](l zerolog.Logger) Option[T] {
	return func(s *Service[T]) { s.log = l }
}

// WithStrategy selects capture.StrategyCommit (default) or
// capture.StrategyEdit.
func WithStrategy[T uow.Tx](strategy string) Option[T] {
	return func(s *Service[T]) { s.strategy = strategy }
}

func New[T uow.Tx](repo domain.Repository[T], begin func(ctx context.Context) (T, error), builder *changes.Builder, notifier notify.Notifier, opts ...Option[T]) *Service[T] {
	s := &Service[T]{
		repo:     repo,
		begin:    begin,
		builder:  builder,
		notifier: notifier,
		strategy: capture.StrategyCommit,
		log:      zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.strategy == capture.StrategyEdit {
		s.tracker = capture.NewEditTracker(builder, notifier, s.log)
	}
	return s
}

func (s *Service[T]) Get(ctx context.Context, id int64) (domain.Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a new customer. Creating a record never notifies.
func (s *Service[T]) Create(ctx context.Context, in domain.ProfileInput) (domain.Customer, error) {
	var c domain.Customer
	in.Apply(&c)
	if c.Email == "" {
		return domain.Customer{}, errors.New("email is required")
	}
	return s.repo.Create(ctx, c)
}

// UpdateProfile applies in to customer id inside one transaction. Once the
// transaction commits, a change to a watched field notifies the shop admin
// and the customer.
func (s *Service[T]) UpdateProfile(ctx context.Context, id int64, in domain.ProfileInput) (domain.Customer, error) {
	if s.strategy == capture.StrategyEdit {
		return s.updateTracked(ctx, id, in)
	}
	session := capture.NewSession(domain.EntityType, s.builder, s.notifier, capture.WithSessionLogger(s.log))
	u := uow.New(s.begin, uow.WithLogger[T](s.log), uow.WithListeners[T](session))

	var saved domain.Customer
	err := u.Run(ctx, func(ctx context.Context, tx T) error {
		before, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		after := before
		in.Apply(&after)
		if saved, err = s.repo.Update(ctx, tx, after); err != nil {
			return err
		}
		u.Track(domain.EntityType, &saved, func() changes.ChangeSet {
			return domain.ChangeSetBetween(before, saved)
		})
		return nil
	})
	if err != nil {
		return domain.Customer{}, wrap(id, err)
	}
	return saved, nil
}

// updateTracked snapshots the customer when the edit begins and diffs it
// with the committed row afterwards.
func (s *Service[T]) updateTracked(ctx context.Context, id int64, in domain.ProfileInput) (domain.Customer, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Customer{}, wrap(id, err)
	}
	ctx = s.tracker.Begin(ctx, current)

	u := uow.New(s.begin, uow.WithLogger[T](s.log))
	var saved domain.Customer
	err = u.Run(ctx, func(ctx context.Context, tx T) error {
		c, err := s.repo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}
		in.Apply(&c)
		saved, err = s.repo.Update(ctx, tx, c)
		return err
	})
	if err != nil {
		s.tracker.Discard(ctx)
		return domain.Customer{}, wrap(id, err)
	}
	s.tracker.Complete(ctx, saved)
	return saved, nil
}

func wrap(id int64, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("update customer %d: %w", id, err)
}
