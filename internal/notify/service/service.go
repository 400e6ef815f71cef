package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/changes"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	"github.com/corvusHold/changenotify/internal/metrics"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
)

var _ ndomain.Notifier = (*Service)(nil)

var (
	errNoRecipient = errors.New("no recipient address")
	errNoSubject   = errors.New("no subject to notify")
)

// Service sends the admin and customer mails for one diff. It never
// returns an error; the Report says what happened.
type Service struct {
	config    ndomain.ConfigStore
	shop      ndomain.ShopProvider
	renderer  ndomain.Renderer
	transport edomain.Transport
	pub       evdomain.Publisher
	log       zerolog.Logger
	timeout   time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.log = l } }

// WithPublisher publishes one audit event per send attempt.
func WithPublisher(p evdomain.Publisher) Option { return func(s *Service) { s.pub = p } }

// WithSendTimeout bounds each send attempt. Zero disables the bound.
func WithSendTimeout(d time.Duration) Option { return func(s *Service) { s.timeout = d } }

func New(config ndomain.ConfigStore, shop ndomain.ShopProvider, renderer ndomain.Renderer, transport edomain.Transport, opts ...Option) *Service {
	s := &Service{
		config:    config,
		shop:      shop,
		renderer:  renderer,
		transport: transport,
		log:       zerolog.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type attemptSpec struct {
	role       ndomain.Role
	templateID string
	to         string
	subject    string
}

// Notify sends the admin mail then the customer mail. An empty diff does
// nothing, not even logging. A failure to resolve configuration aborts both
// sends; a failure of one send does not affect the other.
func (s *Service) Notify(ctx context.Context, subject ndomain.Subject, diff *changes.Diff, req *ndomain.Request) (rep ndomain.Report) {
	if diff.IsEmpty() {
		return ndomain.Report{Skipped: true}
	}
	rep.ID = uuid.New()
	log := s.log.With().Str("notification_id", rep.ID.String()).Logger()
	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("notification panicked: %v", r)
			log.Error().Interface("panic", r).Msg("notification aborted")
		}
	}()
	if subject == nil {
		rep.Err = errNoSubject
		log.Error().Err(rep.Err).Msg("notification aborted")
		return rep
	}
	log = log.With().Str("subject_id", subject.SubjectID()).Logger()
	if req != nil && req.ID != "" {
		log = log.With().Str("request_id", req.ID).Logger()
	}

	shop, cfg, err := s.resolve(ctx)
	if err != nil {
		rep.Err = err
		metrics.IncResolveFailure()
		log.Error().Err(err).Msg("notification aborted: configuration unavailable")
		return rep
	}
	adminTo := cfg.AdminTo
	if adminTo == "" {
		adminTo = shop.FromAddress
	}

	rc := ndomain.RenderContext{Subject: subject, Changes: diff.Changes(), Request: req, Shop: shop}
	log.Info().Strs("fields", diff.Fields()).Msg("sending change notifications")

	specs := []attemptSpec{
		{role: ndomain.RoleAdmin, templateID: ndomain.TemplateAdmin, to: adminTo, subject: cfg.AdminSubject},
		{role: ndomain.RoleCustomer, templateID: ndomain.TemplateCustomer, to: subject.SubjectEmail(), subject: cfg.CustomerSubject},
	}
	for _, sp := range specs {
		rep.Attempts = append(rep.Attempts, s.attempt(ctx, log, rep.ID, sp, shop, rc))
	}
	return rep
}

func (s *Service) resolve(ctx context.Context) (ndomain.Shop, ndomain.Config, error) {
	shop, err := s.shop.Get(ctx)
	if err != nil {
		return ndomain.Shop{}, ndomain.Config{}, fmt.Errorf("resolve shop identity: %w", err)
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return ndomain.Shop{}, ndomain.Config{}, fmt.Errorf("resolve notification config: %w", err)
	}
	return shop, cfg, nil
}

func (s *Service) attempt(ctx context.Context, log zerolog.Logger, id uuid.UUID, sp attemptSpec, shop ndomain.Shop, rc ndomain.RenderContext) (a ndomain.Attempt) {
	a = ndomain.Attempt{Role: sp.role, To: sp.to, Subject: sp.subject}
	log.Info().Str("role", string(sp.role)).Str("to", sp.to).Str("template", sp.templateID).Msg("sending notification")
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			a.Status, a.Accepted, a.Err = ndomain.StatusFailed, 0, fmt.Errorf("send panicked: %v", r)
		}
		s.record(ctx, log, id, rc.Subject.SubjectID(), a, time.Since(start))
	}()

	if sp.to == "" {
		a.Status, a.Err = ndomain.StatusFailed, errNoRecipient
		return a
	}
	body, err := s.renderer.Render(sp.templateID, rc)
	if err != nil {
		a.Status, a.Err = ndomain.StatusFailed, err
		return a
	}

	sendCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	n, err := s.transport.Send(sendCtx, edomain.Message{
		FromAddress: shop.FromAddress,
		FromName:    shop.FromName,
		To:          sp.to,
		Subject:     sp.subject,
		Body:        body,
	})
	a.Accepted = n
	switch {
	case err != nil:
		a.Status, a.Err = ndomain.StatusFailed, err
	case n == 0:
		a.Status = ndomain.StatusRejected
	default:
		a.Status = ndomain.StatusSent
	}
	return a
}

// record reports one attempt outcome.
func (s *Service) record(ctx context.Context, log zerolog.Logger, id uuid.UUID, subjectID string, a ndomain.Attempt, took time.Duration) {
	var ev *zerolog.Event
	var msg string
	switch a.Status {
	case ndomain.StatusSent:
		ev, msg = log.Info(), "notification sent"
	case ndomain.StatusRejected:
		ev, msg = log.Warn(), "notification not accepted by transport"
	default:
		ev, msg = log.Error().Err(a.Err), "notification failed"
	}
	ev.Str("role", string(a.Role)).
		Str("to", a.To).
		Str("subject", a.Subject).
		Int("accepted", a.Accepted).
		Dur("took", took).
		Msg(msg)

	metrics.ObserveSendAttempt(string(a.Role), string(a.Status), took.Seconds())

	if s.pub == nil {
		return
	}
	meta := map[string]string{
		"notification_id": id.String(),
		"to":              a.To,
		"subject":         a.Subject,
		"accepted":        strconv.Itoa(a.Accepted),
	}
	if a.Err != nil {
		meta["error"] = a.Err.Error()
	}
	if err := s.pub.Publish(ctx, evdomain.Event{
		ID:      uuid.New(),
		Type:    "customer.notify." + string(a.Role) + "." + string(a.Status),
		Subject: subjectID,
		Meta:    meta,
		Time:    time.Now().UTC(),
	}); err != nil {
		log.Debug().Err(err).Msg("publish notification event")
	}
}
