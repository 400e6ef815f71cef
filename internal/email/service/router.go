package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Ensure Router implements domain.Transport
var _ edomain.Transport = (*Router)(nil)

// Router picks a transport per message from the email.provider setting.
type Router struct {
	cfg      config.Config
	settings sdomain.Service
	smtp     edomain.Transport
	brevo    edomain.Transport
	nop      edomain.Transport
}

func NewRouter(settings sdomain.Service, cfg config.Config, log zerolog.Logger) *Router {
	return &Router{
		cfg:      cfg,
		settings: settings,
		smtp:     NewSMTP(settings, cfg),
		brevo:    NewBrevo(settings, cfg),
		nop:      NewNop(log),
	}
}

func (r *Router) Send(ctx context.Context, m edomain.Message) (int, error) {
	prov, _ := r.settings.GetString(ctx, sdomain.KeyEmailProvider, r.cfg.EmailProvider)
	switch strings.ToLower(prov) {
	case "brevo":
		return r.brevo.Send(ctx, m)
	case "nop":
		return r.nop.Send(ctx, m)
	default:
		return r.smtp.Send(ctx, m)
	}
}

// Nop logs messages instead of sending them.
type Nop struct{ log zerolog.Logger }

func NewNop(log zerolog.Logger) *Nop { return &Nop{log: log} }

func (n *Nop) Send(ctx context.Context, m edomain.Message) (int, error) {
	n.log.Debug().Str("to", m.To).Str("subject", m.Subject).Int("body_bytes", len(m.Body)).Msg("email not sent (nop transport)")
	return 1, nil
}
