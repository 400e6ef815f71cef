package notify

import (
	"github.com/rs/zerolog"

	"github.com/corvusHold/changenotify/internal/config"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	"github.com/corvusHold/changenotify/internal/logger"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	svc "github.com/corvusHold/changenotify/internal/notify/service"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Module holds the orchestrator and its template renderer.
type Module struct {
	Service  *svc.Service
	Renderer *svc.TemplateRenderer
}

// New wires the notification orchestrator.
func New(cfg config.Config, settings sdomain.Service, transport edomain.Transport, pub evdomain.Publisher, log zerolog.Logger) (*Module, error) {
	renderer, err := svc.NewTemplateRenderer(cfg.TemplatesDir, log)
	if err != nil {
		return nil, err
	}
	shop := ndomain.Shop{FromAddress: cfg.ShopEmail, FromName: cfg.ShopName}
	s := svc.New(
		svc.NewConfigStore(settings),
		svc.NewShopProvider(settings, shop),
		renderer,
		transport,
		svc.WithLogger(logger.Component(log, "notify")),
		svc.WithPublisher(pub),
		svc.WithSendTimeout(cfg.SendTimeout),
	)
	return &Module{Service: s, Renderer: renderer}, nil
}
