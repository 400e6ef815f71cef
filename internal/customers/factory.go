package customers

import (
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	"github.com/corvusHold/changenotify/internal/changes"
	"github.com/corvusHold/changenotify/internal/config"
	ctrl "github.com/corvusHold/changenotify/internal/customers/controller"
	repo "github.com/corvusHold/changenotify/internal/customers/repository"
	svc "github.com/corvusHold/changenotify/internal/customers/service"
	"github.com/corvusHold/changenotify/internal/logger"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	rl "github.com/corvusHold/changenotify/internal/platform/ratelimit"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Register wires the customers module end-to-end: repo -> service ->
// controller. Profile updates notify through notifier using the capture
// strategy named in cfg.
func Register(e *echo.Echo, pg *pgxpool.Pool, cfg config.Config, builder *changes.Builder, notifier ndomain.Notifier, settings sdomain.Service, store rl.Store, log zerolog.Logger) {
	r := repo.New(pg)
	s := svc.New[pgx.Tx](r, pg.Begin, builder, notifier,
		svc.WithLogger[pgx.Tx](logger.Component(log, "customers").With().Str("capture", cfg.CaptureStrategy).Logger()),
		svc.WithStrategy[pgx.Tx](cfg.CaptureStrategy),
	)
	c := ctrl.New(s)
	c.WithJWT(amw.NewJWT(cfg)).WithRateLimit(store).WithSettings(settings)
	c.Register(e)
}
