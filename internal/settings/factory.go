package settings

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	"github.com/corvusHold/changenotify/internal/config"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	rl "github.com/corvusHold/changenotify/internal/platform/ratelimit"
	ctrl "github.com/corvusHold/changenotify/internal/settings/controller"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
	repo "github.com/corvusHold/changenotify/internal/settings/repository"
	svc "github.com/corvusHold/changenotify/internal/settings/service"
)

// Module bundles the settings repository and service shared by other modules.
type Module struct {
	Repo    sdomain.Repository
	Service *svc.Service
}

// New wires the settings module on postgres, or in memory when pg is nil.
func New(pg *pgxpool.Pool) *Module {
	var r sdomain.Repository
	if pg != nil {
		r = repo.New(pg)
	} else {
		r = repo.NewMemory()
	}
	return &Module{Repo: r, Service: svc.New(r)}
}

// Register registers the admin configuration routes.
func (m *Module) Register(e *echo.Echo, cfg config.Config, store rl.Store, pub evdomain.Publisher) {
	c := ctrl.New(m.Repo, m.Service)
	c.WithJWT(amw.NewJWT(cfg)).WithRateLimit(store).WithPublisher(pub)
	c.Register(e)
}
