package controller

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	rl "github.com/corvusHold/changenotify/internal/platform/ratelimit"
	"github.com/corvusHold/changenotify/internal/platform/validation"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Controller exposes the notification configuration form.
type Controller struct {
	repo    sdomain.Repository
	service sdomain.Service
	// Injected concerns
	jwtMW   echo.MiddlewareFunc
	rlStore rl.Store
	pub     evdomain.Publisher
}

func New(repo sdomain.Repository, service sdomain.Service) *Controller {
	return &Controller{repo: repo, service: service}
}

// Register mounts the admin endpoints under /v1/admin.
func (h *Controller) Register(e *echo.Echo) {
	// Defaults: GET 60/min, PUT 10/min; overridable through settings.
	getDefaultWin := time.Minute
	getDefaultLim := 60
	putDefaultWin := time.Minute
	putDefaultLim := 10

	winF := func(key string, def time.Duration) func(echo.Context) time.Duration {
		return func(c echo.Context) time.Duration {
			if d, err := h.service.GetDuration(c.Request().Context(), key, def); err == nil {
				return d
			}
			return def
		}
	}
	limF := func(key string, def int) func(echo.Context) int {
		return func(c echo.Context) int {
			if v, err := h.service.GetInt(c.Request().Context(), key, def); err == nil {
				return v
			}
			return def
		}
	}

	getPolicy := rl.Policy{
		Name: "admin:notify_config_get", Window: getDefaultWin, Limit: getDefaultLim,
		Key:        rl.KeyUserOrIP("notify_config:get", amw.Subject),
		WindowFunc: winF(sdomain.KeyRLConfigGetWindow, getDefaultWin),
		LimitFunc:  limF(sdomain.KeyRLConfigGetLimit, getDefaultLim),
	}
	putPolicy := rl.Policy{
		Name: "admin:notify_config_put", Window: putDefaultWin, Limit: putDefaultLim,
		Key:        rl.KeyUserOrIP("notify_config:put", amw.Subject),
		WindowFunc: winF(sdomain.KeyRLConfigPutWindow, putDefaultWin),
		LimitFunc:  limF(sdomain.KeyRLConfigPutLimit, putDefaultLim),
	}

	var getRL, putRL echo.MiddlewareFunc
	if h.rlStore != nil {
		getRL = rl.MiddlewareWithStore(getPolicy, h.rlStore)
		putRL = rl.MiddlewareWithStore(putPolicy, h.rlStore)
	} else {
		getRL = rl.Middleware(getPolicy)
		putRL = rl.Middleware(putPolicy)
	}

	// Compose middleware per route
	getMW := []echo.MiddlewareFunc{}
	putMW := []echo.MiddlewareFunc{}
	if h.jwtMW != nil {
		admin := amw.RequireRole(amw.RoleAdmin)
		getMW = append(getMW, h.jwtMW, admin)
		putMW = append(putMW, h.jwtMW, admin)
	}
	getMW = append(getMW, getRL)
	putMW = append(putMW, putRL)

	e.GET("/v1/admin/notify/config", h.getConfig, getMW...)
	e.PUT("/v1/admin/notify/config", h.putConfig, putMW...)
}

// WithJWT injects a JWT middleware for these endpoints.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// WithRateLimit injects a shared Store for distributed rate limiting.
func (h *Controller) WithRateLimit(store rl.Store) *Controller { h.rlStore = store; return h }

// WithPublisher injects an audit event publisher.
func (h *Controller) WithPublisher(p evdomain.Publisher) *Controller { h.pub = p; return h }

type configResponse struct {
	AdminTo         string `json:"admin_to"`
	AdminSubject    string `json:"admin_subject"`
	CustomerSubject string `json:"customer_subject"`
	EmailProvider   string `json:"email_provider"`
}

type putConfigRequest struct {
	AdminTo         string `json:"admin_to" validate:"omitempty,email,max=255"`
	AdminSubject    string `json:"admin_subject" validate:"required,max=255"`
	CustomerSubject string `json:"customer_subject" validate:"required,max=255"`
	EmailProvider   string `json:"email_provider" validate:"omitempty,oneof=smtp brevo nop"`
}

func (h *Controller) getConfig(c echo.Context) error {
	ctx := c.Request().Context()
	adminTo, err := h.service.GetString(ctx, sdomain.KeyNotifyAdminTo, "")
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "settings unavailable"})
	}
	adminSubject, _ := h.service.GetString(ctx, sdomain.KeyNotifyAdminSubject, ndomain.DefaultAdminSubject)
	customerSubject, _ := h.service.GetString(ctx, sdomain.KeyNotifyCustomerSubject, ndomain.DefaultCustomerSubject)
	provider, _ := h.service.GetString(ctx, sdomain.KeyEmailProvider, "")
	return c.JSON(http.StatusOK, configResponse{
		AdminTo:         adminTo,
		AdminSubject:    adminSubject,
		CustomerSubject: customerSubject,
		EmailProvider:   provider,
	})
}

func (h *Controller) putConfig(c echo.Context) error {
	var req putConfigRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	req.AdminTo = strings.TrimSpace(req.AdminTo)
	req.AdminSubject = strings.TrimSpace(req.AdminSubject)
	req.CustomerSubject = strings.TrimSpace(req.CustomerSubject)
	req.EmailProvider = strings.ToLower(strings.TrimSpace(req.EmailProvider))
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}

	entries := []sdomain.Entry{
		{Key: sdomain.KeyNotifyAdminTo, Value: req.AdminTo},
		{Key: sdomain.KeyNotifyAdminSubject, Value: req.AdminSubject},
		{Key: sdomain.KeyNotifyCustomerSubject, Value: req.CustomerSubject},
	}
	if req.EmailProvider != "" {
		entries = append(entries, sdomain.Entry{Key: sdomain.KeyEmailProvider, Value: req.EmailProvider})
	}
	ctx := c.Request().Context()
	if err := h.repo.Upsert(ctx, entries...); err != nil {
		c.Logger().Errorf("notify config update failed: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not save settings"})
	}

	if h.pub != nil {
		changed := make([]string, 0, len(entries))
		for _, e := range entries {
			changed = append(changed, e.Key)
		}
		sub, _ := amw.Subject(c)
		_ = h.pub.Publish(ctx, evdomain.Event{
			ID:      uuid.New(),
			Type:    "settings.update.success",
			Subject: sub,
			Meta:    map[string]string{"changed": strings.Join(changed, ",")},
			Time:    time.Now(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}
