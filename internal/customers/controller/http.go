package controller

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	domain "github.com/corvusHold/changenotify/internal/customers/domain"
	notify "github.com/corvusHold/changenotify/internal/notify/domain"
	rl "github.com/corvusHold/changenotify/internal/platform/ratelimit"
	"github.com/corvusHold/changenotify/internal/platform/validation"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

// Controller exposes the admin customer endpoints and the member's own
// profile page.
type Controller struct {
	svc domain.Service
	// Injected concerns
	jwtMW    echo.MiddlewareFunc
	rlStore  rl.Store
	settings sdomain.Service
}

func New(svc domain.Service) *Controller { return &Controller{svc: svc} }

// WithJWT injects a JWT middleware for all routes.
func (h *Controller) WithJWT(mw echo.MiddlewareFunc) *Controller { h.jwtMW = mw; return h }

// WithRateLimit injects a shared Store for distributed rate limiting.
func (h *Controller) WithRateLimit(store rl.Store) *Controller { h.rlStore = store; return h }

// WithSettings lets the profile rate limit be tuned at runtime.
func (h *Controller) WithSettings(s sdomain.Service) *Controller { h.settings = s; return h }

func (h *Controller) Register(e *echo.Echo) {
	// Profile writes: 10/min per user unless overridden.
	profileWin := time.Minute
	profileLim := 10
	policy := rl.Policy{
		Name: "customers:profile_put", Window: profileWin, Limit: profileLim,
		Key: rl.KeyUserOrIP("customers:profile_put", amw.Subject),
	}
	if h.settings != nil {
		policy.WindowFunc = func(c echo.Context) time.Duration {
			d, _ := h.settings.GetDuration(c.Request().Context(), sdomain.KeyRLProfilePutWindow, profileWin)
			return d
		}
		policy.LimitFunc = func(c echo.Context) int {
			n, _ := h.settings.GetInt(c.Request().Context(), sdomain.KeyRLProfilePutLimit, profileLim)
			return n
		}
	}
	var writeRL echo.MiddlewareFunc
	if h.rlStore != nil {
		writeRL = rl.MiddlewareWithStore(policy, h.rlStore)
	} else {
		writeRL = rl.Middleware(policy)
	}

	adminMW := []echo.MiddlewareFunc{captureRequest}
	memberMW := []echo.MiddlewareFunc{captureRequest}
	if h.jwtMW != nil {
		adminMW = append(adminMW, h.jwtMW, amw.RequireRole(amw.RoleAdmin))
		memberMW = append(memberMW, h.jwtMW, amw.RequireRole(amw.RoleCustomer))
	}

	admin := e.Group("/v1/customers", adminMW...)
	admin.POST("", h.create)
	admin.GET("/:id", h.get)
	admin.PUT("/:id", h.update, writeRL)

	mypage := e.Group("/v1/mypage", memberMW...)
	mypage.GET("/profile", h.getOwn)
	mypage.PUT("/profile", h.updateOwn, writeRL)
}

// captureRequest stores request metadata for the notification mails.
func captureRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		r := c.Request()
		id := c.Response().Header().Get(echo.HeaderXRequestID)
		if id == "" {
			id = r.Header.Get(echo.HeaderXRequestID)
		}
		meta := &notify.Request{
			ID:        id,
			Method:    r.Method,
			Path:      r.URL.Path,
			RemoteIP:  c.RealIP(),
			UserAgent: r.UserAgent(),
		}
		c.SetRequest(r.WithContext(notify.WithRequest(r.Context(), meta)))
		return next(c)
	}
}

type createRequest struct {
	domain.ProfileInput
	Email string `json:"email" validate:"required,email,max=255"`
}

func (h *Controller) create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	in := req.ProfileInput
	in.Email = &req.Email
	out, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		c.Logger().Errorf("create customer: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not create customer"})
	}
	return c.JSON(http.StatusCreated, out)
}

func (h *Controller) get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
	}
	return h.respond(c, id)
}

func (h *Controller) update(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
	}
	return h.save(c, id)
}

func (h *Controller) getOwn(c echo.Context) error {
	id, ok := amw.CustomerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return h.respond(c, id)
}

func (h *Controller) updateOwn(c echo.Context) error {
	id, ok := amw.CustomerID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}
	return h.save(c, id)
}

func (h *Controller) respond(c echo.Context, id int64) error {
	out, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "customer not found"})
	}
	if err != nil {
		c.Logger().Errorf("get customer %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not load customer"})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Controller) save(c echo.Context, id int64) error {
	var in domain.ProfileInput
	if err := c.Bind(&in); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid json"})
	}
	if err := c.Validate(&in); err != nil {
		return c.JSON(http.StatusBadRequest, validation.ErrorResponse(err))
	}
	out, err := h.svc.UpdateProfile(c.Request().Context(), id, in)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "customer not found"})
	}
	if err != nil {
		c.Logger().Errorf("update customer %d: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not save profile"})
	}
	return c.JSON(http.StatusOK, out)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err == nil && id <= 0 {
		err = errors.New("non-positive id")
	}
	return id, err
}
