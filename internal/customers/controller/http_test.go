package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amw "github.com/corvusHold/changenotify/internal/auth/middleware"
	"github.com/corvusHold/changenotify/internal/config"
	domain "github.com/corvusHold/changenotify/internal/customers/domain"
	notify "github.com/corvusHold/changenotify/internal/notify/domain"
	"github.com/corvusHold/changenotify/internal/platform/validation"
)

const signingKey = "customers-test-signing-key"

type fakeService struct {
	rows    map[int64]domain.Customer
	lastReq *notify.Request
	updates int
}

func (f *fakeService) Get(_ context.Context, id int64) (domain.Customer, error) {
	c, ok := f.rows[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, nil
}

func (f *fakeService) Create(_ context.Context, in domain.ProfileInput) (domain.Customer, error) {
	c := domain.Customer{ID: int64(len(f.rows) + 1)}
	in.Apply(&c)
	f.rows[c.ID] = c
	return c, nil
}

func (f *fakeService) UpdateProfile(ctx context.Context, id int64, in domain.ProfileInput) (domain.Customer, error) {
	f.lastReq = notify.RequestFrom(ctx)
	f.updates++
	c, ok := f.rows[id]
	if !ok {
		return domain.Customer{}, domain.ErrNotFound
	}
	in.Apply(&c)
	f.rows[id] = c
	return c, nil
}

func setup(t *testing.T) (*echo.Echo, *fakeService) {
	t.Helper()
	svc := &fakeService{rows: map[int64]domain.Customer{
		1: {ID: 1, Name01: "Sato", Email: "sato@example.com"},
		2: {ID: 2, Name01: "Ito", Email: "ito@example.com"},
	}}
	e := echo.New()
	e.Validator = validation.New()
	New(svc).WithJWT(amw.NewJWT(config.Config{JWTSigningKey: signingKey})).Register(e)
	return e, svc
}

func token(t *testing.T, role string, cid int64) string {
	t.Helper()
	tok, err := amw.Sign(signingKey, "", "user-"+role, role, cid, time.Minute)
	require.NoError(t, err)
	return tok
}

func do(e *echo.Echo, method, path, body, tok string, hdr ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAdminGet(t *testing.T) {
	e, _ := setup(t)
	admin := token(t, amw.RoleAdmin, 0)

	rec := do(e, http.MethodGet, "/v1/customers/1", "", admin)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got domain.Customer
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, "sato@example.com", got.Email)

	assert.Equal(t, http.StatusNotFound, do(e, http.MethodGet, "/v1/customers/99", "", admin).Code)
	assert.Equal(t, http.StatusBadRequest, do(e, http.MethodGet, "/v1/customers/abc", "", admin).Code)
	assert.Equal(t, http.StatusUnauthorized, do(e, http.MethodGet, "/v1/customers/1", "", "").Code)
	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/v1/customers/1", "", token(t, amw.RoleCustomer, 1)).Code)
}

func TestAdminUpdate_CarriesRequestMetadata(t *testing.T) {
	e, svc := setup(t)

	rec := do(e, http.MethodPut, "/v1/customers/1", `{"addr01":"Osaka"}`, token(t, amw.RoleAdmin, 0),
		echo.HeaderXRequestID, "req-123", "User-Agent", "ops-console")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "Osaka", svc.rows[1].Addr01)
	require.NotNil(t, svc.lastReq)
	assert.Equal(t, "req-123", svc.lastReq.ID)
	assert.Equal(t, http.MethodPut, svc.lastReq.Method)
	assert.Equal(t, "/v1/customers/1", svc.lastReq.Path)
	assert.Equal(t, "ops-console", svc.lastReq.UserAgent)
	assert.NotEmpty(t, svc.lastReq.RemoteIP)
}

func TestAdminUpdate_Validation(t *testing.T) {
	e, svc := setup(t)
	admin := token(t, amw.RoleAdmin, 0)

	rec := do(e, http.MethodPut, "/v1/customers/1", `{"email":"not-an-email"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "email")

	rec = do(e, http.MethodPut, "/v1/customers/1", `{"zip01":"12"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodPut, "/v1/customers/1", `{`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Zero(t, svc.updates)
	assert.Equal(t, http.StatusNotFound, do(e, http.MethodPut, "/v1/customers/99", `{"addr01":"x"}`, admin).Code)
}

func TestAdminCreate(t *testing.T) {
	e, svc := setup(t)
	admin := token(t, amw.RoleAdmin, 0)

	rec := do(e, http.MethodPost, "/v1/customers", `{"name01":"Kato","email":"kato@example.com"}`, admin)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Len(t, svc.rows, 3)
	assert.Zero(t, svc.updates)

	rec = do(e, http.MethodPost, "/v1/customers", `{"name01":"Kato"}`, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyPage(t *testing.T) {
	e, svc := setup(t)
	member := token(t, amw.RoleCustomer, 2)

	rec := do(e, http.MethodGet, "/v1/mypage/profile", "", member)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ito@example.com")

	rec = do(e, http.MethodPut, "/v1/mypage/profile", `{"tel01":"090","tel02":"1234","tel03":"5678"}`, member)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "090", svc.rows[2].Tel01)
	assert.Equal(t, "Sato", svc.rows[1].Name01, "other customers are untouched")

	assert.Equal(t, http.StatusForbidden, do(e, http.MethodGet, "/v1/mypage/profile", "", token(t, amw.RoleAdmin, 0)).Code)
}

func TestProfileWriteRateLimit(t *testing.T) {
	e, _ := setup(t)
	member := token(t, amw.RoleCustomer, 2)

	for i := 0; i < 10; i++ {
		rec := do(e, http.MethodPut, "/v1/mypage/profile", `{"addr02":"x"}`, member)
		require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := do(e, http.MethodPut, "/v1/mypage/profile", `{"addr02":"x"}`, member)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
