package service

import (
	"bytes"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvusHold/changenotify/internal/changes"
	edomain "github.com/corvusHold/changenotify/internal/email/domain"
	evdomain "github.com/corvusHold/changenotify/internal/events/domain"
	ndomain "github.com/corvusHold/changenotify/internal/notify/domain"
	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
	srepo "github.com/corvusHold/changenotify/internal/settings/repository"
	ssvc "github.com/corvusHold/changenotify/internal/settings/service"
)

type member struct {
	id    string
	email string
}

func (m member) SubjectID() string    { return m.id }
func (m member) SubjectEmail() string { return m.email }

type fakeTransport struct {
	sent []edomain.Message
	// per recipient behaviour
	fail   map[string]error
	refuse map[string]bool
	block  bool
}

func (f *fakeTransport) Send(ctx context.Context, m edomain.Message) (int, error) {
	f.sent = append(f.sent, m)
	if f.block {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	if err := f.fail[m.To]; err != nil {
		return 0, err
	}
	if f.refuse[m.To] {
		return 0, nil
	}
	return 1, nil
}

type failingSettings struct{}

func (failingSettings) GetString(context.Context, string, string) (string, error) {
	return "", errors.New("db down")
}
func (failingSettings) GetDuration(ctx context.Context, _ string, def time.Duration) (time.Duration, error) {
	return def, nil
}
func (failingSettings) GetInt(ctx context.Context, _ string, def int) (int, error) { return def, nil }

type recordingPublisher struct{ events []evdomain.Event }

func (p *recordingPublisher) Publish(ctx context.Context, e evdomain.Event) error {
	p.events = append(p.events, e)
	return nil
}

type fixture struct {
	svc       *Service
	transport *fakeTransport
	settings  *srepo.Memory
	pub       *recordingPublisher
	logs      *bytes.Buffer
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	repo := srepo.NewMemory()
	settings := ssvc.New(repo)
	renderer, err := NewTemplateRenderer("", zerolog.Nop())
	require.NoError(t, err)
	f := &fixture{
		transport: &fakeTransport{fail: map[string]error{}, refuse: map[string]bool{}},
		settings:  repo,
		pub:       &recordingPublisher{},
		logs:      &bytes.Buffer{},
	}
	opts = append([]Option{WithLogger(zerolog.New(f.logs)), WithPublisher(f.pub)}, opts...)
	f.svc = New(
		NewConfigStore(settings),
		NewShopProvider(settings, ndomain.Shop{FromAddress: "shop@example.com", FromName: "Example Shop"}),
		renderer,
		f.transport,
		opts...,
	)
	return f
}

func emailDiff() *changes.Diff {
	b := changes.MustBuilder([]changes.WatchedField{{Name: "email", Label: "Email address"}, {Name: "addr01", Label: "Address 1"}})
	return b.Build(changes.ChangeSet{
		"email":  {"old@example.com", "new@example.com"},
		"addr01": {"Tokyo", "Osaka"},
	})
}

var subject = member{id: "42", email: "new@example.com"}

func TestNotify_EmptyDiffDoesNothing(t *testing.T) {
	f := newFixture(t)

	rep := f.svc.Notify(context.Background(), subject, changes.NewDiff(), nil)

	assert.True(t, rep.Skipped)
	assert.Empty(t, rep.Attempts)
	assert.Empty(t, f.transport.sent)
	assert.Zero(t, f.logs.Len(), "no log entries for an empty diff")
	assert.Empty(t, f.pub.events)

	rep = f.svc.Notify(context.Background(), subject, nil, nil)
	assert.True(t, rep.Skipped)
}

func TestNotify_SendsAdminThenCustomerWithDefaults(t *testing.T) {
	f := newFixture(t)
	req := &ndomain.Request{ID: "req-9", Method: "PUT", Path: "/v1/mypage/profile", RemoteIP: "192.0.2.1"}

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), req)

	require.NoError(t, rep.Err)
	assert.False(t, rep.Failed())
	assert.Equal(t, 2, rep.Sent())
	require.Len(t, f.transport.sent, 2)

	admin, customer := f.transport.sent[0], f.transport.sent[1]
	assert.Equal(t, "shop@example.com", admin.To, "admin falls back to the shop address")
	assert.Equal(t, ndomain.DefaultAdminSubject, admin.Subject)
	assert.Equal(t, "shop@example.com", admin.FromAddress)
	assert.Equal(t, "Example Shop", admin.FromName)
	assert.Contains(t, admin.Body, "Customer ID: 42")
	assert.Contains(t, admin.Body, `- Email address: "old@example.com" -> "new@example.com"`)
	assert.Contains(t, admin.Body, "Request: PUT /v1/mypage/profile from 192.0.2.1 (id req-9)")

	assert.Equal(t, "new@example.com", customer.To)
	assert.Equal(t, ndomain.DefaultCustomerSubject, customer.Subject)
	assert.Contains(t, customer.Body, "- Address 1: Osaka")

	require.Len(t, f.pub.events, 2)
	assert.Equal(t, "customer.notify.admin.sent", f.pub.events[0].Type)
	assert.Equal(t, "customer.notify.customer.sent", f.pub.events[1].Type)
	assert.Equal(t, "42", f.pub.events[0].Subject)
}

func TestNotify_UsesConfiguredRecipientAndSubjects(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.settings.Upsert(context.Background(),
		sdomain.Entry{Key: sdomain.KeyNotifyAdminTo, Value: "admin@example.com"},
		sdomain.Entry{Key: sdomain.KeyNotifyAdminSubject, Value: "Member updated"},
		sdomain.Entry{Key: sdomain.KeyNotifyCustomerSubject, Value: "Thanks for updating"},
	))

	f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	require.Len(t, f.transport.sent, 2)
	assert.Equal(t, "admin@example.com", f.transport.sent[0].To)
	assert.Equal(t, "Member updated", f.transport.sent[0].Subject)
	assert.Equal(t, "Thanks for updating", f.transport.sent[1].Subject)
	assert.NotContains(t, f.transport.sent[0].Body, "Request:")
}

func TestNotify_AdminFailureDoesNotStopCustomer(t *testing.T) {
	f := newFixture(t)
	f.transport.fail["shop@example.com"] = errors.New("connection reset")

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	require.Len(t, rep.Attempts, 2)
	assert.Equal(t, ndomain.StatusFailed, rep.Attempts[0].Status)
	assert.ErrorContains(t, rep.Attempts[0].Err, "connection reset")
	assert.Equal(t, ndomain.StatusSent, rep.Attempts[1].Status)
	assert.True(t, rep.Failed())
	assert.Contains(t, f.logs.String(), `"level":"error"`)
	assert.Equal(t, "customer.notify.admin.failed", f.pub.events[0].Type)
}

func TestNotify_ZeroAcceptedIsWarning(t *testing.T) {
	f := newFixture(t)
	f.transport.refuse["new@example.com"] = true

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	assert.Equal(t, ndomain.StatusSent, rep.Attempts[0].Status)
	assert.Equal(t, ndomain.StatusRejected, rep.Attempts[1].Status)
	assert.NoError(t, rep.Attempts[1].Err)
	assert.Contains(t, f.logs.String(), `"level":"warn"`)
	assert.NotContains(t, f.logs.String(), `"level":"error"`)
}

func TestNotify_ResolutionFailureAbortsBoth(t *testing.T) {
	renderer, err := NewTemplateRenderer("", zerolog.Nop())
	require.NoError(t, err)
	transport := &fakeTransport{}
	var logs bytes.Buffer
	svc := New(NewConfigStore(failingSettings{}), NewShopProvider(failingSettings{}, ndomain.Shop{}), renderer, transport, WithLogger(zerolog.New(&logs)))

	var rep ndomain.Report
	require.NotPanics(t, func() { rep = svc.Notify(context.Background(), subject, emailDiff(), nil) })

	require.Error(t, rep.Err)
	assert.Empty(t, rep.Attempts)
	assert.Empty(t, transport.sent)
	assert.Contains(t, logs.String(), "configuration unavailable")
}

type brokenRenderer struct{}

func (brokenRenderer) Render(id string, _ ndomain.RenderContext) (string, error) {
	if id == ndomain.TemplateAdmin {
		return "", errors.New("template syntax")
	}
	return "ok", nil
}

func TestNotify_RenderFailureIsolated(t *testing.T) {
	f := newFixture(t)
	f.svc.renderer = brokenRenderer{}

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	assert.Equal(t, ndomain.StatusFailed, rep.Attempts[0].Status)
	assert.Equal(t, ndomain.StatusSent, rep.Attempts[1].Status)
	require.Len(t, f.transport.sent, 1)
	assert.Equal(t, "new@example.com", f.transport.sent[0].To)
}

func TestNotify_MissingCustomerAddress(t *testing.T) {
	f := newFixture(t)

	rep := f.svc.Notify(context.Background(), member{id: "7"}, emailDiff(), nil)

	assert.Equal(t, ndomain.StatusSent, rep.Attempts[0].Status)
	assert.Equal(t, ndomain.StatusFailed, rep.Attempts[1].Status)
	assert.ErrorIs(t, rep.Attempts[1].Err, errNoRecipient)
	assert.Len(t, f.transport.sent, 1)
}

func TestNotify_SendTimeout(t *testing.T) {
	f := newFixture(t, WithSendTimeout(20*time.Millisecond))
	f.transport.block = true

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	require.Len(t, rep.Attempts, 2)
	for _, a := range rep.Attempts {
		assert.Equal(t, ndomain.StatusFailed, a.Status)
		assert.ErrorIs(t, a.Err, context.DeadlineExceeded)
	}
}

func TestNotify_NilSubjectReturnsFailedReport(t *testing.T) {
	f := newFixture(t)

	var rep ndomain.Report
	require.NotPanics(t, func() { rep = f.svc.Notify(context.Background(), nil, emailDiff(), nil) })

	assert.ErrorIs(t, rep.Err, errNoSubject)
	assert.Empty(t, rep.Attempts)
	assert.Empty(t, f.transport.sent)
}

type panickySubject struct{}

func (panickySubject) SubjectID() string    { panic("lazy load failed") }
func (panickySubject) SubjectEmail() string { return "" }

func TestNotify_SubjectPanicIsRecovered(t *testing.T) {
	f := newFixture(t)

	var rep ndomain.Report
	require.NotPanics(t, func() { rep = f.svc.Notify(context.Background(), panickySubject{}, emailDiff(), nil) })

	assert.ErrorContains(t, rep.Err, "lazy load failed")
	assert.Empty(t, f.transport.sent)
}

func TestNotify_LogsEachAttemptStartAtInfo(t *testing.T) {
	f := newFixture(t)

	f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	var roles []string
	sc := bufio.NewScanner(f.logs)
	for sc.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &line))
		if line["message"] == "sending notification" {
			assert.Equal(t, "info", line["level"])
			roles = append(roles, line["role"].(string))
		}
	}
	assert.Equal(t, []string{"admin", "customer"}, roles)
}

func TestReport_String(t *testing.T) {
	f := newFixture(t)
	f.transport.refuse["new@example.com"] = true

	rep := f.svc.Notify(context.Background(), subject, emailDiff(), nil)

	assert.Equal(t, "admin=sent customer=rejected", rep.String())
	assert.True(t, strings.HasPrefix(ndomain.Report{Err: errors.New("x")}.String(), "aborted"))
}
