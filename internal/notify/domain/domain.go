package domain

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/corvusHold/changenotify/internal/changes"
)

// Template identifiers.
const (
	TemplateAdmin    = "customer_change_admin_mail"
	TemplateCustomer = "customer_change_member_mail"
)

// Default subjects used when no configuration row exists.
const (
	DefaultAdminSubject    = "customer profile changed (admin)"
	DefaultCustomerSubject = "your profile was changed"
)

// Config is the notification configuration singleton.
type Config struct {
	// AdminTo overrides the admin recipient; empty means the shop address.
	AdminTo         string `json:"admin_to"`
	AdminSubject    string `json:"admin_subject"`
	CustomerSubject string `json:"customer_subject"`
}

// DefaultConfig is the in-memory configuration returned when nothing is
// stored.
func DefaultConfig() Config {
	return Config{AdminSubject: DefaultAdminSubject, CustomerSubject: DefaultCustomerSubject}
}

// ConfigStore reads the notification configuration. Reads never write.
type ConfigStore interface {
	Get(ctx context.Context) (Config, error)
}

// Shop is the sender identity.
type Shop struct {
	FromAddress string
	FromName    string
}

// ShopProvider resolves the shop identity.
type ShopProvider interface {
	Get(ctx context.Context) (Shop, error)
}

// Subject is the changed record a notification is about.
type Subject interface {
	SubjectID() string
	SubjectEmail() string
}

// Request is metadata about the HTTP request that caused a change.
type Request struct {
	ID        string `json:"id"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	RemoteIP  string `json:"remote_ip"`
	UserAgent string `json:"user_agent"`
}

type requestKey struct{}

// WithRequest stores request metadata on ctx.
func WithRequest(ctx context.Context, r *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFrom returns the request stored on ctx, or nil.
func RequestFrom(ctx context.Context) *Request {
	r, _ := ctx.Value(requestKey{}).(*Request)
	return r
}

// RenderContext is what templates see.
type RenderContext struct {
	Subject Subject
	Changes []changes.Change
	Request *Request
	Shop    Shop
}

// Renderer renders a template by id.
type Renderer interface {
	Render(templateID string, data RenderContext) (string, error)
}

// Role is the recipient role of a send attempt.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

// Status is the outcome of one send attempt.
type Status string

const (
	// StatusSent means the transport accepted at least one recipient.
	StatusSent Status = "sent"
	// StatusRejected means the transport returned zero accepted recipients.
	StatusRejected Status = "rejected"
	// StatusFailed means rendering or the transport returned an error.
	StatusFailed Status = "failed"
)

// Attempt is the result of one send attempt.
type Attempt struct {
	Role     Role
	To       string
	Subject  string
	Accepted int
	Status   Status
	Err      error
}

// Report aggregates the outcome of one Notify call.
type Report struct {
	ID uuid.UUID
	// Skipped is set when the diff was empty and nothing was attempted.
	Skipped bool
	// Err is a resolution failure that aborted both attempts.
	Err      error
	Attempts []Attempt
}

// Sent is the number of attempts the transport accepted.
func (r Report) Sent() int {
	n := 0
	for _, a := range r.Attempts {
		if a.Status == StatusSent {
			n++
		}
	}
	return n
}

// Failed reports whether anything went wrong.
func (r Report) Failed() bool {
	if r.Err != nil {
		return true
	}
	for _, a := range r.Attempts {
		if a.Status != StatusSent {
			return true
		}
	}
	return false
}

// String summarizes the report for logs.
func (r Report) String() string {
	if r.Skipped {
		return "skipped"
	}
	if r.Err != nil {
		return "aborted: " + r.Err.Error()
	}
	parts := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		parts = append(parts, fmt.Sprintf("%s=%s", a.Role, a.Status))
	}
	return strings.Join(parts, " ")
}

// Notifier sends change notifications.
type Notifier interface {
	Notify(ctx context.Context, subject Subject, diff *changes.Diff, req *Request) Report
}
