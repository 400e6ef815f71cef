package domain

import (
	"context"
	"time"
)

// Service provides typed access to application settings with a default
// fallback. Repository errors are returned together with the default.
type Service interface {
	GetString(ctx context.Context, key string, def string) (string, error)
	GetDuration(ctx context.Context, key string, def time.Duration) (time.Duration, error)
	GetInt(ctx context.Context, key string, def int) (int, error)
}

// Entry is one stored setting.
type Entry struct {
	Key    string
	Value  string
	Secret bool
}

// Repository abstracts storage of app settings.
type Repository interface {
	// Get returns (value, found, err) for an exact key.
	Get(ctx context.Context, key string) (string, bool, error)
	// Upsert stores all entries atomically.
	Upsert(ctx context.Context, entries ...Entry) error
}

// Notification keys
const (
	KeyNotifyAdminTo         = "notify.admin_to"
	KeyNotifyAdminSubject    = "notify.admin_subject"
	KeyNotifyCustomerSubject = "notify.customer_subject"
)

// Shop identity keys; defaults come from SHOP_EMAIL / SHOP_NAME.
const (
	KeyShopEmail = "shop.email"
	KeyShopName  = "shop.name"
)

// Mail transport keys
const (
	KeyEmailProvider = "email.provider" // smtp | brevo | nop
	KeySMTPHost      = "email.smtp.host"
	KeySMTPPort      = "email.smtp.port"
	KeySMTPUsername  = "email.smtp.username"
	KeySMTPPassword  = "email.smtp.password"
	KeyBrevoAPIKey   = "email.brevo.api_key"
)

// Admin API rate limiting keys (optional).
// Windows use Go duration strings (e.g., "1m", "10s"). Limits are integers.
const (
	// GET /v1/admin/notify/config
	KeyRLConfigGetLimit  = "settings.ratelimit.get.limit"
	KeyRLConfigGetWindow = "settings.ratelimit.get.window"
	// PUT /v1/admin/notify/config
	KeyRLConfigPutLimit  = "settings.ratelimit.put.limit"
	KeyRLConfigPutWindow = "settings.ratelimit.put.window"
	// PUT /v1/mypage/profile
	KeyRLProfilePutLimit  = "customers.ratelimit.profile.limit"
	KeyRLProfilePutWindow = "customers.ratelimit.profile.window"
)
