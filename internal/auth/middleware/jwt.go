package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/corvusHold/changenotify/internal/config"
)

// Roles carried in the "role" claim.
const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"
)

const (
	ctxSubjectKey    = "auth_subject"
	ctxRoleKey       = "auth_role"
	ctxCustomerIDKey = "auth_customer_id"

	// CookieName is the session cookie checked when no Authorization header is sent.
	CookieName = "changenotify_access_token"
)

// NewJWT returns an Echo middleware that validates access JWTs and
// stores the subject, role and, for customers, the customer id in the
// context.
func NewJWT(cfg config.Config) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithLeeway(30 * time.Second), jwt.WithIssuedAt(), jwt.WithValidMethods([]string{"HS256"})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")

			// If no Authorization header, fall back to cookie-based session token
			if auth == "" {
				if cookie, err := c.Cookie(CookieName); err == nil && cookie != nil && cookie.Value != "" {
					auth = "Bearer " + cookie.Value
				}
			}

			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing bearer token"})
			}
			tokStr := strings.TrimPrefix(auth, "Bearer ")

			tok, err := jwt.Parse(tokStr, func(token *jwt.Token) (any, error) {
				return []byte(cfg.JWTSigningKey), nil
			}, opts...)
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid token"})
			}

			claims, ok := tok.Claims.(jwt.MapClaims)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid claims"})
			}
			sub, _ := claims["sub"].(string)
			role, _ := claims["role"].(string)
			if sub == "" || (role != RoleAdmin && role != RoleCustomer) {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid subject or role"})
			}
			if role == RoleCustomer {
				cid, ok := customerID(claims["cid"])
				if !ok {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid customer id"})
				}
				c.Set(ctxCustomerIDKey, cid)
			}

			c.Set(ctxSubjectKey, sub)
			c.Set(ctxRoleKey, role)
			return next(c)
		}
	}
}

// RequireRole rejects requests whose token role is not one of roles. It
// must run after NewJWT.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, ok := Role(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			}
			for _, r := range roles {
				if r == role {
					return next(c)
				}
			}
			return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
		}
	}
}

// Sign issues an HS256 access token.
func Sign(signingKey, issuer, subject, role string, customerID int64, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(ttl).Unix(),
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	if role == RoleCustomer {
		claims["cid"] = strconv.FormatInt(customerID, 10)
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(signingKey))
}

// Subject returns the authenticated subject from context.
func Subject(c echo.Context) (string, bool) {
	s, ok := c.Get(ctxSubjectKey).(string)
	return s, ok && s != ""
}

// Role returns the authenticated role from context.
func Role(c echo.Context) (string, bool) {
	r, ok := c.Get(ctxRoleKey).(string)
	return r, ok && r != ""
}

// CustomerID returns the authenticated customer's id from context.
func CustomerID(c echo.Context) (int64, bool) {
	id, ok := c.Get(ctxCustomerIDKey).(int64)
	return id, ok
}

// cid arrives as a string, or as a JSON number from other issuers.
func customerID(v any) (int64, bool) {
	switch t := v.(type) {
	case string:
		id, err := strconv.ParseInt(t, 10, 64)
		return id, err == nil && id > 0
	case float64:
		id := int64(t)
		return id, id > 0 && float64(id) == t
	default:
		return 0, false
	}
}
