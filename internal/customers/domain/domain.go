package domain

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// EntityType identifies customers in unit-of-work change reports.
const EntityType = "customer"

// ErrNotFound is returned when a customer does not exist.
var ErrNotFound = errors.New("customer not found")

// Customer is a shop member profile.
type Customer struct {
	ID        int64     `json:"id"`
	Name01    string    `json:"name01"`
	Name02    string    `json:"name02"`
	Kana01    string    `json:"kana01"`
	Kana02    string    `json:"kana02"`
	Email     string    `json:"email"`
	Tel01     string    `json:"tel01"`
	Tel02     string    `json:"tel02"`
	Tel03     string    `json:"tel03"`
	Zip01     string    `json:"zip01"`
	Zip02     string    `json:"zip02"`
	Addr01    string    `json:"addr01"`
	Addr02    string    `json:"addr02"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubjectID identifies the customer in notification logs.
func (c *Customer) SubjectID() string { return strconv.FormatInt(c.ID, 10) }

// SubjectEmail is the customer's own notification address.
func (c *Customer) SubjectEmail() string { return c.Email }

// ProfileInput is an edit of the watched profile fields. Nil fields are left
// untouched.
type ProfileInput struct {
	Name01 *string `json:"name01" validate:"omitempty,max=255"`
	Name02 *string `json:"name02" validate:"omitempty,max=255"`
	Kana01 *string `json:"kana01" validate:"omitempty,max=255"`
	Kana02 *string `json:"kana02" validate:"omitempty,max=255"`
	Email  *string `json:"email" validate:"omitempty,email,max=255"`
	Tel01  *string `json:"tel01" validate:"omitempty,numeric,max=5"`
	Tel02  *string `json:"tel02" validate:"omitempty,numeric,max=4"`
	Tel03  *string `json:"tel03" validate:"omitempty,numeric,max=4"`
	Zip01  *string `json:"zip01" validate:"omitempty,numeric,len=3"`
	Zip02  *string `json:"zip02" validate:"omitempty,numeric,len=4"`
	Addr01 *string `json:"addr01" validate:"omitempty,max=255"`
	Addr02 *string `json:"addr02" validate:"omitempty,max=255"`
}

// Apply copies the set fields of in onto c.
func (in ProfileInput) Apply(c *Customer) {
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&c.Name01, in.Name01)
	set(&c.Name02, in.Name02)
	set(&c.Kana01, in.Kana01)
	set(&c.Kana02, in.Kana02)
	set(&c.Email, in.Email)
	set(&c.Tel01, in.Tel01)
	set(&c.Tel02, in.Tel02)
	set(&c.Tel03, in.Tel03)
	set(&c.Zip01, in.Zip01)
	set(&c.Zip02, in.Zip02)
	set(&c.Addr01, in.Addr01)
	set(&c.Addr02, in.Addr02)
}

// Repository persists customers. Writes take the caller's transaction.
type Repository[T any] interface {
	GetByID(ctx context.Context, id int64) (Customer, error)
	GetForUpdate(ctx context.Context, tx T, id int64) (Customer, error)
	Update(ctx context.Context, tx T, c Customer) (Customer, error)
	Create(ctx context.Context, c Customer) (Customer, error)
}

// Service exposes profile use cases.
type Service interface {
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, in ProfileInput) (Customer, error)
	UpdateProfile(ctx context.Context, id int64, in ProfileInput) (Customer, error)
}
