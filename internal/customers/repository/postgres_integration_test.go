package repository

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/changenotify/internal/customers/domain"
)

func TestPGRepository_CreateUpdate(t *testing.T) {
	if os.Getenv("DATABASE_URL") == "" {
		t.Skip("skipping integration test: DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, os.Getenv("DATABASE_URL"))
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer pool.Close()
	r := New(pool)

	created, err := r.Create(ctx, domain.Customer{Name01: "Yamada", Email: "it@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer func() { _, _ = pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, created.ID) }()

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		c, err := r.GetForUpdate(ctx, tx, created.ID)
		if err != nil {
			return err
		}
		c.Email = "changed@example.com"
		_, err = r.Update(ctx, tx, c)
		return err
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := r.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "changed@example.com" || got.Name01 != "Yamada" {
		t.Fatalf("unexpected customer: %+v", got)
	}

	if _, err := r.GetByID(ctx, -1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
