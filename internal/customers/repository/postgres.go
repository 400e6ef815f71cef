package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/corvusHold/changenotify/internal/customers/domain"
)

var _ domain.Repository[pgx.Tx] = (*PGRepository)(nil)

// PGRepository persists customers in postgres. Writes that must join a
// unit of work take its transaction.
type PGRepository struct{ pool *pgxpool.Pool }

func New(pg *pgxpool.Pool) *PGRepository { return &PGRepository{pool: pg} }

const customerColumns = `id, name01, name02, kana01, kana02, email, tel01, tel02, tel03, zip01, zip02, addr01, addr02, created_at, updated_at`

const (
	getCustomerSQL       = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	getCustomerLockedSQL = getCustomerSQL + ` FOR UPDATE`
	updateCustomerSQL    = `UPDATE customers SET
	name01 = $2, name02 = $3, kana01 = $4, kana02 = $5, email = $6,
	tel01 = $7, tel02 = $8, tel03 = $9, zip01 = $10, zip02 = $11, addr01 = $12, addr02 = $13,
	updated_at = now()
WHERE id = $1
RETURNING ` + customerColumns
	insertCustomerSQL = `INSERT INTO customers
	(name01, name02, kana01, kana02, email, tel01, tel02, tel03, zip01, zip02, addr01, addr02)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
RETURNING ` + customerColumns
)

func scan(row pgx.Row) (domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.Name01, &c.Name02, &c.Kana01, &c.Kana02, &c.Email,
		&c.Tel01, &c.Tel02, &c.Tel03, &c.Zip01, &c.Zip02, &c.Addr01, &c.Addr02,
		&c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Customer{}, domain.ErrNotFound
	}
	return c, err
}

func (r *PGRepository) GetByID(ctx context.Context, id int64) (domain.Customer, error) {
	c, err := scan(r.pool.QueryRow(ctx, getCustomerSQL, id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return c, fmt.Errorf("get customer %d: %w", id, err)
	}
	return c, err
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id int64) (domain.Customer, error) {
	c, err := scan(tx.QueryRow(ctx, getCustomerLockedSQL, id))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return c, fmt.Errorf("lock customer %d: %w", id, err)
	}
	return c, err
}

func (r *PGRepository) Update(ctx context.Context, tx pgx.Tx, c domain.Customer) (domain.Customer, error) {
	out, err := scan(tx.QueryRow(ctx, updateCustomerSQL, c.ID,
		c.Name01, c.Name02, c.Kana01, c.Kana02, c.Email,
		c.Tel01, c.Tel02, c.Tel03, c.Zip01, c.Zip02, c.Addr01, c.Addr02))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return out, fmt.Errorf("update customer %d: %w", c.ID, err)
	}
	return out, err
}

func (r *PGRepository) Create(ctx context.Context, c domain.Customer) (domain.Customer, error) {
	out, err := scan(r.pool.QueryRow(ctx, insertCustomerSQL,
		c.Name01, c.Name02, c.Kana01, c.Kana02, c.Email,
		c.Tel01, c.Tel02, c.Tel03, c.Zip01, c.Zip02, c.Addr01, c.Addr02))
	if err != nil {
		return out, fmt.Errorf("create customer: %w", err)
	}
	return out, nil
}
