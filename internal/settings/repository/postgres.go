package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sdomain "github.com/corvusHold/changenotify/internal/settings/domain"
)

var _ sdomain.Repository = (*PGRepository)(nil)

// PGRepository stores settings in the app_settings table.
type PGRepository struct{ pool *pgxpool.Pool }

func New(pg *pgxpool.Pool) *PGRepository { return &PGRepository{pool: pg} }

const (
	getSettingSQL    = `SELECT value FROM app_settings WHERE key = $1`
	upsertSettingSQL = `INSERT INTO app_settings (key, value, is_secret, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, is_secret = EXCLUDED.is_secret, updated_at = now()`
)

func (r *PGRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := r.pool.QueryRow(ctx, getSettingSQL, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get setting %s: %w", key, err)
	}
	return v, true, nil
}

func (r *PGRepository) Upsert(ctx context.Context, entries ...sdomain.Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, e := range entries {
			b.Queue(upsertSettingSQL, e.Key, e.Value, e.Secret)
		}
		if err := tx.SendBatch(ctx, b).Close(); err != nil {
			return fmt.Errorf("upsert settings: %w", err)
		}
		return nil
	})
}
