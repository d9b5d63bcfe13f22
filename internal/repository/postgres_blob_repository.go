package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// PostgresBlobRepository stores documents in the timetable_blobs table.
type PostgresBlobRepository struct {
	db *sqlx.DB
}

// NewPostgresBlobRepository constructs the repository.
func NewPostgresBlobRepository(db *sqlx.DB) *PostgresBlobRepository {
	return &PostgresBlobRepository{db: db}
}

// Get fetches the payload stored under key.
func (r *PostgresBlobRepository) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT payload FROM timetable_blobs WHERE key = $1`
	var payload []byte
	if err := r.db.GetContext(ctx, &payload, query, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return payload, nil
}

// Put inserts or replaces the payload stored under key.
func (r *PostgresBlobRepository) Put(ctx context.Context, key string, payload []byte) error {
	const query = `INSERT INTO timetable_blobs (key, payload, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key)
DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key, payload); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	return nil
}

// Delete removes the payload stored under key. Missing keys are not an error.
func (r *PostgresBlobRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM timetable_blobs WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}

// Ping checks database connectivity.
func (r *PostgresBlobRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
