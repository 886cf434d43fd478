// Package revokedtokens persists logged-out token fingerprints.
package revokedtokens

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vipclub/internal/dbx"
	"github.com/dmitrijs2005/vipclub/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert records the fingerprint. Inserting an existing fingerprint is a
// successful no-op and keeps the original revocation time.
func (r *PostgresRepository) Insert(ctx context.Context, token *models.RevokedToken) error {
	query :=
		`INSERT INTO revoked_tokens (fingerprint, revoked_at, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, token.Fingerprint, token.RevokedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Exists(ctx context.Context, fingerprint string) (bool, error) {
	query :=
		`SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE fingerprint = $1)
		 `

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, fingerprint).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// ListActive returns records whose token has not yet expired at now.
func (r *PostgresRepository) ListActive(ctx context.Context, now time.Time) ([]models.RevokedToken, error) {
	query :=
		`SELECT fingerprint, revoked_at, expires_at FROM revoked_tokens
		 WHERE expires_at > $1
		 ORDER BY expires_at
		 `

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var items []models.RevokedToken
	for rows.Next() {
		var t models.RevokedToken
		if err := rows.Scan(&t.Fingerprint, &t.RevokedAt, &t.ExpiresAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return items, nil
}

// DeleteExpired removes records of tokens that expired at or before before
// and returns how many were removed.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query :=
		`DELETE FROM revoked_tokens
		 WHERE expires_at <= $1
		 `

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
