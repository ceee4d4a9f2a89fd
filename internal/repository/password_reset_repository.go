package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"connecthub/auth/internal/models"
)

var ErrPasswordResetNotFound = errors.New("password reset not found")

type PasswordResetRepository struct {
	pool *pgxpool.Pool
}

func NewPasswordResetRepository(pool *pgxpool.Pool) *PasswordResetRepository {
	return &PasswordResetRepository{pool: pool}
}

func (r *PasswordResetRepository) Create(ctx context.Context, reset models.PasswordReset) error {
	const query = `
		INSERT INTO password_resets (
			id, user_id, token_hash, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		reset.ID,
		reset.UserID,
		reset.TokenHash,
		reset.ExpiresAt,
	)
	return err
}

// FindActiveByTokenHash carries the single-use guard in the lookup
// predicate: used or expired records are never returned.
func (r *PasswordResetRepository) FindActiveByTokenHash(ctx context.Context, tokenHash []byte) (models.PasswordReset, error) {
	const query = `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_resets
		WHERE token_hash = $1 AND used_at IS NULL AND expires_at > NOW()
	`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	var reset models.PasswordReset
	if err := row.Scan(
		&reset.ID,
		&reset.UserID,
		&reset.TokenHash,
		&reset.ExpiresAt,
		&reset.UsedAt,
		&reset.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PasswordReset{}, ErrPasswordResetNotFound
		}
		return models.PasswordReset{}, err
	}
	return reset, nil
}

func (r *PasswordResetRepository) MarkUsed(ctx context.Context, id string) error {
	const query = `
		UPDATE password_resets SET used_at = NOW()
		WHERE id = $1 AND used_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrPasswordResetNotFound
	}
	return nil
}

func (r *PasswordResetRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM password_resets WHERE expires_at <= NOW() OR used_at IS NOT NULL`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
