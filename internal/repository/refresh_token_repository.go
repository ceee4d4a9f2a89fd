package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"connecthub/auth/internal/models"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

type RefreshTokenRepository struct {
	pool *pgxpool.Pool
}

func NewRefreshTokenRepository(pool *pgxpool.Pool) *RefreshTokenRepository {
	return &RefreshTokenRepository{pool: pool}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token models.RefreshToken) error {
	const query = `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, is_revoked, created_at, expires_at
		) VALUES (
			$1, $2, $3, FALSE, NOW(), $4
		)
	`
	_, err := r.pool.Exec(ctx, query,
		token.ID,
		token.UserID,
		token.TokenHash,
		token.ExpiresAt,
	)
	return err
}

// FindByTokenHash only returns live tokens: revoked or expired rows are
// invisible to lookup, which is what makes rotation single-use.
func (r *RefreshTokenRepository) FindByTokenHash(ctx context.Context, tokenHash []byte) (models.RefreshToken, error) {
	const query = `
		SELECT id, user_id, token_hash, is_revoked, created_at, expires_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND is_revoked = FALSE AND expires_at > NOW()
	`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	var token models.RefreshToken
	if err := row.Scan(
		&token.ID,
		&token.UserID,
		&token.TokenHash,
		&token.IsRevoked,
		&token.CreatedAt,
		&token.ExpiresAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.RefreshToken{}, ErrRefreshTokenNotFound
		}
		return models.RefreshToken{}, err
	}
	return token, nil
}

// Rotate revokes the presented token row and registers its replacement in
// one transaction. Partial application would either leak a live token or
// strand the user, so both statements commit or neither does.
func (r *RefreshTokenRepository) Rotate(ctx context.Context, oldID string, replacement models.RefreshToken) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin rotate: %w", err)
	}
	defer tx.Rollback(ctx)

	const revoke = `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE id = $1 AND is_revoked = FALSE
	`
	cmd, err := tx.Exec(ctx, revoke, oldID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRefreshTokenNotFound
	}

	const insert = `
		INSERT INTO refresh_tokens (
			id, user_id, token_hash, is_revoked, created_at, expires_at
		) VALUES (
			$1, $2, $3, FALSE, NOW(), $4
		)
	`
	if _, err := tx.Exec(ctx, insert,
		replacement.ID,
		replacement.UserID,
		replacement.TokenHash,
		replacement.ExpiresAt,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RevokeAllForUser invalidates every outstanding refresh token for the
// user in one statement. Called on password reset and password change.
func (r *RefreshTokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `
		UPDATE refresh_tokens SET is_revoked = TRUE
		WHERE user_id = $1 AND is_revoked = FALSE
	`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at <= NOW() OR is_revoked = TRUE`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
