package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"connecthub/auth/internal/models"
)

var ErrEmailVerificationNotFound = errors.New("email verification not found")

type EmailVerificationRepository struct {
	pool *pgxpool.Pool
}

func NewEmailVerificationRepository(pool *pgxpool.Pool) *EmailVerificationRepository {
	return &EmailVerificationRepository{pool: pool}
}

func (r *EmailVerificationRepository) Create(ctx context.Context, verification models.EmailVerification) error {
	const query = `
		INSERT INTO email_verifications (
			id, user_id, email, token_hash, expires_at, created_at
		) VALUES (
			$1, $2, $3, $4, $5, NOW()
		)
	`
	_, err := r.pool.Exec(ctx, query,
		verification.ID,
		verification.UserID,
		verification.Email,
		verification.TokenHash,
		verification.ExpiresAt,
	)
	return err
}

func (r *EmailVerificationRepository) FindActiveByTokenHash(ctx context.Context, tokenHash []byte) (models.EmailVerification, error) {
	const query = `
		SELECT id, user_id, email, token_hash, expires_at, verified_at, created_at
		FROM email_verifications
		WHERE token_hash = $1 AND verified_at IS NULL AND expires_at > NOW()
	`

	row := r.pool.QueryRow(ctx, query, tokenHash)
	var verification models.EmailVerification
	if err := row.Scan(
		&verification.ID,
		&verification.UserID,
		&verification.Email,
		&verification.TokenHash,
		&verification.ExpiresAt,
		&verification.VerifiedAt,
		&verification.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.EmailVerification{}, ErrEmailVerificationNotFound
		}
		return models.EmailVerification{}, err
	}
	return verification, nil
}

func (r *EmailVerificationRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `
		UPDATE email_verifications SET verified_at = NOW()
		WHERE id = $1 AND verified_at IS NULL
	`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEmailVerificationNotFound
	}
	return nil
}

func (r *EmailVerificationRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM email_verifications WHERE expires_at <= NOW() OR verified_at IS NOT NULL`
	cmd, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
