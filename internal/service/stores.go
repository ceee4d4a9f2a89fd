package service

import (
	"context"

	"connecthub/auth/internal/models"
)

// The orchestrator depends on store interfaces rather than the pgx-backed
// repositories directly so tests can substitute in-memory fakes. The
// repository package satisfies all of them.

type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	GetByID(ctx context.Context, id string) (models.User, error)
	UpdatePassword(ctx context.Context, id string, passwordHash []byte) error
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	DeleteByTokenHash(ctx context.Context, tokenHash []byte) error
	DeleteAllForUser(ctx context.Context, userID string) error
	ListByUser(ctx context.Context, userID string) ([]models.Session, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token models.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash []byte) (models.RefreshToken, error)
	Rotate(ctx context.Context, oldID string, replacement models.RefreshToken) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type PasswordResetStore interface {
	Create(ctx context.Context, reset models.PasswordReset) error
	FindActiveByTokenHash(ctx context.Context, tokenHash []byte) (models.PasswordReset, error)
	MarkUsed(ctx context.Context, id string) error
}

type EmailVerificationStore interface {
	Create(ctx context.Context, verification models.EmailVerification) error
	FindActiveByTokenHash(ctx context.Context, tokenHash []byte) (models.EmailVerification, error)
	MarkVerified(ctx context.Context, id string) error
}
