package models

import "time"

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

type User struct {
	ID           string
	Email        string
	Username     string
	PasswordHash []byte
	Role         UserRole
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session is one active access-token grant. A user may hold any number
// of concurrent sessions.
type Session struct {
	ID        string
	UserID    string
	TokenHash []byte
	IPAddress string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// RefreshToken is the durable registry row behind a signed refresh token.
// Rotation inserts a replacement row and marks this one revoked; a revoked
// or expired row is never accepted again.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash []byte
	IsRevoked bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// PasswordReset is single-use: UsedAt is set at most once.
type PasswordReset struct {
	ID        string
	UserID    string
	TokenHash []byte
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// EmailVerification carries the address being verified so a later email
// change cannot retroactively validate a stale challenge.
type EmailVerification struct {
	ID         string
	UserID     string
	Email      string
	TokenHash  []byte
	ExpiresAt  time.Time
	VerifiedAt *time.Time
	CreatedAt  time.Time
}
