package service

import "errors"

var (
	ErrEmailAlreadyExists    = errors.New("email already registered")
	ErrUsernameAlreadyExists = errors.New("username already registered")

	// ErrInvalidCredentials is deliberately raised for both "no such
	// user" and "wrong password" so login cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked covers both a failed-login lockout and a
	// deactivated account.
	ErrAccountLocked = errors.New("account locked")

	ErrUserNotFound = errors.New("user not found")

	ErrTooManyAttempts = errors.New("too many attempts")
	ErrTooManyRequests = errors.New("too many requests")
)
