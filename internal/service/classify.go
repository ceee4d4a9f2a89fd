package service

import (
	"errors"

	"connecthub/auth/internal/repository"
)

// The store interfaces are satisfied by the repository package; these
// helpers recognize its sentinels at the flow decision points.

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrUserNotFound) ||
		errors.Is(err, repository.ErrSessionNotFound) ||
		errors.Is(err, repository.ErrRefreshTokenNotFound) ||
		errors.Is(err, repository.ErrPasswordResetNotFound) ||
		errors.Is(err, repository.ErrEmailVerificationNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

func isEmailConflict(err error) bool {
	return errors.Is(err, repository.ErrEmailTaken)
}

func isUsernameConflict(err error) bool {
	return errors.Is(err, repository.ErrUsernameTaken)
}
