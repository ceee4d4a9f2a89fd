package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"connecthub/auth/internal/config"
	"connecthub/auth/internal/events"
	"connecthub/auth/internal/ids"
	"connecthub/auth/internal/models"
	"connecthub/auth/internal/rate"
	"connecthub/auth/internal/security"
	"connecthub/auth/internal/sessioncache"
)

const (
	RateActionLogin         = "login"
	RateActionPasswordReset = "password_reset"
)

type AuthService struct {
	users         UserStore
	sessions      SessionStore
	refreshTokens RefreshTokenStore
	resets        PasswordResetStore
	verifications EmailVerificationStore
	cache         *sessioncache.Cache
	loginLimiter  *rate.Limiter
	resetLimiter  *rate.Limiter
	lockouts      *rate.LockoutTracker
	events        *events.Publisher
	cfg           *config.AppConfig
	log           zerolog.Logger
}

func NewAuthService(
	users UserStore,
	sessions SessionStore,
	refreshTokens RefreshTokenStore,
	resets PasswordResetStore,
	verifications EmailVerificationStore,
	cache *sessioncache.Cache,
	loginLimiter *rate.Limiter,
	resetLimiter *rate.Limiter,
	lockouts *rate.LockoutTracker,
	publisher *events.Publisher,
	cfg *config.AppConfig,
	log zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		refreshTokens: refreshTokens,
		resets:        resets,
		verifications: verifications,
		cache:         cache,
		loginLimiter:  loginLimiter,
		resetLimiter:  resetLimiter,
		lockouts:      lockouts,
		events:        publisher,
		cfg:           cfg,
		log:           log,
	}
}

func (s *AuthService) tokenConfig() security.TokenConfig {
	return security.TokenConfig{
		Secret:     s.cfg.Security.JWTSecret,
		Issuer:     s.cfg.Security.JWTIssuer,
		Audience:   s.cfg.Security.JWTAudience,
		AccessTTL:  s.cfg.Security.JWTAccessTTL,
		RefreshTTL: s.cfg.Security.JWTRefreshTTL,
	}
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type AuthResult struct {
	User         models.User
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Username = strings.TrimSpace(input.Username)
	if input.Email == "" || input.Username == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email, username and password required")
	}

	// Pre-checks give the common case a clean error; the unique
	// constraints remain the authoritative guard under concurrency.
	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, ErrEmailAlreadyExists
	} else if !isNotFound(err) {
		return AuthResult{}, err
	}
	if _, err := s.users.FindByUsername(ctx, input.Username); err == nil {
		return AuthResult{}, ErrUsernameAlreadyExists
	} else if !isNotFound(err) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		Username:     input.Username,
		PasswordHash: passwordHash,
		Role:         models.UserRoleUser,
		IsActive:     true,
	}

	if err := s.users.Create(ctx, user); err != nil {
		switch {
		case isEmailConflict(err):
			return AuthResult{}, ErrEmailAlreadyExists
		case isUsernameConflict(err):
			return AuthResult{}, ErrUsernameAlreadyExists
		}
		return AuthResult{}, err
	}

	if err := s.createEmailVerification(ctx, user); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("create email verification failed")
	}

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	s.events.Publish(ctx, events.TypeUserRegistered, user.ID)

	return AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

type LoginInput struct {
	Email     string
	Password  string
	IPAddress string
	UserAgent string
}

// Login runs its checks in a fixed order: rate limit on IP, then user
// lookup, then lockout, then password, then active status. The ordering
// is part of the contract and must not be rearranged.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	if res := s.loginLimiter.Check(ctx, input.IPAddress); !res.Allowed {
		return AuthResult{}, ErrTooManyAttempts
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if isNotFound(err) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if s.lockouts.IsLocked(ctx, user.ID) {
		return AuthResult{}, ErrAccountLocked
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		state := s.lockouts.RecordFailure(ctx, user.ID)
		if state.IsLocked {
			s.events.Publish(ctx, events.TypeAccountLocked, user.ID)
		}
		return AuthResult{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		return AuthResult{}, ErrAccountLocked
	}

	s.lockouts.Clear(ctx, user.ID)

	pair, err := s.issueTokenPair(ctx, user)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.recordSession(ctx, user, pair.AccessToken, input.IPAddress, input.UserAgent); err != nil {
		return AuthResult{}, err
	}

	s.events.Publish(ctx, events.TypeLoginSucceeded, user.ID)

	return AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// issueTokenPair signs a new pair and registers the refresh token hash
// durably. The row is what lets rotation invalidate the token before its
// signature naturally expires.
func (s *AuthService) issueTokenPair(ctx context.Context, user models.User) (security.TokenPair, error) {
	pair, err := security.IssueTokenPair(s.tokenConfig(), user.ID, user.Email, user.Username)
	if err != nil {
		return security.TokenPair{}, err
	}

	row := models.RefreshToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt: time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}
	if err := s.refreshTokens.Create(ctx, row); err != nil {
		return security.TokenPair{}, err
	}

	return pair, nil
}

// recordSession writes the durable session row, then mirrors it into the
// cache. Cache write failures are logged, not fatal: the cache is a
// non-authoritative accelerator and must never appear populated without
// a backing row.
func (s *AuthService) recordSession(ctx context.Context, user models.User, accessToken, ipAddress, userAgent string) error {
	session := models.Session{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: security.HashToken(accessToken),
		IPAddress: ipAddress,
		UserAgent: userAgent,
		ExpiresAt: time.Now().Add(s.cfg.Session.CacheTTL),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return err
	}

	data := sessioncache.SessionData{
		SessionID:    session.ID,
		UserID:       user.ID,
		Email:        user.Email,
		Username:     user.Username,
		Role:         string(user.Role),
		LastActivity: time.Now(),
		IPAddress:    ipAddress,
		UserAgent:    userAgent,
		CreatedAt:    time.Now(),
	}
	if err := s.cache.SetSession(ctx, data, s.cfg.Session.CacheTTL); err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID).Msg("session cache write failed")
	}
	return nil
}

// RefreshToken redeems a refresh token exactly once: the presented row is
// revoked and a replacement registered in the same transaction.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (AuthResult, error) {
	claims, err := security.ParseToken(refreshToken, s.tokenConfig(), security.TokenTypeRefresh)
	if err != nil {
		return AuthResult{}, err
	}

	tokenHash := security.HashToken(refreshToken)
	row, err := s.refreshTokens.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		if isNotFound(err) {
			return AuthResult{}, security.ErrTokenInvalid
		}
		return AuthResult{}, err
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil || !user.IsActive {
		return AuthResult{}, ErrUserNotFound
	}

	pair, err := security.IssueTokenPair(s.tokenConfig(), user.ID, user.Email, user.Username)
	if err != nil {
		return AuthResult{}, err
	}

	replacement := models.RefreshToken{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: security.HashToken(pair.RefreshToken),
		ExpiresAt: time.Now().Add(s.cfg.Security.JWTRefreshTTL),
	}
	if err := s.refreshTokens.Rotate(ctx, row.ID, replacement); err != nil {
		if isNotFound(err) {
			// Lost the race against a concurrent redemption.
			return AuthResult{}, security.ErrTokenInvalid
		}
		return AuthResult{}, err
	}

	return AuthResult{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
	}, nil
}

// Logout blacklists the access token and drops its durable session row.
// Refresh tokens survive: logout is access-session scoped. When a user id
// is supplied, every cached session for that user is invalidated as well.
func (s *AuthService) Logout(ctx context.Context, accessToken string, userID string) error {
	tokenHash := security.HashToken(accessToken)

	if err := s.cache.BlacklistToken(ctx, tokenHash, s.cfg.Security.JWTAccessTTL); err != nil {
		return err
	}

	if err := s.sessions.DeleteByTokenHash(ctx, tokenHash); err != nil {
		s.log.Warn().Err(err).Msg("delete session row failed")
	}

	if userID != "" {
		if err := s.cache.DeleteUserSessions(ctx, userID); err != nil {
			s.log.Warn().Err(err).Str("user_id", userID).Msg("invalidate cached sessions failed")
		}
	}
	return nil
}

// ForgotPassword never reveals whether the email exists: unknown
// addresses return success with an empty token. The returned token goes
// to the email dispatcher, not the HTTP response.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}

	if res := s.resetLimiter.Check(ctx, email); !res.Allowed {
		return "", ErrTooManyRequests
	}

	token, tokenHash, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}

	reset := models.PasswordReset{
		ID:        ids.New(),
		UserID:    user.ID,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.cfg.Session.ResetTTL),
	}
	if err := s.resets.Create(ctx, reset); err != nil {
		return "", err
	}

	return token, nil
}

func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	reset, err := s.resets.FindActiveByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if isNotFound(err) {
			return security.ErrTokenInvalid
		}
		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, reset.UserID, passwordHash); err != nil {
		return err
	}

	if err := s.resets.MarkUsed(ctx, reset.ID); err != nil {
		return err
	}

	// Defense in depth: every outstanding refresh token dies with the
	// old password.
	if err := s.refreshTokens.RevokeAllForUser(ctx, reset.UserID); err != nil {
		return err
	}

	s.lockouts.Clear(ctx, reset.UserID)
	s.events.Publish(ctx, events.TypePasswordReset, reset.UserID)
	return nil
}

func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	verification, err := s.verifications.FindActiveByTokenHash(ctx, security.HashToken(token))
	if err != nil {
		if isNotFound(err) {
			return security.ErrTokenInvalid
		}
		return err
	}
	return s.verifications.MarkVerified(ctx, verification.ID)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}

	ok, err := security.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, passwordHash); err != nil {
		return err
	}

	if err := s.refreshTokens.RevokeAllForUser(ctx, user.ID); err != nil {
		return err
	}

	s.lockouts.Clear(ctx, user.ID)
	return nil
}

// ValidateToken checks signature, expiry, access type and the blacklist.
// The blacklist hit is what makes logout-then-reuse fail while the
// signature is still otherwise valid.
func (s *AuthService) ValidateToken(ctx context.Context, accessToken string) (*security.TokenClaims, error) {
	claims, err := security.ParseToken(accessToken, s.tokenConfig(), security.TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	if s.cache.IsTokenBlacklisted(ctx, security.HashToken(accessToken)) {
		return nil, security.ErrTokenInvalid
	}

	return claims, nil
}

func (s *AuthService) createEmailVerification(ctx context.Context, user models.User) error {
	_, tokenHash, err := security.GenerateOpaqueToken(32)
	if err != nil {
		return err
	}

	return s.verifications.Create(ctx, models.EmailVerification{
		ID:        ids.New(),
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(s.cfg.Session.VerifyTTL),
	})
}
