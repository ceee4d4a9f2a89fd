package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"connecthub/auth/internal/config"
	"connecthub/auth/internal/events"
	"connecthub/auth/internal/models"
	"connecthub/auth/internal/rate"
	"connecthub/auth/internal/repository"
	"connecthub/auth/internal/security"
	"connecthub/auth/internal/sessioncache"
)

// In-memory store fakes. They return the repository sentinels so the
// orchestrator's error classification sees what pgx-backed stores produce.

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]models.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, user models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return repository.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return repository.ErrUsernameTaken
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Username == username {
			return user, nil
		}
	}
	return models.User{}, repository.ErrUserNotFound
}

func (f *fakeUserStore) GetByID(_ context.Context, id string) (models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return models.User{}, repository.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, id string, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now()
	f.users[id] = user
	return nil
}

func (f *fakeUserStore) setActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user := f.users[id]
	user.IsActive = active
	f.users[id] = user
}

type fakeSessionStore struct {
	mu       sync.Mutex
	sessions map[string]models.Session
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{sessions: map[string]models.Session{}}
}

func (f *fakeSessionStore) Create(_ context.Context, session models.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	session.CreatedAt = time.Now()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionStore) DeleteByTokenHash(_ context.Context, tokenHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.sessions {
		if bytes.Equal(session.TokenHash, tokenHash) {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) DeleteAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, session := range f.sessions {
		if session.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionStore) ListByUser(_ context.Context, userID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Session
	for _, session := range f.sessions {
		if session.UserID == userID {
			out = append(out, session)
		}
	}
	return out, nil
}

type fakeRefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[string]models.RefreshToken
}

func newFakeRefreshTokenStore() *fakeRefreshTokenStore {
	return &fakeRefreshTokenStore{tokens: map[string]models.RefreshToken{}}
}

func (f *fakeRefreshTokenStore) Create(_ context.Context, token models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	token.CreatedAt = time.Now()
	f.tokens[token.ID] = token
	return nil
}

func (f *fakeRefreshTokenStore) FindByTokenHash(_ context.Context, tokenHash []byte) (models.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, token := range f.tokens {
		if bytes.Equal(token.TokenHash, tokenHash) && !token.IsRevoked && token.ExpiresAt.After(time.Now()) {
			return token, nil
		}
	}
	return models.RefreshToken{}, repository.ErrRefreshTokenNotFound
}

func (f *fakeRefreshTokenStore) Rotate(_ context.Context, oldID string, replacement models.RefreshToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.tokens[oldID]
	if !ok || old.IsRevoked {
		return repository.ErrRefreshTokenNotFound
	}
	old.IsRevoked = true
	f.tokens[oldID] = old
	replacement.CreatedAt = time.Now()
	f.tokens[replacement.ID] = replacement
	return nil
}

func (f *fakeRefreshTokenStore) RevokeAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, token := range f.tokens {
		if token.UserID == userID {
			token.IsRevoked = true
			f.tokens[id] = token
		}
	}
	return nil
}

type fakePasswordResetStore struct {
	mu     sync.Mutex
	resets map[string]models.PasswordReset
}

func newFakePasswordResetStore() *fakePasswordResetStore {
	return &fakePasswordResetStore{resets: map[string]models.PasswordReset{}}
}

func (f *fakePasswordResetStore) Create(_ context.Context, reset models.PasswordReset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset.CreatedAt = time.Now()
	f.resets[reset.ID] = reset
	return nil
}

func (f *fakePasswordResetStore) FindActiveByTokenHash(_ context.Context, tokenHash []byte) (models.PasswordReset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reset := range f.resets {
		if bytes.Equal(reset.TokenHash, tokenHash) && reset.UsedAt == nil && reset.ExpiresAt.After(time.Now()) {
			return reset, nil
		}
	}
	return models.PasswordReset{}, repository.ErrPasswordResetNotFound
}

func (f *fakePasswordResetStore) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reset, ok := f.resets[id]
	if !ok || reset.UsedAt != nil {
		return repository.ErrPasswordResetNotFound
	}
	now := time.Now()
	reset.UsedAt = &now
	f.resets[id] = reset
	return nil
}

type fakeEmailVerificationStore struct {
	mu            sync.Mutex
	verifications map[string]models.EmailVerification
}

func newFakeEmailVerificationStore() *fakeEmailVerificationStore {
	return &fakeEmailVerificationStore{verifications: map[string]models.EmailVerification{}}
}

func (f *fakeEmailVerificationStore) Create(_ context.Context, verification models.EmailVerification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	verification.CreatedAt = time.Now()
	f.verifications[verification.ID] = verification
	return nil
}

func (f *fakeEmailVerificationStore) FindActiveByTokenHash(_ context.Context, tokenHash []byte) (models.EmailVerification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, verification := range f.verifications {
		if bytes.Equal(verification.TokenHash, tokenHash) && verification.VerifiedAt == nil && verification.ExpiresAt.After(time.Now()) {
			return verification, nil
		}
	}
	return models.EmailVerification{}, repository.ErrEmailVerificationNotFound
}

func (f *fakeEmailVerificationStore) MarkVerified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	verification, ok := f.verifications[id]
	if !ok || verification.VerifiedAt != nil {
		return repository.ErrEmailVerificationNotFound
	}
	now := time.Now()
	verification.VerifiedAt = &now
	f.verifications[id] = verification
	return nil
}

type testDeps struct {
	mr            *miniredis.Miniredis
	users         *fakeUserStore
	sessions      *fakeSessionStore
	refreshTokens *fakeRefreshTokenStore
	resets        *fakePasswordResetStore
	verifications *fakeEmailVerificationStore
	cache         *sessioncache.Cache
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Environment: "test",
		Security: config.SecurityConfig{
			JWTSecret:     "test-secret",
			JWTIssuer:     "connecthub-auth",
			JWTAudience:   "connecthub",
			JWTAccessTTL:  15 * time.Minute,
			JWTRefreshTTL: 168 * time.Hour,
		},
		RateLimit: config.RateLimitConfig{
			LoginWindow: 15 * time.Minute,
			LoginMax:    5,
			ResetWindow: time.Hour,
			ResetMax:    3,
		},
		Lockout: config.LockoutConfig{
			Threshold: 5,
			Duration:  30 * time.Minute,
		},
		Session: config.SessionConfig{
			CacheTTL:  24 * time.Hour,
			ResetTTL:  time.Hour,
			VerifyTTL: 24 * time.Hour,
		},
	}
}

func newTestService(t *testing.T) (*AuthService, *testDeps) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := testConfig()
	logger := zerolog.Nop()

	deps := &testDeps{
		mr:            mr,
		users:         newFakeUserStore(),
		sessions:      newFakeSessionStore(),
		refreshTokens: newFakeRefreshTokenStore(),
		resets:        newFakePasswordResetStore(),
		verifications: newFakeEmailVerificationStore(),
		cache:         sessioncache.New(rdb, logger),
	}

	loginLimiter := rate.NewLimiter(rdb, RateActionLogin, rate.LimiterConfig{
		Window:      cfg.RateLimit.LoginWindow,
		MaxAttempts: cfg.RateLimit.LoginMax,
	}, logger)
	resetLimiter := rate.NewLimiter(rdb, RateActionPasswordReset, rate.LimiterConfig{
		Window:      cfg.RateLimit.ResetWindow,
		MaxAttempts: cfg.RateLimit.ResetMax,
	}, logger)
	lockouts := rate.NewLockoutTracker(rdb, rate.LockoutConfig{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}, logger)

	svc := NewAuthService(
		deps.users, deps.sessions, deps.refreshTokens, deps.resets, deps.verifications,
		deps.cache, loginLimiter, resetLimiter, lockouts,
		events.NewPublisher(rdb, logger),
		cfg, logger,
	)
	return svc, deps
}

func registerUser(t *testing.T, svc *AuthService) AuthResult {
	t.Helper()

	result, err := svc.Register(context.Background(), RegisterInput{
		Email:    "a@x.com",
		Username: "a",
		Password: "Aa1!aaaa",
	})
	require.NoError(t, err)
	return result
}

func TestRegister_ReturnsValidTokenPair(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result := registerUser(t, svc)
	assert.Equal(t, "a@x.com", result.User.Email)
	assert.Equal(t, "a", result.User.Username)
	assert.True(t, result.User.IsActive)
	assert.Equal(t, int64(900), result.ExpiresIn)

	claims, err := svc.ValidateToken(ctx, result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, claims.Subject)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	_, err := svc.Register(ctx, RegisterInput{Email: "a@x.com", Username: "b", Password: "Aa1!aaaa"})
	assert.ErrorIs(t, err, ErrEmailAlreadyExists)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	_, err := svc.Register(ctx, RegisterInput{Email: "b@x.com", Username: "a", Password: "Aa1!aaaa"})
	assert.ErrorIs(t, err, ErrUsernameAlreadyExists)
}

func TestLogin_Success(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	result, err := svc.Login(ctx, LoginInput{
		Email:     "a@x.com",
		Password:  "Aa1!aaaa",
		IPAddress: "10.0.0.1",
		UserAgent: "test-agent",
	})
	require.NoError(t, err)
	assert.NotEqual(t, registered.AccessToken, result.AccessToken)

	// Both the register and login access tokens validate.
	_, err = svc.ValidateToken(ctx, registered.AccessToken)
	assert.NoError(t, err)
	_, err = svc.ValidateToken(ctx, result.AccessToken)
	assert.NoError(t, err)

	// Login created a durable session row plus a cached mirror.
	sessions, err := deps.sessions.ListByUser(ctx, result.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "10.0.0.1", sessions[0].IPAddress)

	cached, err := deps.cache.ListUserSessions(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestLogin_WrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	_, errWrong := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "nope-nope", IPAddress: "10.0.0.1"})
	_, errUnknown := svc.Login(ctx, LoginInput{Email: "ghost@x.com", Password: "nope-nope", IPAddress: "10.0.0.2"})

	assert.ErrorIs(t, errWrong, ErrInvalidCredentials)
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.Equal(t, errWrong.Error(), errUnknown.Error())
}

func TestLogin_RateLimitedPerIP(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	for i := 0; i < 5; i++ {
		_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
		require.NoError(t, err, "attempt %d", i+1)
	}

	_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrTooManyAttempts)

	// A different IP is unaffected.
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.2"})
	assert.NoError(t, err)

	// After the window elapses the original IP gets a fresh budget.
	deps.mr.FastForward(16 * time.Minute)
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
	assert.NoError(t, err)
}

func TestLogin_LockoutAfterRepeatedFailures(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	// Distinct IPs keep the per-IP limiter out of the picture.
	ips := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5"}
	for _, ip := range ips {
		_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password", IPAddress: ip})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}

	// Correct password, but the account is now locked.
	_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.6"})
	assert.ErrorIs(t, err, ErrAccountLocked)

	// The lockout lapses after its duration.
	deps.mr.FastForward(31 * time.Minute)
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.7"})
	assert.NoError(t, err)
}

func TestLogin_SuccessClearsFailureCounter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	for i, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3", "10.0.0.4"} {
		_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password", IPAddress: ip})
		require.ErrorIs(t, err, ErrInvalidCredentials, "attempt %d", i+1)
	}

	_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.5"})
	require.NoError(t, err)

	// Counter was cleared: four more failures do not lock.
	for _, ip := range []string{"10.0.1.1", "10.0.1.2", "10.0.1.3", "10.0.1.4"} {
		_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "wrong-password", IPAddress: ip})
		require.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.1.5"})
	assert.NoError(t, err)
}

func TestLogin_InactiveAccount(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	result := registerUser(t, svc)
	deps.users.setActive(result.User.ID, false)

	_, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrAccountLocked)
}

func TestRefreshToken_RotationIsSingleUse(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	rotated, err := svc.RefreshToken(ctx, registered.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, registered.RefreshToken, rotated.RefreshToken)
	assert.NotEqual(t, registered.AccessToken, rotated.AccessToken)

	// Second redemption of the same token fails.
	_, err = svc.RefreshToken(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)

	// The replacement still works.
	_, err = svc.RefreshToken(ctx, rotated.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshToken_RejectsAccessToken(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	_, err := svc.RefreshToken(ctx, registered.AccessToken)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}

func TestRefreshToken_InactiveUser(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)
	deps.users.setActive(registered.User.ID, false)

	_, err := svc.RefreshToken(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestLogout_BlacklistsAccessToken(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)
	result, err := svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, result.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, result.AccessToken, result.User.ID))

	// Signature and expiry are still fine; the blacklist is what rejects it.
	_, err = svc.ValidateToken(ctx, result.AccessToken)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)

	// Cached sessions are gone; refresh tokens survive logout.
	cached, err := deps.cache.ListUserSessions(ctx, result.User.ID)
	require.NoError(t, err)
	assert.Empty(t, cached)

	_, err = svc.RefreshToken(ctx, result.RefreshToken)
	assert.NoError(t, err)
}

func TestForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	token, err := svc.ForgotPassword(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestForgotPassword_RateLimitedPerEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registerUser(t, svc)

	for i := 0; i < 3; i++ {
		token, err := svc.ForgotPassword(ctx, "a@x.com")
		require.NoError(t, err, "request %d", i+1)
		require.NotEmpty(t, token)
	}

	_, err := svc.ForgotPassword(ctx, "a@x.com")
	assert.ErrorIs(t, err, ErrTooManyRequests)
}

func TestResetPassword_Flow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	token, err := svc.ForgotPassword(ctx, "a@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(ctx, token, "Bb2@bbbb"))

	// Old password no longer works, new one does.
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Aa1!aaaa", IPAddress: "10.0.0.1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Bb2@bbbb", IPAddress: "10.0.0.2"})
	assert.NoError(t, err)

	// Every refresh token issued before the reset is dead.
	_, err = svc.RefreshToken(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)

	// The reset token was consumed.
	err = svc.ResetPassword(ctx, token, "Cc3#cccc")
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}

func TestResetPassword_GarbageToken(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.ResetPassword(context.Background(), "no-such-token", "Bb2@bbbb")
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}

func TestVerifyEmail_SingleUse(t *testing.T) {
	svc, deps := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	token, tokenHash, err := security.GenerateOpaqueToken(32)
	require.NoError(t, err)
	require.NoError(t, deps.verifications.Create(ctx, models.EmailVerification{
		ID:        "ver-1",
		UserID:    registered.User.ID,
		Email:     registered.User.Email,
		TokenHash: tokenHash,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}))

	require.NoError(t, svc.VerifyEmail(ctx, token))

	err = svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	registered := registerUser(t, svc)

	err := svc.ChangePassword(ctx, registered.User.ID, "wrong-current", "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, registered.User.ID, "Aa1!aaaa", "Bb2@bbbb"))

	_, err = svc.Login(ctx, LoginInput{Email: "a@x.com", Password: "Bb2@bbbb", IPAddress: "10.0.0.1"})
	assert.NoError(t, err)

	// Outstanding refresh tokens were revoked with the password change.
	_, err = svc.RefreshToken(ctx, registered.RefreshToken)
	assert.ErrorIs(t, err, security.ErrTokenInvalid)
}

func TestChangePassword_UnknownUser(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.ChangePassword(context.Background(), "no-such-user", "x", "Bb2@bbbb")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestValidateToken_Expiry(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cfg := testConfig()
	cfg.Security.JWTAccessTTL = -time.Minute
	expired, err := security.IssueTokenPair(security.TokenConfig{
		Secret:     cfg.Security.JWTSecret,
		Issuer:     cfg.Security.JWTIssuer,
		Audience:   cfg.Security.JWTAudience,
		AccessTTL:  cfg.Security.JWTAccessTTL,
		RefreshTTL: cfg.Security.JWTRefreshTTL,
	}, "user-1", "a@x.com", "a")
	require.NoError(t, err)

	_, err = svc.ValidateToken(ctx, expired.AccessToken)
	assert.ErrorIs(t, err, security.ErrTokenExpired)
}
