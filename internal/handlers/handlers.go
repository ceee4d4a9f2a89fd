package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"connecthub/auth/internal/config"
	"connecthub/auth/internal/events"
	"connecthub/auth/internal/middleware"
	"connecthub/auth/internal/models"
	"connecthub/auth/internal/rate"
	"connecthub/auth/internal/repository"
	"connecthub/auth/internal/service"
	"connecthub/auth/internal/sessioncache"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	authService  *service.AuthService
	db           *pgxpool.Pool
	cache        *redis.Client
	users        *repository.UserRepository
	sessions     *repository.SessionRepository
	sessionCache *sessioncache.Cache
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, cache *redis.Client, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	refreshRepo := repository.NewRefreshTokenRepository(db)
	resetRepo := repository.NewPasswordResetRepository(db)
	verificationRepo := repository.NewEmailVerificationRepository(db)

	sessionCache := sessioncache.New(cache, log)
	loginLimiter := rate.NewLimiter(cache, service.RateActionLogin, rate.LimiterConfig{
		Window:      cfg.RateLimit.LoginWindow,
		MaxAttempts: cfg.RateLimit.LoginMax,
	}, log)
	resetLimiter := rate.NewLimiter(cache, service.RateActionPasswordReset, rate.LimiterConfig{
		Window:      cfg.RateLimit.ResetWindow,
		MaxAttempts: cfg.RateLimit.ResetMax,
	}, log)
	lockouts := rate.NewLockoutTracker(cache, rate.LockoutConfig{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	}, log)
	publisher := events.NewPublisher(cache, log)

	auth := service.NewAuthService(
		userRepo, sessionRepo, refreshRepo, resetRepo, verificationRepo,
		sessionCache, loginLimiter, resetLimiter, lockouts, publisher,
		cfg, log,
	)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		authService:  auth,
		db:           db,
		cache:        cache,
		users:        userRepo,
		sessions:     sessionRepo,
		sessionCache: sessionCache,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		auth.POST("/register", h.RegisterUser)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.Refresh)
		auth.POST("/logout", h.Logout)
		auth.POST("/forgot-password", h.ForgotPassword)
		auth.POST("/reset-password", h.ResetPassword)
		auth.POST("/verify-email", h.VerifyEmail)

		protected := v1.Group("/auth")
		protected.Use(middleware.Auth(h.authService, h.users))
		protected.GET("/me", h.Me)
		protected.POST("/change-password", h.ChangePassword)
		protected.GET("/sessions", h.ListSessions)

		admin := v1.Group("/admin")
		admin.Use(
			middleware.Auth(h.authService, h.users),
			middleware.RequireRoles(models.UserRoleAdmin),
		)
		admin.GET("/users/:userId/sessions", h.AdminListSessions)
		admin.DELETE("/users/:userId/sessions", h.AdminRevokeSessions)
	}
}
