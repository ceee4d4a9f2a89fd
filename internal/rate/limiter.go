// Package rate implements the fixed-window rate limiter and the
// failed-login lockout tracker over Redis. Both are fail-open: if Redis
// is unreachable the check passes and the condition is logged, favoring
// availability over strict enforcement.
package rate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type LimiterConfig struct {
	Window      time.Duration
	MaxAttempts int
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
}

type window struct {
	Attempts    int       `json:"attempts"`
	WindowStart time.Time `json:"windowStart"`
}

// Limiter counts attempts per (action, identifier) pair in discrete fixed
// windows. A burst exactly at the window boundary resets the counter;
// that is intentional fixed-window behavior, not smoothing.
type Limiter struct {
	redis  *redis.Client
	action string
	config LimiterConfig
	log    zerolog.Logger

	now func() time.Time
}

func NewLimiter(redisClient *redis.Client, action string, cfg LimiterConfig, log zerolog.Logger) *Limiter {
	return &Limiter{
		redis:  redisClient,
		action: action,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

func (l *Limiter) key(identifier string) string {
	return "ratelimit:" + l.action + ":" + identifier
}

// Check records one attempt for the identifier and reports whether it is
// within budget. Redis unavailability yields an allowed result.
func (l *Limiter) Check(ctx context.Context, identifier string) Result {
	key := l.key(identifier)
	now := l.now()

	payload, err := l.redis.Get(ctx, key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		l.log.Warn().Err(err).Str("action", l.action).Msg("rate limiter degraded, failing open")
		return Result{Allowed: true, Remaining: l.config.MaxAttempts - 1}
	}

	var win window
	if err == nil {
		if err := json.Unmarshal(payload, &win); err != nil {
			win = window{}
		}
	}

	if win.WindowStart.IsZero() || now.After(win.WindowStart.Add(l.config.Window)) {
		win = window{Attempts: 1, WindowStart: now}
		l.store(ctx, key, win)
		return Result{
			Allowed:   true,
			Remaining: l.config.MaxAttempts - 1,
			ResetTime: win.WindowStart.Add(l.config.Window),
		}
	}

	resetTime := win.WindowStart.Add(l.config.Window)
	if win.Attempts >= l.config.MaxAttempts {
		return Result{Allowed: false, Remaining: 0, ResetTime: resetTime}
	}

	win.Attempts++
	l.store(ctx, key, win)
	return Result{
		Allowed:   true,
		Remaining: l.config.MaxAttempts - win.Attempts,
		ResetTime: resetTime,
	}
}

func (l *Limiter) store(ctx context.Context, key string, win window) {
	payload, err := json.Marshal(win)
	if err != nil {
		return
	}
	if err := l.redis.Set(ctx, key, payload, l.config.Window).Err(); err != nil {
		l.log.Warn().Err(err).Str("action", l.action).Msg("rate limiter write failed")
	}
}
