package rate

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

type FailureState struct {
	Attempts     int
	IsLocked     bool
	LockoutUntil time.Time
}

type failureCounter struct {
	Attempts    int       `json:"attempts"`
	LastAttempt time.Time `json:"lastAttempt"`
}

type lockoutRecord struct {
	LockoutUntil time.Time `json:"lockoutUntil"`
}

// LockoutTracker counts consecutive failed logins per user and escalates
// to a timed account lockout at the configured threshold. Counters go
// stale after the lockout duration.
type LockoutTracker struct {
	redis  *redis.Client
	config LockoutConfig
	log    zerolog.Logger

	now func() time.Time
}

func NewLockoutTracker(redisClient *redis.Client, cfg LockoutConfig, log zerolog.Logger) *LockoutTracker {
	return &LockoutTracker{
		redis:  redisClient,
		config: cfg,
		log:    log,
		now:    time.Now,
	}
}

func failedKey(userID string) string {
	return "failed:" + userID
}

func lockoutKey(userID string) string {
	return "lockout:" + userID
}

// RecordFailure increments the failure counter and reports whether the
// account just crossed the lockout threshold. Fail-open on Redis errors.
func (t *LockoutTracker) RecordFailure(ctx context.Context, userID string) FailureState {
	now := t.now()

	var counter failureCounter
	payload, err := t.redis.Get(ctx, failedKey(userID)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		t.log.Warn().Err(err).Msg("lockout tracker degraded, failing open")
		return FailureState{Attempts: 1}
	}
	if err == nil {
		if err := json.Unmarshal(payload, &counter); err != nil {
			counter = failureCounter{}
		}
	}

	// Stale counter: last failure older than the lockout duration.
	if counter.LastAttempt.IsZero() || now.Sub(counter.LastAttempt) > t.config.Duration {
		counter = failureCounter{}
	}

	counter.Attempts++
	counter.LastAttempt = now
	t.setJSON(ctx, failedKey(userID), counter, t.config.Duration)

	state := FailureState{Attempts: counter.Attempts}
	if counter.Attempts >= t.config.Threshold {
		state.IsLocked = true
		state.LockoutUntil = now.Add(t.config.Duration)
		t.setJSON(ctx, lockoutKey(userID), lockoutRecord{LockoutUntil: state.LockoutUntil}, t.config.Duration)
	}
	return state
}

// IsLocked reports whether a lockout record holds a future lockoutUntil.
// Fail-open on Redis errors.
func (t *LockoutTracker) IsLocked(ctx context.Context, userID string) bool {
	payload, err := t.redis.Get(ctx, lockoutKey(userID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.log.Warn().Err(err).Msg("lockout check degraded, failing open")
		}
		return false
	}

	var record lockoutRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return false
	}
	return t.now().Before(record.LockoutUntil)
}

// Clear removes the failure counter and any lockout record. Called on
// every successful login and on password reset or change.
func (t *LockoutTracker) Clear(ctx context.Context, userID string) {
	if err := t.redis.Del(ctx, failedKey(userID), lockoutKey(userID)).Err(); err != nil {
		t.log.Warn().Err(err).Msg("lockout clear failed")
	}
}

func (t *LockoutTracker) setJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := t.redis.Set(ctx, key, payload, ttl).Err(); err != nil {
		t.log.Warn().Err(err).Msg("lockout tracker write failed")
	}
}
