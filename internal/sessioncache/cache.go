// Package sessioncache mirrors active sessions into Redis and keeps the
// access-token blacklist. The cache is a non-authoritative accelerator:
// losing an entry never breaks correctness except for the blacklist,
// which is load-bearing for immediate revocation and therefore fail-open
// rather than fail-closed when Redis is unreachable.
package sessioncache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	sessionKeyPrefix   = "session:user:"
	blacklistKeyPrefix = "blacklist:"
)

var ErrSessionNotCached = errors.New("session not cached")

type SessionData struct {
	SessionID    string    `json:"sessionId"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	UserAgent    string    `json:"userAgent"`
	CreatedAt    time.Time `json:"createdAt"`
}

type Cache struct {
	redis *redis.Client
	log   zerolog.Logger
}

func New(redisClient *redis.Client, log zerolog.Logger) *Cache {
	return &Cache{redis: redisClient, log: log}
}

func sessionKey(userID, sessionID string) string {
	return sessionKeyPrefix + userID + ":" + sessionID
}

func blacklistKey(tokenHash []byte) string {
	return blacklistKeyPrefix + hex.EncodeToString(tokenHash)
}

func (c *Cache) SetSession(ctx context.Context, data SessionData, ttl time.Duration) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := c.redis.Set(ctx, sessionKey(data.UserID, data.SessionID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

func (c *Cache) GetSession(ctx context.Context, userID, sessionID string) (SessionData, error) {
	payload, err := c.redis.Get(ctx, sessionKey(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return SessionData{}, ErrSessionNotCached
		}
		return SessionData{}, fmt.Errorf("get session: %w", err)
	}

	var data SessionData
	if err := json.Unmarshal(payload, &data); err != nil {
		return SessionData{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return data, nil
}

func (c *Cache) DeleteSession(ctx context.Context, userID, sessionID string) error {
	return c.redis.Del(ctx, sessionKey(userID, sessionID)).Err()
}

// DeleteUserSessions removes every cached session for the user by key
// pattern. Used by logout-everywhere and remote session kill.
func (c *Cache) DeleteUserSessions(ctx context.Context, userID string) error {
	pattern := sessionKeyPrefix + userID + ":*"

	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete sessions: %w", err)
	}
	return nil
}

func (c *Cache) ListUserSessions(ctx context.Context, userID string) ([]SessionData, error) {
	pattern := sessionKeyPrefix + userID + ":*"

	iter := c.redis.Scan(ctx, 0, pattern, 100).Iterator()
	var sessions []SessionData
	for iter.Next(ctx) {
		payload, err := c.redis.Get(ctx, iter.Val()).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("get session: %w", err)
		}
		var data SessionData
		if err := json.Unmarshal(payload, &data); err != nil {
			continue
		}
		sessions = append(sessions, data)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan sessions: %w", err)
	}
	return sessions, nil
}

// BlacklistToken marks a token hash revoked for the remaining lifetime of
// an access token; the entry expires no later than the token itself would.
func (c *Cache) BlacklistToken(ctx context.Context, tokenHash []byte, ttl time.Duration) error {
	if err := c.redis.Set(ctx, blacklistKey(tokenHash), "1", ttl).Err(); err != nil {
		return fmt.Errorf("blacklist token: %w", err)
	}
	return nil
}

// IsTokenBlacklisted is fail-open: a Redis error is treated as "not
// blacklisted" so a degraded cache never blocks all requests. The
// condition is logged distinctly so operators can see degraded mode.
func (c *Cache) IsTokenBlacklisted(ctx context.Context, tokenHash []byte) bool {
	count, err := c.redis.Exists(ctx, blacklistKey(tokenHash)).Result()
	if err != nil {
		c.log.Warn().Err(err).Msg("blacklist check degraded, failing open")
		return false
	}
	return count > 0
}
