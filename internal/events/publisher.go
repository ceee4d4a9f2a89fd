// Package events publishes security-relevant auth events to a Redis
// stream for downstream consumers (audit, notification dispatch).
// Publishing is fire-and-forget: a broker failure is logged, never
// surfaced to the auth flow.
package events

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const stream = "auth:events"

const (
	TypeUserRegistered = "user.registered"
	TypeLoginSucceeded = "login.succeeded"
	TypeAccountLocked  = "account.locked"
	TypePasswordReset  = "password.reset"
)

type Publisher struct {
	queue *redis.Client
	log   zerolog.Logger
}

func NewPublisher(queue *redis.Client, log zerolog.Logger) *Publisher {
	return &Publisher{queue: queue, log: log}
}

func (p *Publisher) Publish(ctx context.Context, eventType string, userID string) {
	if p == nil || p.queue == nil {
		return
	}

	_, err := p.queue.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"type":    eventType,
			"user_id": userID,
		},
	}).Result()
	if err != nil {
		p.log.Error().Err(err).Str("type", eventType).Msg("publish auth event failed")
	}
}
