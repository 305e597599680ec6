package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/zapleads/engage-platform/internal/crm"
)

const defaultHistoryTTL = 24 * time.Hour

// HistoryCache is a redis read-through cache over the Postgres message log.
// Prompt building reads recent history on every inbound message; the cache
// keeps that off the primary. A nil redis client degrades to direct reads.
type HistoryCache struct {
	redis    *redis.Client
	messages crm.MessageRepository
	ttl      time.Duration
	tracer   trace.Tracer
}

func NewHistoryCache(rdb *redis.Client, messages crm.MessageRepository, ttl time.Duration, tracer trace.Tracer) *HistoryCache {
	if messages == nil {
		panic("conversation: message repository required")
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("engage.internal.conversation.history")
	}
	return &HistoryCache{redis: rdb, messages: messages, ttl: ttl, tracer: tracer}
}

// Recent returns up to limit messages of the conversation, oldest first.
func (c *HistoryCache) Recent(ctx context.Context, conversationID string, limit int) ([]crm.Message, error) {
	ctx, span := c.tracer.Start(ctx, "conversation.load_history")
	defer span.End()

	if c.redis != nil {
		data, err := c.redis.Get(ctx, historyKey(conversationID)).Bytes()
		if err == nil {
			var history []crm.Message
			if err := json.Unmarshal(data, &history); err == nil {
				if len(history) > limit {
					history = history[len(history)-limit:]
				}
				return history, nil
			}
			// Corrupt entry. Fall through to the message log.
		} else if err != redis.Nil {
			span.RecordError(err)
		}
	}

	history, err := c.messages.RecentMessages(ctx, conversationID, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load history: %w", err)
	}
	if c.redis != nil {
		if data, err := json.Marshal(history); err == nil {
			if err := c.redis.Set(ctx, historyKey(conversationID), data, c.ttl).Err(); err != nil {
				span.RecordError(err)
			}
		}
	}
	return history, nil
}

// Invalidate drops the cached history after new messages are persisted.
func (c *HistoryCache) Invalidate(ctx context.Context, conversationID string) {
	if c.redis == nil {
		return
	}
	ctx, span := c.tracer.Start(ctx, "conversation.invalidate_history")
	defer span.End()
	if err := c.redis.Del(ctx, historyKey(conversationID)).Err(); err != nil && err != redis.Nil {
		span.RecordError(err)
	}
}

func historyKey(id string) string {
	return fmt.Sprintf("history:%s", id)
}
