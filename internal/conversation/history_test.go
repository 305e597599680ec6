package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/zapleads/engage-platform/internal/crm"
)

func historyFixture(t *testing.T) (*HistoryCache, *crm.MemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	store := crm.NewMemoryStore()
	return NewHistoryCache(rdb, store, time.Hour, nil), store, mr
}

func seedMessages(t *testing.T, store *crm.MemoryStore, convID string, n int) {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		require.NoError(t, store.CreateMessage(context.Background(), &crm.Message{
			ConversationID: convID,
			LeadID:         "lead-1",
			SenderType:     crm.SenderLead,
			Direction:      crm.DirectionInbound,
			Content:        "msg",
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
		}))
	}
}

func TestHistoryCacheReadThrough(t *testing.T) {
	cache, store, mr := historyFixture(t)
	seedMessages(t, store, "conv-1", 3)

	history, err := cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.True(t, mr.Exists("history:conv-1"), "miss must populate the cache")

	// A second read is served from redis even if the log grows underneath.
	seedMessages(t, store, "conv-1", 1)
	history, err = cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestHistoryCacheInvalidate(t *testing.T) {
	cache, store, mr := historyFixture(t)
	seedMessages(t, store, "conv-1", 2)

	_, err := cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.True(t, mr.Exists("history:conv-1"))

	cache.Invalidate(context.Background(), "conv-1")
	require.False(t, mr.Exists("history:conv-1"))

	seedMessages(t, store, "conv-1", 1)
	history, err := cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 3)
}

func TestHistoryCacheLimit(t *testing.T) {
	cache, store, _ := historyFixture(t)
	seedMessages(t, store, "conv-1", 60)

	history, err := cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 50)
	require.True(t, history[0].CreatedAt.Before(history[49].CreatedAt), "oldest first")
}

func TestHistoryCacheWithoutRedis(t *testing.T) {
	store := crm.NewMemoryStore()
	cache := NewHistoryCache(nil, store, time.Hour, nil)
	seedMessages(t, store, "conv-1", 2)

	history, err := cache.Recent(context.Background(), "conv-1", 50)
	require.NoError(t, err)
	require.Len(t, history, 2)
	cache.Invalidate(context.Background(), "conv-1")
}
