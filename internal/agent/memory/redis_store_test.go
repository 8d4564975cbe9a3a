package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
	errx "github.com/vtour-agent-core/server/internal/core/error"
)

func TestRedisStoreKeysAndTTL(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, 30*time.Minute)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sess := &model.SessionMemory{
		ID:     "abc",
		DemoID: "casa",
		Locale: model.LocaleAR,
		Messages: []model.ConversationMessage{
			{Role: model.RoleUser, Content: "مرحبا", Timestamp: now},
			{Role: model.RoleAssistant, Content: "أهلاً", Timestamp: now, Intent: model.IntentGreeting},
		},
		StartedAt:    now,
		LastActivity: now,
		Metadata:     map[string]string{model.MetaLeadCaptured: "true"},
	}
	require.NoError(t, store.Save(ctx, sess))

	assert.True(t, mr.Exists("session:abc:meta"))
	assert.True(t, mr.Exists("session:abc:messages"))
	assert.Equal(t, 30*time.Minute, mr.TTL("session:abc:meta"))
	assert.Equal(t, 30*time.Minute, mr.TTL("session:abc:messages"))

	got, err := store.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, model.LocaleAR, got.Locale)
	assert.True(t, got.LeadCaptured())
	require.Len(t, got.Messages, 2)
	assert.Equal(t, model.IntentGreeting, got.Messages[1].Intent)

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "abc", list[0].ID)

	mr.FastForward(31 * time.Minute)
	_, err = store.Get(ctx, "abc")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisStoreShrinksMessageList(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, 0)
	ctx := context.Background()

	sess := &model.SessionMemory{ID: "x", Messages: []model.ConversationMessage{
		{Role: model.RoleUser, Content: "one"},
		{Role: model.RoleUser, Content: "two"},
	}}
	require.NoError(t, store.Save(ctx, sess))
	sess.Messages = sess.Messages[1:]
	require.NoError(t, store.Save(ctx, sess))

	got, err := store.Get(ctx, "x")
	require.NoError(t, err)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "two", got.Messages[0].Content)

	require.NoError(t, store.Delete(ctx, "x"))
	assert.False(t, mr.Exists("session:x:meta"))
}

func TestRedisStoreFailureIsWrapped(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	store := NewRedisStore(rdb, 0)

	mr.SetError("ERR server unavailable")
	_, err := store.Get(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, 502, errx.StatusOf(err))
}
