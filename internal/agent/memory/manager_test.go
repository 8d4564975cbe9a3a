package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var testSessionConfig = model.SessionConfig{TTL: 30 * time.Minute, MaxMessages: 20}

func stores(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"in-memory": func(*testing.T) Store { return NewInMemoryStore() },
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = rdb.Close() })
			return NewRedisStore(rdb, 0)
		},
	}
}

func newTestManager(store Store) (*Manager, *clock) {
	m := NewManager(store, testSessionConfig)
	c := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m.now = c.Now
	return m, c
}

func userMsg(text string) model.ConversationMessage {
	return model.ConversationMessage{Role: model.RoleUser, Content: text}
}

func TestManager(t *testing.T) {
	t.Parallel()

	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			t.Run("locale is fixed at creation", func(t *testing.T) {
				m, _ := newTestManager(newStore(t))
				ctx := context.Background()

				s, err := m.GetOrCreateSession(ctx, "s1", "casa", model.LocaleAR)
				require.NoError(t, err)
				assert.Equal(t, model.LocaleAR, s.Locale)

				s, err = m.GetOrCreateSession(ctx, "s1", "casa", model.LocaleEN)
				require.NoError(t, err)
				assert.Equal(t, model.LocaleAR, s.Locale)
				assert.True(t, m.IsSessionValid(ctx, "s1"))
			})

			t.Run("cap keeps the newest messages", func(t *testing.T) {
				m, _ := newTestManager(newStore(t))
				ctx := context.Background()
				_, err := m.GetOrCreateSession(ctx, "s2", "casa", model.LocaleEN)
				require.NoError(t, err)

				for i := 0; i < 25; i++ {
					require.NoError(t, m.AppendTurn(ctx, "s2", userMsg(fmt.Sprintf("m%d", i))))
				}
				h, err := m.History(ctx, "s2")
				require.NoError(t, err)
				require.Len(t, h, 20)
				assert.Equal(t, "m5", h[0].Content)
				assert.Equal(t, "m24", h[19].Content)
			})

			t.Run("expired session starts fresh", func(t *testing.T) {
				m, c := newTestManager(newStore(t))
				ctx := context.Background()
				_, err := m.GetOrCreateSession(ctx, "s3", "casa", model.LocaleEN)
				require.NoError(t, err)
				require.NoError(t, m.AppendTurn(ctx, "s3", userMsg("hello")))

				c.Advance(31 * time.Minute)
				assert.False(t, m.IsSessionValid(ctx, "s3"))
				h, err := m.History(ctx, "s3")
				require.NoError(t, err)
				assert.Empty(t, h)
				assert.ErrorIs(t, m.AppendTurn(ctx, "s3", userMsg("late")), ErrSessionNotFound)

				s, err := m.GetOrCreateSession(ctx, "s3", "casa", model.LocaleAR)
				require.NoError(t, err)
				assert.Empty(t, s.Messages)
				assert.Equal(t, model.LocaleAR, s.Locale)
			})

			t.Run("update applies messages and metadata together", func(t *testing.T) {
				m, _ := newTestManager(newStore(t))
				ctx := context.Background()

				got, err := m.Update(ctx, "s4", "casa", model.LocaleEN, func(_ context.Context, s *model.SessionMemory) (*TurnUpdate, error) {
					assert.Empty(t, s.Messages)
					return &TurnUpdate{
						Messages: []model.ConversationMessage{
							userMsg("I want a sofa"),
							{Role: model.RoleAssistant, Content: "Here are 3 sofas", Intent: model.IntentSearch},
						},
						Metadata: map[string]string{model.MetaLastIntent: string(model.IntentSearch)},
					}, nil
				})
				require.NoError(t, err)
				assert.Len(t, got.Messages, 2)
				assert.Equal(t, "search", got.Metadata[model.MetaLastIntent])
				assert.Equal(t, "2", got.Metadata[model.MetaMessageCount])
				assert.False(t, got.Messages[0].Timestamp.IsZero())

				h, err := m.History(ctx, "s4")
				require.NoError(t, err)
				assert.Len(t, h, 2)
			})

			t.Run("failed update saves nothing", func(t *testing.T) {
				m, _ := newTestManager(newStore(t))
				ctx := context.Background()
				boom := errors.New("boom")

				_, err := m.Update(ctx, "s5", "casa", model.LocaleEN, func(context.Context, *model.SessionMemory) (*TurnUpdate, error) {
					return nil, boom
				})
				assert.ErrorIs(t, err, boom)
				assert.False(t, m.IsSessionValid(ctx, "s5"))

				cctx, cancel := context.WithCancel(ctx)
				_, err = m.Update(cctx, "s5", "casa", model.LocaleEN, func(context.Context, *model.SessionMemory) (*TurnUpdate, error) {
					cancel()
					return &TurnUpdate{Messages: []model.ConversationMessage{userMsg("lost")}}, nil
				})
				assert.ErrorIs(t, err, context.Canceled)
				h, err := m.History(ctx, "s5")
				require.NoError(t, err)
				assert.Empty(t, h)
			})

			t.Run("clear and stats", func(t *testing.T) {
				m, c := newTestManager(newStore(t))
				ctx := context.Background()
				for i, demo := range []string{"casa", "casa", "cafe"} {
					_, err := m.GetOrCreateSession(ctx, fmt.Sprintf("st-%d", i), demo, model.LocaleEN)
					require.NoError(t, err)
					c.Advance(time.Minute)
				}

				st, err := m.Stats(ctx)
				require.NoError(t, err)
				assert.Equal(t, 3, st.Total)
				assert.Equal(t, 2, st.ByDemo["casa"])
				assert.Equal(t, "st-0", st.OldestID)

				require.NoError(t, m.ClearSession(ctx, "st-0"))
				st, err = m.Stats(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, st.Total)
				assert.Equal(t, "st-1", st.OldestID)

				c.Advance(time.Hour)
				n, err := m.Sweep(ctx)
				require.NoError(t, err)
				assert.Equal(t, 2, n)
				st, err = m.Stats(ctx)
				require.NoError(t, err)
				assert.Zero(t, st.Total)
			})
		})
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	t.Parallel()

	m := NewManager(NewInMemoryStore(), model.SessionConfig{TTL: time.Hour, MaxMessages: 200})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.Update(ctx, "shared", "casa", model.LocaleEN, func(_ context.Context, s *model.SessionMemory) (*TurnUpdate, error) {
				return &TurnUpdate{
					Messages: []model.ConversationMessage{
						userMsg(fmt.Sprintf("q%d", i)),
						{Role: model.RoleAssistant, Content: fmt.Sprintf("a%d", i)},
					},
				}, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	h, err := m.History(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, h, 100)
	// each turn's pair stays adjacent
	for i := 0; i < len(h); i += 2 {
		assert.Equal(t, model.RoleUser, h[i].Role)
		assert.Equal(t, "a"+h[i].Content[1:], h[i+1].Content)
	}
	assert.Empty(t, m.locks)
}
