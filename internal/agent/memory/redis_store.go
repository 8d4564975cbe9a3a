package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"github.com/vtour-agent-core/server/internal/agent/model"
	errx "github.com/vtour-agent-core/server/internal/core/error"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const sessionKeyPrefix = "session:"

// RedisStore keeps each session as a JSON header key plus a message list.
// Both keys carry the session TTL so idle sessions expire inside Redis too.
type RedisStore struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisStore(rdb redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (r *RedisStore) metaKey(id string) string {
	return fmt.Sprintf("%s%s:meta", sessionKeyPrefix, id)
}

func (r *RedisStore) messagesKey(id string) string {
	return fmt.Sprintf("%s%s:messages", sessionKeyPrefix, id)
}

func (r *RedisStore) Get(ctx context.Context, id string) (*model.SessionMemory, error) {
	sess, err := r.header(ctx, r.metaKey(id))
	if err != nil {
		return nil, err
	}

	key := r.messagesKey(id)
	rows, err := r.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		logx.Error().Err(err).Str("key", key).Msg("failed to load session messages from redis")
		return nil, errx.WrapRedis(err)
	}
	sess.Messages = make([]model.ConversationMessage, 0, len(rows))
	for i, row := range rows {
		var m model.ConversationMessage
		if err := sonic.UnmarshalString(row, &m); err != nil {
			logx.Error().Err(err).Str("sessionID", id).Int("index", i).Msg("failed to unmarshal session message")
			return nil, fmt.Errorf("unmarshal message at index %d: %w", i, err)
		}
		sess.Messages = append(sess.Messages, m)
	}
	return sess, nil
}

func (r *RedisStore) header(ctx context.Context, key string) (*model.SessionMemory, error) {
	raw, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}
	var sess model.SessionMemory
	if err := sonic.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", key, err)
	}
	if sess.Metadata == nil {
		sess.Metadata = map[string]string{}
	}
	return &sess, nil
}

// Save rewrites header and messages in one MULTI/EXEC so readers never see
// a half-written turn.
func (r *RedisStore) Save(ctx context.Context, sess *model.SessionMemory) error {
	header := *sess
	header.Messages = nil
	b, err := sonic.Marshal(&header)
	if err != nil {
		logx.Error().Err(err).Str("sessionID", sess.ID).Msg("failed to marshal session")
		return fmt.Errorf("marshal session: %w", err)
	}
	rows := make([]any, 0, len(sess.Messages))
	for _, m := range sess.Messages {
		row, err := sonic.MarshalString(m)
		if err != nil {
			return fmt.Errorf("marshal message: %w", err)
		}
		rows = append(rows, row)
	}

	metaKey, msgKey := r.metaKey(sess.ID), r.messagesKey(sess.ID)
	_, err = r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, metaKey, b, r.ttl)
		p.Del(ctx, msgKey)
		if len(rows) > 0 {
			p.RPush(ctx, msgKey, rows...)
			if r.ttl > 0 {
				p.Expire(ctx, msgKey, r.ttl)
			}
		}
		return nil
	})
	if err != nil {
		logx.Error().Err(err).Str("key", metaKey).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	if err := r.rdb.Del(ctx, r.metaKey(id), r.messagesKey(id)).Err(); err != nil {
		logx.Error().Err(err).Str("sessionID", id).Msg("failed to delete session from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

// List scans session headers only.
func (r *RedisStore) List(ctx context.Context) ([]*model.SessionMemory, error) {
	var out []*model.SessionMemory
	iter := r.rdb.Scan(ctx, 0, sessionKeyPrefix+"*:meta", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		sess, err := r.header(ctx, key)
		if errors.Is(err, ErrSessionNotFound) {
			continue // expired between SCAN and GET
		}
		if err != nil {
			return nil, err
		}
		if sess.ID == "" {
			sess.ID = strings.TrimSuffix(strings.TrimPrefix(key, sessionKeyPrefix), ":meta")
		}
		out = append(out, sess)
	}
	if err := iter.Err(); err != nil {
		logx.Error().Err(err).Msg("failed to scan sessions in redis")
		return nil, errx.WrapRedis(err)
	}
	return out, nil
}

var _ Store = (*RedisStore)(nil)
