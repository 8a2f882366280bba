package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Civiq-core-poc-v1/server/internal/assistant/model"
	errx "github.com/Civiq-core-poc-v1/server/internal/core/error"
	logx "github.com/Civiq-core-poc-v1/server/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisStore persists each session as one JSON document with a TTL that is
// extended on every access, so Redis expiry doubles as the idle eviction and
// Sweep is a no-op. A per-id single writer is still assumed; concurrent
// writers from multiple processes would need WATCH/MULTI or a lease.
type RedisStore struct {
	rdb  redis.Cmdable
	opts Options
	now  func() time.Time
}

// NewRedisStore wraps a Redis client as a session store.
func NewRedisStore(rdb redis.Cmdable, opts Options) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts, now: time.Now}
}

func (r *RedisStore) sessionKey(id string) string {
	return fmt.Sprintf("session:%s:state", id)
}

func (r *RedisStore) load(ctx context.Context, id string) (*model.SessionContext, error) {
	raw, err := r.rdb.Get(ctx, r.sessionKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			now := r.now()
			return &model.SessionContext{ID: id, CreatedAt: now, LastAccessedAt: now}, nil
		}
		logx.Error().Err(err).Str("session_id", id).Msg("failed to load session from redis")
		return nil, errx.WrapRedis(err)
	}
	var sess model.SessionContext
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session %s: %w", id, err)
	}
	return &sess, nil
}

func (r *RedisStore) save(ctx context.Context, sess *model.SessionContext) error {
	sess.LastAccessedAt = r.now()
	b, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session %s: %w", sess.ID, err)
	}
	key := r.sessionKey(sess.ID)
	if err := r.rdb.Set(ctx, key, b, r.opts.IdleTTL).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save session to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisStore) mutate(ctx context.Context, id string, fn func(*model.SessionContext)) error {
	sess, err := r.load(ctx, id)
	if err != nil {
		return err
	}
	fn(sess)
	return r.save(ctx, sess)
}

func (r *RedisStore) GetOrCreate(ctx context.Context, id string) (*model.SessionContext, error) {
	sess, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (r *RedisStore) Touch(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(*model.SessionContext) {})
}

func (r *RedisStore) RecordTurn(ctx context.Context, id string, turn model.ConversationTurn) error {
	return r.mutate(ctx, id, func(sess *model.SessionContext) {
		sess.History = append(sess.History, turn)
		if max := r.opts.MaxTurns; max > 0 && len(sess.History) > max {
			sess.History = sess.History[len(sess.History)-max:]
		}
	})
}

func (r *RedisStore) SetEntity(ctx context.Context, id string, entity *model.EntityContext) error {
	return r.mutate(ctx, id, func(sess *model.SessionContext) {
		if entity != nil && entity.Timestamp.IsZero() {
			e := *entity
			e.Timestamp = r.now()
			entity = &e
		}
		sess.Entity = entity
	})
}

func (r *RedisStore) ValidEntity(ctx context.Context, id string) (*model.EntityContext, error) {
	sess, err := r.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sess.Entity == nil || sess.Entity.StaleAt(r.now(), r.opts.EntityTTL) {
		return nil, nil
	}
	return sess.Entity, nil
}

func (r *RedisStore) MarkPendingClarification(ctx context.Context, id string, topic string) error {
	return r.mutate(ctx, id, func(sess *model.SessionContext) {
		sess.PendingTopic = topic
	})
}

func (r *RedisStore) ClearPendingClarification(ctx context.Context, id string) error {
	return r.mutate(ctx, id, func(sess *model.SessionContext) {
		sess.PendingTopic = ""
	})
}

func (r *RedisStore) Snapshot(ctx context.Context, id string) (model.SessionSnapshot, error) {
	sess, err := r.GetOrCreate(ctx, id)
	if err != nil {
		return model.SessionSnapshot{}, err
	}
	snap := model.SessionSnapshot{ID: id, History: sess.History, PendingTopic: sess.PendingTopic}
	if sess.Entity != nil && !sess.Entity.StaleAt(r.now(), r.opts.EntityTTL) {
		snap.Entity = sess.Entity
	}
	return snap, nil
}

// Sweep is satisfied by Redis key expiry; nothing to do here.
func (r *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}

var _ Store = (*RedisStore)(nil)
