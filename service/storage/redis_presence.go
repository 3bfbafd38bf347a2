package storage

import (
	"context"
	"time"

	"github.com/pkg/errors"
	rediscli "github.com/redis/go-redis/v9"
)

// RedisPresence mirrors the in-process presence registry onto Redis so the
// identity→connection binding survives a move to multiple gateway nodes. It
// satisfies the chat.Presence interface.
type RedisPresence struct {
	rdb *rediscli.Client
	ttl time.Duration
}

func NewRedisPresence(rdb *rediscli.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisPresence{rdb: rdb, ttl: ttl}
}

// presence key: privchat:presence:<identity>; value is the connection ID.
func presenceKey(key string) string { return "privchat:presence:" + key }

func (p *RedisPresence) Bind(key, connID string) {
	if key == "" || connID == "" {
		return
	}
	_ = p.rdb.Set(context.Background(), presenceKey(key), connID, p.ttl).Err()
}

// Unbind deletes the entry only while it still points at connID, so a
// reconnect racing a stale disconnect does not wipe the fresh binding.
func (p *RedisPresence) Unbind(key, connID string) {
	if key == "" {
		return
	}
	ctx := context.Background()
	val, err := p.rdb.Get(ctx, presenceKey(key)).Result()
	if err != nil {
		return
	}
	if connID == "" || val == connID {
		_ = p.rdb.Del(ctx, presenceKey(key)).Err()
	}
}

func (p *RedisPresence) Lookup(key string) (string, bool) {
	val, err := p.rdb.Get(context.Background(), presenceKey(key)).Result()
	if errors.Is(err, rediscli.Nil) {
		return "", false
	}
	if err != nil {
		return "", false
	}
	return val, true
}
