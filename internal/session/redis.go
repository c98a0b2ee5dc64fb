// internal/session/redis.go
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis hash holding the session.
var DefaultKey = "dicebet:session"

// RedisStore keeps the session in a Redis hash so several client processes
// on one machine share a login.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// NewRedisStore wraps an existing client. An empty key uses DefaultKey; a zero ttl never expires.
func NewRedisStore(rdb *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{rdb: rdb, key: key, ttl: ttl}
}

// ConnectRedis dials addr/db and pings it with a 5s timeout.
func ConnectRedis(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *RedisStore) Save(ctx context.Context, s Session) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, "token", s.Token, "username", s.Username)
		if r.ttl > 0 {
			pipe.Expire(ctx, r.key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session to '%s': %w", r.key, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context) (Session, error) {
	vals, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to load session from '%s': %w", r.key, err)
	}
	// A missing key comes back as an empty hash.
	if vals["token"] == "" {
		return Session{}, ErrNoSession
	}
	return Session{Token: vals["token"], Username: vals["username"]}, nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("failed to clear session '%s': %w", r.key, err)
	}
	return nil
}
