package services

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// NonceStore records one-time keys. Consume reports false when the key was
// already consumed; Release makes a consumed key usable again.
type NonceStore interface {
	Consume(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

type RedisNonceStore struct {
	Client *redis.Client
	Prefix string
}

func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{Client: client, Prefix: "sac:nonce:"}
}

func (s *RedisNonceStore) Consume(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Second
	}
	return s.Client.SetNX(ctx, s.Prefix+key, 1, ttl).Result()
}

func (s *RedisNonceStore) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.Prefix+key).Err()
}

// NewRedisClient returns a nil client when addr is empty; callers then run
// without single-use verification links.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
