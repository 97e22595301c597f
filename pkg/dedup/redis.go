package dedup

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore shares the processed-id window between engine instances, so a
// partition that moves to another instance keeps its history.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, cfg Config) *RedisStore {
	cfg = cfg.withDefaults()
	return &RedisStore{client: client, prefix: cfg.KeyPrefix, ttl: cfg.TTL}
}

func (s *RedisStore) key(messageID string) string {
	return s.prefix + messageID
}

func (s *RedisStore) Seen(ctx context.Context, messageID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(messageID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) Mark(ctx context.Context, messageID string) error {
	return s.client.Set(ctx, s.key(messageID), 1, s.ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
