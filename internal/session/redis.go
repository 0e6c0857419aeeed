package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultKeyPrefix = "heartrisk:session:"

// RedisStore keeps snapshots as JSON strings that expire ttl after their
// last save or touch.
type RedisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Load(ctx context.Context, id string) (Snapshot, error) {
	val, err := s.client.Get(ctx, s.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return Snapshot{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("redis get %s: %w", s.key(id), err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.key(id), err)
	}
	return snap, nil
}

func (s *RedisStore) Save(ctx context.Context, id string, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key(id), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key(id), err)
	}
	return nil
}

func (s *RedisStore) Touch(ctx context.Context, id string) error {
	if s.ttl <= 0 {
		n, err := s.client.Exists(ctx, s.key(id)).Result()
		if err != nil {
			return fmt.Errorf("redis exists %s: %w", s.key(id), err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	}
	ok, err := s.client.Expire(ctx, s.key(id), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis expire %s: %w", s.key(id), err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", s.key(id), err)
	}
	return nil
}
