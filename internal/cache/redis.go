package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "gamebrowser:scan:v2:"

// RedisStore keeps scan results in redis with an expiry.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis connects using a redis:// URL. ttl <= 0 keeps entries forever.
func OpenRedis(url string, ttl time.Duration) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opt), ttl), nil
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) (Entry, bool, error) {
	b, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	out, err := decode(b)
	if err != nil {
		return Entry{}, false, err
	}
	return out, true, nil
}

func (s *RedisStore) Save(ctx context.Context, key string, entry Entry) error {
	b, err := encode(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, redisKeyPrefix+key, b, s.ttl).Err()
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
