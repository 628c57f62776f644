package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

const (
	// KeyPrefixCache prefixes every cache key
	KeyPrefixCache = "stacklink:offline:"
)

// bucketsKey is the set of known bucket names.
func bucketsKey() string {
	return KeyPrefixCache + "buckets"
}

// bucketKey is the hash holding one bucket's entries, field = cache key.
func bucketKey(bucket string) string {
	return KeyPrefixCache + "bucket:" + bucket
}

// RedisStorage keeps buckets in Redis so several instances share one cache.
type RedisStorage struct {
	client *redis.Client
}

func NewRedisStorage(client *redis.Client) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Open(ctx context.Context, bucket string) error {
	if err := s.client.SAdd(ctx, bucketsKey(), bucket).Err(); err != nil {
		return fmt.Errorf("failed to open bucket: %w", err)
	}
	return nil
}

func (s *RedisStorage) Buckets(ctx context.Context) ([]string, error) {
	names, err := s.client.SMembers(ctx, bucketsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

func (s *RedisStorage) Delete(ctx context.Context, bucket string) (bool, error) {
	pipe := s.client.TxPipeline()
	removed := pipe.SRem(ctx, bucketsKey(), bucket)
	pipe.Del(ctx, bucketKey(bucket))
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete bucket: %w", err)
	}
	return removed.Val() > 0, nil
}

func (s *RedisStorage) Get(ctx context.Context, bucket, key string) (*Entry, error) {
	data, err := s.client.HGet(ctx, bucketKey(bucket), key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotCached
		}
		return nil, fmt.Errorf("failed to get cache entry: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}
	return &e, nil
}

// Put stores e and registers bucket in the same transaction.
func (s *RedisStorage) Put(ctx context.Context, bucket, key string, e *Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, bucketsKey(), bucket)
	pipe.HSet(ctx, bucketKey(bucket), key, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to put cache entry: %w", err)
	}
	return nil
}
