package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrNotFound 本地条目不存在或已过期
var ErrNotFound = errors.New("local entry not found")

// BlobStore LocalStore 的底层存储：按 key 读写序列化后的会话、问卷和快照
// ttl 为 0 表示不过期
type BlobStore interface {
	ReadBlob(ctx context.Context, key string) ([]byte, error)
	WriteBlob(ctx context.Context, key string, blob []byte, ttl time.Duration) error
	DeleteBlobs(ctx context.Context, keys ...string) error
}

// RedisBlobStore Redis 实现
type RedisBlobStore struct {
	client *redis.Client
}

func NewRedisBlobStore(client *redis.Client) *RedisBlobStore {
	return &RedisBlobStore{client: client}
}

func (r *RedisBlobStore) ReadBlob(ctx context.Context, key string) ([]byte, error) {
	blob, err := r.client.Get(ctx, key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return blob, nil
}

func (r *RedisBlobStore) WriteBlob(ctx context.Context, key string, blob []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteBlobs 删除不存在的 key 不算错误
func (r *RedisBlobStore) DeleteBlobs(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}
