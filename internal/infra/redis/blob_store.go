package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// BlobStore keeps documents as plain Redis strings under a key prefix:
//
//	SET mcq:blob:{key} {json}
//
// Blobs never expire; the leaderboard and question bank are durable data.
type BlobStore struct {
	client *redis.Client
	prefix string
}

func NewBlobStore(client *redis.Client, prefix string) *BlobStore {
	if prefix == "" {
		prefix = "mcq:blob:"
	}
	return &BlobStore{client: client, prefix: prefix}
}

func (s *BlobStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, true, nil
}

func (s *BlobStore) Set(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *BlobStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
