// internal/infrastructure/database/redis/local_store.go
package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/commerce-session/internal/domain/persistence"
)

// LocalStore is the device cache tier backed by Redis
type LocalStore struct {
	client *Client
	ttl    time.Duration
}

// NewLocalStore creates a device cache; blobs expire ttl after their last write
func NewLocalStore(client *Client, ttl time.Duration) *LocalStore {
	return &LocalStore{client: client, ttl: ttl}
}

// Get returns the raw blob, or persistence.ErrMiss when none is stored
func (s *LocalStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, persistence.ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores the blob and refreshes its expiry
func (s *LocalStore) Set(ctx context.Context, key string, data []byte) error {
	return s.client.Redis.Set(ctx, key, data, s.ttl).Err()
}

// Delete removes the blob
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	return s.client.Redis.Del(ctx, key).Err()
}
