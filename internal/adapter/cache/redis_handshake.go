package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
)

const handshakePrefix = "auth:handshake:"

// RedisHandshakeStore persists pending OAuth handshakes with TTL.
type RedisHandshakeStore struct {
	client redis.UniversalClient
}

var _ repository.HandshakeStore = (*RedisHandshakeStore)(nil)

// NewRedisHandshakeStore constructs a Redis-backed handshake store.
func NewRedisHandshakeStore(client redis.UniversalClient) *RedisHandshakeStore {
	return &RedisHandshakeStore{client: client}
}

func (s *RedisHandshakeStore) Put(ctx context.Context, id string, hs domain.Handshake, ttl time.Duration) error {
	payload, err := json.Marshal(hs)
	if err != nil {
		return fmt.Errorf("marshal handshake: %w", err)
	}
	if err := s.client.Set(ctx, handshakePrefix+id, payload, ttl).Err(); err != nil {
		return fmt.Errorf("persist handshake: %w", err)
	}
	return nil
}

func (s *RedisHandshakeStore) Get(ctx context.Context, id string) (*domain.Handshake, error) {
	bytes, err := s.client.Get(ctx, handshakePrefix+id).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("load handshake: %w", err)
	}
	var hs domain.Handshake
	if err := json.Unmarshal(bytes, &hs); err != nil {
		return nil, fmt.Errorf("decode handshake: %w", err)
	}
	return &hs, nil
}

func (s *RedisHandshakeStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, handshakePrefix+id).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("delete handshake: %w", err)
	}
	return nil
}
