package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
)

const revocationPrefix = "auth:revoked:"

// RedisRevocationStore implements the refresh-token blacklist on Redis.
// Entries carry a TTL matching the token's remaining natural lifetime.
type RedisRevocationStore struct {
	client redis.UniversalClient
}

var _ repository.RevocationStore = (*RedisRevocationStore)(nil)

// NewRedisRevocationStore constructs a Redis-backed revocation store.
func NewRedisRevocationStore(client redis.UniversalClient) *RedisRevocationStore {
	return &RedisRevocationStore{client: client}
}

// RevokeIfFresh marks the token id revoked via SETNX so that of N
// concurrent callers exactly one observes true.
func (s *RedisRevocationStore) RevokeIfFresh(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		// Already past natural expiry; treat as previously revoked.
		return false, nil
	}
	fresh, err := s.client.SetNX(ctx, revocationPrefix+tokenID, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("revoke token: %w", err)
	}
	return fresh, nil
}

// Revoke marks the token id revoked. Re-revoking is a no-op.
func (s *RedisRevocationStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revocationPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.client.Exists(ctx, revocationPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
