package repository

import (
	"context"
	"time"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

// UserRepository exposes persistence for user identities. Lookups that
// find no row return domain.ErrUserNotFound.
type UserRepository interface {
	GetOrCreateByEmail(ctx context.Context, email string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	GetByID(ctx context.Context, id int64) (domain.User, error)
	SetOTP(ctx context.Context, userID int64, code string, issuedAt time.Time) error
	// ClearOTP consumes the stored code and marks the email verified.
	ClearOTP(ctx context.Context, userID int64) error
	UpdateProfile(ctx context.Context, userID int64, name, avatarURL string, emailVerified bool) error
}

// RevocationStore tracks consumed refresh-token ids until their natural
// expiry. Entries evict on TTL so the blacklist never grows unbounded.
type RevocationStore interface {
	// RevokeIfFresh atomically marks the id revoked and reports whether this
	// call was the first to do so. Concurrent duplicate rotations resolve
	// through this primitive: exactly one caller observes true.
	RevokeIfFresh(ctx context.Context, tokenID string, ttl time.Duration) (bool, error)
	// Revoke marks the id revoked. Revoking an already-revoked id is a no-op.
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// HandshakeStore persists pending OAuth handshakes under an opaque id for
// the duration of the redirect round-trip.
type HandshakeStore interface {
	Put(ctx context.Context, id string, hs domain.Handshake, ttl time.Duration) error
	// Get returns nil without error when the handshake is absent or expired.
	Get(ctx context.Context, id string) (*domain.Handshake, error)
	Delete(ctx context.Context, id string) error
}
