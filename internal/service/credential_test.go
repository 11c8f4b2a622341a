package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/token"
)

func TestCredentialService_IssuePairAndVerifyAccess(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)
	require.True(t, pair.RefreshExpiresAt.After(pair.AccessExpiresAt))

	resolved, err := h.service.VerifyAccess(ctx, pair.AccessToken)
	require.NoError(t, err)
	require.Equal(t, user.ID, resolved.ID)
}

func TestCredentialService_RotateIsSingleUse(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)

	rotated, err := h.service.Rotate(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	_, err = h.service.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalid)

	// The successor still works.
	_, err = h.service.Rotate(ctx, rotated.RefreshToken)
	require.NoError(t, err)
}

func TestCredentialService_ConcurrentRotateSingleWinner(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)

	const n = 12
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		invalids int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.service.Rotate(ctx, pair.RefreshToken)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			case err == domain.ErrInvalid:
				invalids++
			default:
				t.Errorf("unexpected rotate error: %v", err)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, winners)
	require.Equal(t, n-1, invalids)
}

func TestCredentialService_RotateUnknownSubject(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)
	h.users.remove(user.ID)

	_, err = h.service.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestCredentialService_RotateGarbage(t *testing.T) {
	h := newCredentialTestHarness(t)

	_, err := h.service.Rotate(context.Background(), "not-a-token")
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestCredentialService_RotateFailsClosedOnStoreError(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)

	h.revocations.fail = true
	_, err = h.service.Rotate(ctx, pair.RefreshToken)
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrInvalid)
}

func TestCredentialService_RevokeRefreshBlocksRotation(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)

	h.service.RevokeRefresh(ctx, pair.RefreshToken)

	_, err = h.service.Rotate(ctx, pair.RefreshToken)
	require.ErrorIs(t, err, domain.ErrInvalid)
}

func TestCredentialService_RevokeRefreshSwallowsFailures(t *testing.T) {
	h := newCredentialTestHarness(t)
	ctx := context.Background()
	user := h.users.add("a@x.com")

	pair, err := h.service.IssuePair(ctx, user)
	require.NoError(t, err)

	h.revocations.fail = true
	h.service.RevokeRefresh(ctx, pair.RefreshToken)
	h.service.RevokeRefresh(ctx, "garbage")
}

// ---- Test harness and fakes ----

type credentialTestHarness struct {
	service     *CredentialService
	users       *memoryUserRepo
	revocations *memoryRevocationStore
}

func newCredentialTestHarness(t *testing.T) *credentialTestHarness {
	t.Helper()
	codec, err := token.NewCodec([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	users := newMemoryUserRepo()
	revocations := newMemoryRevocationStore()
	cfg := config.Config{AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour, OTPTTL: 10 * time.Minute}
	return &credentialTestHarness{
		service:     NewCredentialService(codec, revocations, users, cfg, zap.NewNop()),
		users:       users,
		revocations: revocations,
	}
}

type memoryUserRepo struct {
	mu     sync.Mutex
	users  map[int64]domain.User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int64]domain.User{}, nextID: 1}
}

func (m *memoryUserRepo) add(email string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := domain.User{ID: m.nextID, Email: email, CreatedAt: time.Now()}
	m.users[user.ID] = user
	m.nextID++
	return user
}

func (m *memoryUserRepo) remove(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.users, id)
}

func (m *memoryUserRepo) get(id int64) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memoryUserRepo) GetOrCreateByEmail(_ context.Context, email string) (domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == normalized {
			return u, nil
		}
	}
	user := domain.User{ID: m.nextID, Email: normalized, CreatedAt: time.Now()}
	m.users[user.ID] = user
	m.nextID++
	return user, nil
}

func (m *memoryUserRepo) GetByEmail(_ context.Context, email string) (domain.User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == normalized {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (m *memoryUserRepo) GetByID(_ context.Context, id int64) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return domain.User{}, domain.ErrUserNotFound
}

func (m *memoryUserRepo) SetOTP(_ context.Context, userID int64, code string, issuedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.OTPCode = code
	u.OTPIssuedAt = issuedAt
	m.users[userID] = u
	return nil
}

func (m *memoryUserRepo) ClearOTP(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.OTPCode = ""
	u.OTPIssuedAt = time.Time{}
	u.EmailVerified = true
	m.users[userID] = u
	return nil
}

func (m *memoryUserRepo) UpdateProfile(_ context.Context, userID int64, name, avatarURL string, emailVerified bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Name = name
	u.AvatarURL = avatarURL
	u.EmailVerified = emailVerified
	m.users[userID] = u
	return nil
}

type memoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]bool
	fail    bool
}

func newMemoryRevocationStore() *memoryRevocationStore {
	return &memoryRevocationStore{revoked: map[string]bool{}}
}

func (m *memoryRevocationStore) RevokeIfFresh(_ context.Context, tokenID string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false, fmt.Errorf("revocation store unavailable")
	}
	if ttl <= 0 || m.revoked[tokenID] {
		return false, nil
	}
	m.revoked[tokenID] = true
	return true, nil
}

func (m *memoryRevocationStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("revocation store unavailable")
	}
	if ttl > 0 {
		m.revoked[tokenID] = true
	}
	return nil
}

func (m *memoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return false, fmt.Errorf("revocation store unavailable")
	}
	return m.revoked[tokenID], nil
}
