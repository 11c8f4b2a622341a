package service

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

var otpCodePattern = regexp.MustCompile(`^[0-9]{6}$`)

func TestOTPService_RequestCreatesIdentityAndDispatchesCode(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.Request(ctx, "New@Example.com "))

	user, err := h.users.GetByEmail(ctx, "new@example.com")
	require.NoError(t, err)
	require.Regexp(t, otpCodePattern, user.OTPCode)
	require.False(t, user.EmailVerified)

	sent := h.mailer.messages()
	require.Len(t, sent, 1)
	require.Equal(t, "new@example.com", sent[0].to)
	require.Contains(t, sent[0].body, user.OTPCode)
}

func TestOTPService_RequestOverwritesPreviousCode(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.Request(ctx, "a@x.com"))
	first, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, h.service.Request(ctx, "a@x.com"))
	second, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	// The old code no longer verifies even when it happens to differ.
	if first.OTPCode != second.OTPCode {
		_, err = h.service.Verify(ctx, "a@x.com", first.OTPCode)
		require.ErrorIs(t, err, domain.ErrCodeMismatch)
	}
	_, err = h.service.Verify(ctx, "a@x.com", second.OTPCode)
	require.NoError(t, err)
}

func TestOTPService_VerifySuccessConsumesCode(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.Request(ctx, "a@x.com"))
	stored, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	user, err := h.service.Verify(ctx, "a@x.com", stored.OTPCode)
	require.NoError(t, err)
	require.True(t, user.EmailVerified)
	require.Empty(t, user.OTPCode)

	// Single use: the same code is rejected on replay.
	_, err = h.service.Verify(ctx, "a@x.com", stored.OTPCode)
	require.ErrorIs(t, err, domain.ErrCodeMismatch)
}

func TestOTPService_VerifyMismatchLeavesCodeIntact(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.Request(ctx, "a@x.com"))
	stored, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	_, err = h.service.Verify(ctx, "a@x.com", "000000x")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)

	// A bad guess must not burn the real code.
	user, err := h.service.Verify(ctx, "a@x.com", stored.OTPCode)
	require.NoError(t, err)
	require.True(t, user.EmailVerified)
}

func TestOTPService_VerifyUnknownEmail(t *testing.T) {
	h := newOTPTestHarness(t)

	_, err := h.service.Verify(context.Background(), "ghost@x.com", "123456")
	require.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestOTPService_VerifyWithoutPendingCode(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()
	h.users.add("a@x.com")

	_, err := h.service.Verify(ctx, "a@x.com", "123456")
	require.ErrorIs(t, err, domain.ErrCodeMismatch)
}

func TestOTPService_VerifyExpiredCode(t *testing.T) {
	h := newOTPTestHarness(t)
	ctx := context.Background()

	require.NoError(t, h.service.Request(ctx, "a@x.com"))
	stored, err := h.users.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, h.users.SetOTP(ctx, stored.ID, stored.OTPCode, time.Now().Add(-time.Hour)))

	_, err = h.service.Verify(ctx, "a@x.com", stored.OTPCode)
	require.ErrorIs(t, err, domain.ErrCodeMismatch)
}

type otpTestHarness struct {
	service *OTPService
	users   *memoryUserRepo
	mailer  *recordingDispatcher
}

func newOTPTestHarness(t *testing.T) *otpTestHarness {
	t.Helper()
	users := newMemoryUserRepo()
	mailer := &recordingDispatcher{}
	cfg := config.Config{OTPTTL: 10 * time.Minute, DashboardURL: "https://dash.example.com"}
	return &otpTestHarness{
		service: NewOTPService(users, mailer, cfg, zap.NewNop()),
		users:   users,
		mailer:  mailer,
	}
}

type sentMessage struct {
	to      string
	subject string
	body    string
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (d *recordingDispatcher) Send(to, subject, body string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, sentMessage{to: to, subject: subject, body: body})
}

func (d *recordingDispatcher) messages() []sentMessage {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]sentMessage, len(d.sent))
	copy(out, d.sent)
	return out
}
