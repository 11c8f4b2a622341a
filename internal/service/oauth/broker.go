// Package oauth drives the authorization-code-with-PKCE handshake against
// the external identity provider.
package oauth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	provider "github.com/sesto-dev/e2e-type-safety-templates/internal/adapter/oauth"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
)

// StartResult carries the authorization URL and the opaque id under which
// the handshake state was persisted. The transport hands the id back on
// the callback leg via a short-lived cookie.
type StartResult struct {
	AuthorizationURL string
	HandshakeID      string
}

// Broker implements the two-phase PKCE handshake: Start generates and
// persists the state/verifier pair, Callback consumes it exactly once.
type Broker struct {
	provider   provider.Provider
	handshakes repository.HandshakeStore
	users      repository.UserRepository
	cfg        config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewBroker wires the broker.
func NewBroker(p provider.Provider, handshakes repository.HandshakeStore, users repository.UserRepository, cfg config.Config, logger *zap.Logger) *Broker {
	return &Broker{
		provider:   p,
		handshakes: handshakes,
		users:      users,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("github.com/sesto-dev/e2e-type-safety-templates/internal/service/oauth"),
	}
}

// Start generates fresh state and PKCE material, persists it under a new
// handshake id, and returns the provider authorization URL.
func (b *Broker) Start(ctx context.Context) (*StartResult, error) {
	ctx, span := b.startSpan(ctx, "Broker.Start")
	defer span.End()

	state, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier, err := randomToken(64)
	if err != nil {
		return nil, fmt.Errorf("generate pkce verifier: %w", err)
	}
	handshakeID, err := randomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate handshake id: %w", err)
	}

	hs := domain.Handshake{
		State:        state,
		CodeVerifier: verifier,
		CreatedAt:    time.Now().UTC(),
	}
	if err := b.handshakes.Put(ctx, handshakeID, hs, b.cfg.HandshakeTTL); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("persist handshake: %w", err)
	}

	return &StartResult{
		AuthorizationURL: b.provider.AuthCodeURL(state, Challenge(verifier)),
		HandshakeID:      handshakeID,
	}, nil
}

// Callback completes the handshake. The persisted state is destroyed
// whether the callback succeeds or fails, so a handshake can never be
// replayed. The token exchange is only reached after the state matches.
func (b *Broker) Callback(ctx context.Context, handshakeID, code, state string) (domain.User, error) {
	ctx, span := b.startSpan(ctx, "Broker.Callback")
	defer span.End()

	if strings.TrimSpace(code) == "" || strings.TrimSpace(state) == "" {
		return domain.User{}, domain.ErrMissingParameter
	}
	if strings.TrimSpace(handshakeID) == "" {
		return domain.User{}, domain.ErrStateMismatch
	}

	hs, err := b.handshakes.Get(ctx, handshakeID)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("load handshake: %w", err)
	}
	if hs == nil {
		return domain.User{}, domain.ErrStateMismatch
	}
	defer func() {
		if err := b.handshakes.Delete(ctx, handshakeID); err != nil {
			b.logger.Warn("failed to delete oauth handshake", zap.Error(err))
		}
	}()

	if subtle.ConstantTimeCompare([]byte(state), []byte(hs.State)) != 1 {
		return domain.User{}, domain.ErrStateMismatch
	}

	identity, err := b.provider.Exchange(ctx, code, hs.CodeVerifier)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, domain.ErrTokenVerification) {
			return domain.User{}, domain.ErrTokenVerification
		}
		return domain.User{}, domain.ErrUpstreamExchange
	}
	if strings.TrimSpace(identity.Email) == "" {
		return domain.User{}, domain.ErrMissingEmail
	}

	user, err := b.users.GetOrCreateByEmail(ctx, identity.Email)
	if err != nil {
		span.RecordError(err)
		return domain.User{}, fmt.Errorf("resolve identity: %w", err)
	}

	merged, changed := domain.MergeProfile(user, domain.ProfileUpdate{
		Name:      identity.Name,
		AvatarURL: identity.Picture,
	})
	if changed {
		if err := b.users.UpdateProfile(ctx, merged.ID, merged.Name, merged.AvatarURL, merged.EmailVerified); err != nil {
			span.RecordError(err)
			return domain.User{}, fmt.Errorf("update profile: %w", err)
		}
	}

	b.logger.Info("audit", zap.String("event", "oauth.callback.success"), zap.Int64("user_id", merged.ID))
	return merged, nil
}

// Challenge derives the PKCE code challenge: base64url(sha256(verifier)),
// no padding.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func randomToken(size int) (string, error) {
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (b *Broker) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if b == nil || b.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return b.tracer.Start(ctx, name)
}
