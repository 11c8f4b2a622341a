package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/token"
)

// TokenPair is a freshly minted access/refresh pair together with each
// token's expiry, which the transport layer mirrors into cookie lifetimes.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// CredentialService mints access/refresh pairs and manages refresh
// rotation against the revocation store.
type CredentialService struct {
	codec       *token.Codec
	revocations repository.RevocationStore
	users       repository.UserRepository
	cfg         config.Config
	logger      *zap.Logger
	tracer      trace.Tracer
}

// NewCredentialService wires dependencies.
func NewCredentialService(codec *token.Codec, revocations repository.RevocationStore, users repository.UserRepository, cfg config.Config, logger *zap.Logger) *CredentialService {
	return &CredentialService{
		codec:       codec,
		revocations: revocations,
		users:       users,
		cfg:         cfg,
		logger:      logger,
		tracer:      otel.Tracer("github.com/sesto-dev/e2e-type-safety-templates/internal/service"),
	}
}

// IssuePair mints a new access/refresh pair for a verified identity.
func (s *CredentialService) IssuePair(ctx context.Context, user domain.User) (*TokenPair, error) {
	_, span := s.startSpan(ctx, "CredentialService.IssuePair")
	defer span.End()

	access, accessClaims, err := s.codec.Issue(user.ID, token.KindAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshClaims, err := s.codec.Issue(user.ID, token.KindRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
	}, nil
}

// Rotate verifies the presented refresh token, consumes it, and mints a
// successor pair. The presented token is revoked before the new pair is
// issued: a crash in between invalidates the session instead of leaving a
// reusable credential behind.
func (s *CredentialService) Rotate(ctx context.Context, presented string) (*TokenPair, error) {
	ctx, span := s.startSpan(ctx, "CredentialService.Rotate")
	defer span.End()

	claims, err := s.codec.Verify(presented, token.KindRefresh)
	if err != nil {
		// Forged, expired, and revoked tokens are indistinguishable here.
		span.RecordError(err)
		return nil, domain.ErrInvalid
	}

	fresh, err := s.revocations.RevokeIfFresh(ctx, claims.ID, time.Until(claims.ExpiresAt))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}
	if !fresh {
		s.logger.Warn("refresh token replay detected", zap.Int64("user_id", claims.Subject))
		return nil, domain.ErrInvalid
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("resolve subject: %w", err)
	}

	pair, err := s.IssuePair(ctx, user)
	if err != nil {
		return nil, err
	}
	s.audit("refresh.rotate.success", "user_id", user.ID)
	return pair, nil
}

// RevokeRefresh consumes a presented refresh token at logout. All
// failures are swallowed: logout must always succeed client-side.
func (s *CredentialService) RevokeRefresh(ctx context.Context, presented string) {
	ctx, span := s.startSpan(ctx, "CredentialService.RevokeRefresh")
	defer span.End()

	claims, err := s.codec.Verify(presented, token.KindRefresh)
	if err != nil {
		s.logger.Info("logout with unverifiable refresh token", zap.Error(err))
		return
	}
	if err := s.revocations.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt)); err != nil {
		s.logger.Error("logout revocation failed", zap.Int64("user_id", claims.Subject), zap.Error(err))
		return
	}
	s.audit("logout.revoke.success", "user_id", claims.Subject)
}

// VerifyAccess validates an access token and resolves its subject.
func (s *CredentialService) VerifyAccess(ctx context.Context, raw string) (domain.User, error) {
	claims, err := s.codec.Verify(raw, token.KindAccess)
	if err != nil {
		return domain.User{}, err
	}
	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("resolve subject: %w", err)
	}
	return user, nil
}

func (s *CredentialService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *CredentialService) audit(event string, attrs ...any) {
	fields := make([]zap.Field, 0, len(attrs)/2+1)
	fields = append(fields, zap.String("event", event))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	s.logger.Info("audit", fields...)
}
