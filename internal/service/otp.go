package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/mail"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/repository"
)

const otpCodeLength = 6

// OTPService implements the email one-time-passcode challenge.
type OTPService struct {
	users  repository.UserRepository
	mailer mail.Dispatcher
	cfg    config.Config
	logger *zap.Logger
}

// NewOTPService wires dependencies.
func NewOTPService(users repository.UserRepository, mailer mail.Dispatcher, cfg config.Config, logger *zap.Logger) *OTPService {
	return &OTPService{
		users:  users,
		mailer: mailer,
		cfg:    cfg,
		logger: logger,
	}
}

// Request creates or fetches the identity for the email, generates a
// fresh 6-digit code, and dispatches it. A new request overwrites any
// prior code. The response never reveals whether the email was known.
func (s *OTPService) Request(ctx context.Context, email string) error {
	user, err := s.users.GetOrCreateByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("resolve identity: %w", err)
	}

	code, err := generateCode(otpCodeLength)
	if err != nil {
		return fmt.Errorf("generate otp: %w", err)
	}
	if err := s.users.SetOTP(ctx, user.ID, code, time.Now().UTC()); err != nil {
		return fmt.Errorf("persist otp: %w", err)
	}

	s.mailer.Send(
		user.Email,
		"Your OTP Code",
		fmt.Sprintf("Your OTP code is: %s. Visit %s to access the dashboard.", code, s.cfg.DashboardURL),
	)
	s.logger.Info("otp requested", zap.Int64("user_id", user.ID))
	return nil
}

// Verify checks the submitted code against the stored one. On match the
// code is cleared and the email marked verified; on mismatch the stored
// code is left intact so a bad guess does not lock out a legitimate retry.
// Verification never creates identities: unknown emails fail with
// domain.ErrUserNotFound.
func (s *OTPService) Verify(ctx context.Context, email, code string) (domain.User, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return domain.User{}, err
	}
	if user.OTPCode == "" {
		return domain.User{}, domain.ErrCodeMismatch
	}
	if s.cfg.OTPTTL > 0 && time.Since(user.OTPIssuedAt) > s.cfg.OTPTTL {
		return domain.User{}, domain.ErrCodeMismatch
	}
	if subtle.ConstantTimeCompare([]byte(code), []byte(user.OTPCode)) != 1 {
		return domain.User{}, domain.ErrCodeMismatch
	}

	if err := s.users.ClearOTP(ctx, user.ID); err != nil {
		return domain.User{}, fmt.Errorf("consume otp: %w", err)
	}
	user.OTPCode = ""
	user.EmailVerified = true

	s.logger.Info("audit", zap.String("event", "otp.verify.success"), zap.Int64("user_id", user.ID))
	return user, nil
}

func generateCode(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
