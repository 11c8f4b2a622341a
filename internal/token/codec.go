// Package token implements the signed bearer-token codec. The codec is
// pure: it performs no I/O and operates only over the signing key it was
// constructed with.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"
	"github.com/google/uuid"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
)

// Kind distinguishes access tokens from refresh tokens. A token of one
// kind never verifies as the other.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Claims is the verified claim set of a token. Fields are populated only
// after the signature and expiry checks have passed.
type Claims struct {
	Subject   int64
	Kind      Kind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type customClaims struct {
	TokenType string `json:"token_type"`
}

// Codec signs and verifies bearer tokens with an immutable symmetric key.
type Codec struct {
	key []byte
}

// NewCodec constructs a codec over the configured signing key.
func NewCodec(key []byte) (*Codec, error) {
	if len(key) < 32 {
		return nil, fmt.Errorf("signing key must be at least 32 bytes")
	}
	return &Codec{key: key}, nil
}

// Issue mints a signed token for the subject. Refresh tokens carry a
// unique id (jti) so the revocation store can track single-use consumption.
func (c *Codec) Issue(subjectID int64, kind Kind, ttl time.Duration) (string, Claims, error) {
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: c.key},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return "", Claims{}, fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	claims := Claims{
		Subject:   subjectID,
		Kind:      kind,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	std := gojwt.Claims{
		Subject:  strconv.FormatInt(subjectID, 10),
		IssuedAt: gojwt.NewNumericDate(now),
		Expiry:   gojwt.NewNumericDate(claims.ExpiresAt),
	}
	if kind == KindRefresh {
		claims.ID = uuid.NewString()
		std.ID = claims.ID
	}

	raw, err := gojwt.Signed(signer).Claims(std).Claims(customClaims{TokenType: string(kind)}).Serialize()
	if err != nil {
		return "", Claims{}, fmt.Errorf("serialize token: %w", err)
	}
	return raw, claims, nil
}

// Verify checks signature, expiry, and required-claim presence before
// returning any field. Failures are one of domain.ErrMalformed,
// domain.ErrBadSignature, or domain.ErrExpired.
func (c *Codec) Verify(raw string, kind Kind) (Claims, error) {
	parsed, err := gojwt.ParseSigned(raw, []gojose.SignatureAlgorithm{gojose.HS256})
	if err != nil {
		return Claims{}, domain.ErrMalformed
	}

	var std gojwt.Claims
	var custom customClaims
	if err := parsed.Claims(c.key, &std, &custom); err != nil {
		if errors.Is(err, gojose.ErrCryptoFailure) {
			return Claims{}, domain.ErrBadSignature
		}
		return Claims{}, domain.ErrMalformed
	}

	if std.Subject == "" || std.Expiry == nil || std.IssuedAt == nil {
		return Claims{}, domain.ErrMalformed
	}
	if custom.TokenType != string(kind) {
		return Claims{}, domain.ErrMalformed
	}
	if kind == KindRefresh && std.ID == "" {
		return Claims{}, domain.ErrMalformed
	}

	if err := std.Validate(gojwt.Expected{Time: time.Now().UTC()}); err != nil {
		if errors.Is(err, gojwt.ErrExpired) {
			return Claims{}, domain.ErrExpired
		}
		return Claims{}, domain.ErrMalformed
	}

	subject, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return Claims{}, domain.ErrMalformed
	}

	return Claims{
		Subject:   subject,
		Kind:      kind,
		ID:        std.ID,
		IssuedAt:  std.IssuedAt.Time(),
		ExpiresAt: std.Expiry.Time(),
	}, nil
}
