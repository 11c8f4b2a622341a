package domain

import "errors"

var (
	// ErrMalformed indicates an unparseable token or request payload.
	ErrMalformed = errors.New("auth: malformed token")
	// ErrExpired indicates a token past its expiry.
	ErrExpired = errors.New("auth: token expired")
	// ErrBadSignature indicates a token whose signature does not verify.
	ErrBadSignature = errors.New("auth: bad signature")
	// ErrInvalid indicates a revoked or otherwise unhonorable token id.
	ErrInvalid = errors.New("auth: invalid token")
	// ErrUserNotFound signals that the referenced identity does not exist.
	ErrUserNotFound = errors.New("auth: user not found")
	// ErrCodeMismatch indicates an OTP code that does not match the stored one.
	ErrCodeMismatch = errors.New("auth: code mismatch")
	// ErrStateMismatch indicates an OAuth callback state that does not match
	// the persisted handshake.
	ErrStateMismatch = errors.New("auth: state mismatch")
	// ErrMissingParameter indicates a required callback parameter is absent.
	ErrMissingParameter = errors.New("auth: missing parameter")
	// ErrUpstreamExchange indicates the provider token exchange did not succeed.
	ErrUpstreamExchange = errors.New("auth: upstream exchange failed")
	// ErrTokenVerification indicates the provider identity assertion could not
	// be verified against the configured client id.
	ErrTokenVerification = errors.New("auth: token verification failed")
	// ErrMissingEmail indicates the provider assertion carries no email claim.
	ErrMissingEmail = errors.New("auth: missing email claim")
)
