package domain

import (
	"strings"
	"time"
)

// User represents an authenticated identity. The user store owns the
// record; this service reads it and writes the verification flag and OTP
// code as side effects of challenge verification.
type User struct {
	ID            int64
	Email         string
	Name          string
	AvatarURL     string
	EmailVerified bool
	OTPCode       string
	OTPIssuedAt   time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProfileUpdate captures the fields an external identity provider may
// contribute to a user record.
type ProfileUpdate struct {
	Name      string
	AvatarURL string
}

// MergeProfile applies provider-supplied profile data with first-write-wins
// semantics: name and avatar fill only when currently empty, and the email
// verification flag is always re-asserted. The second return reports whether
// anything changed.
func MergeProfile(user User, update ProfileUpdate) (User, bool) {
	changed := false
	if user.Name == "" && strings.TrimSpace(update.Name) != "" {
		user.Name = strings.TrimSpace(update.Name)
		changed = true
	}
	if user.AvatarURL == "" && strings.TrimSpace(update.AvatarURL) != "" {
		user.AvatarURL = strings.TrimSpace(update.AvatarURL)
		changed = true
	}
	if !user.EmailVerified {
		user.EmailVerified = true
		changed = true
	}
	return user, changed
}
