// Package session moves the token pair between the service layer and
// the browser via cookies.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/service"
)

// Cookie names used for the browser session. The access token doubles as
// a bearer credential: the Authorization header always wins over the
// cookie so API clients and browsers share the same endpoints.
const (
	accessCookieName    = "access_token"
	refreshCookieName   = "refresh_token"
	handshakeCookieName = "oauth_handshake"
)

// Transport reads and writes the session cookies. Cookies are HttpOnly
// and SameSite=Lax; Secure is dropped only in development so local HTTP
// setups keep working.
type Transport struct {
	cfg config.Config
}

// NewTransport builds the cookie codec from runtime config.
func NewTransport(cfg config.Config) *Transport {
	return &Transport{cfg: cfg}
}

// BearerToken extracts the access token for the request. A well-formed
// Authorization header takes precedence; the session cookie is only
// consulted when the header is absent.
func (t *Transport) BearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie, err := r.Cookie(accessCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RefreshToken reads the refresh cookie, empty when absent.
func (t *Transport) RefreshToken(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// SetSession writes both session cookies. Each cookie expires together
// with the token it carries.
func (t *Transport) SetSession(w http.ResponseWriter, pair *service.TokenPair) {
	http.SetCookie(w, t.sessionCookie(accessCookieName, pair.AccessToken, pair.AccessExpiresAt))
	http.SetCookie(w, t.sessionCookie(refreshCookieName, pair.RefreshToken, pair.RefreshExpiresAt))
}

// ClearSession expires both session cookies.
func (t *Transport) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, t.expiredCookie(accessCookieName))
	http.SetCookie(w, t.expiredCookie(refreshCookieName))
}

// SetHandshake stores the opaque handshake id for the callback leg. The
// cookie lives only as long as the persisted handshake itself.
func (t *Transport) SetHandshake(w http.ResponseWriter, handshakeID string) {
	cookie := t.sessionCookie(handshakeCookieName, handshakeID, time.Now().Add(t.cfg.HandshakeTTL))
	http.SetCookie(w, cookie)
}

// HandshakeID reads the handshake cookie, empty when absent.
func (t *Transport) HandshakeID(r *http.Request) string {
	if cookie, err := r.Cookie(handshakeCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// ClearHandshake expires the handshake cookie.
func (t *Transport) ClearHandshake(w http.ResponseWriter) {
	http.SetCookie(w, t.expiredCookie(handshakeCookieName))
}

func (t *Transport) sessionCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   t.cfg.CookieDomain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   !t.cfg.Debug(),
		SameSite: http.SameSiteLaxMode,
	}
}

func (t *Transport) expiredCookie(name string) *http.Cookie {
	cookie := t.sessionCookie(name, "", time.Unix(0, 0))
	cookie.MaxAge = -1
	return cookie
}
