package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/service"
)

const currentUserKey = "currentUser"

// TokenSource extracts the bearer credential from a request. The session
// transport satisfies it; tests can plug in anything.
type TokenSource interface {
	BearerToken(r *http.Request) string
}

// Auth guards routes behind a valid access token.
type Auth struct {
	Credentials *service.CredentialService
	Tokens      TokenSource
}

// NewAuth wires the guard.
func NewAuth(credentials *service.CredentialService, tokens TokenSource) *Auth {
	return &Auth{Credentials: credentials, Tokens: tokens}
}

// RequireUser aborts with 401 unless the request carries a valid access
// token whose subject still exists. The resolved identity is attached to
// the request context for handlers.
func (m *Auth) RequireUser(c *gin.Context) {
	raw := m.Tokens.BearerToken(c.Request)
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	user, err := m.Credentials.VerifyAccess(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Invalid or expired access token."})
		return
	}
	c.Set(currentUserKey, user)
	c.Next()
}

// GetCurrentUser returns the identity attached by RequireUser.
func GetCurrentUser(c *gin.Context) (domain.User, bool) {
	value, ok := c.Get(currentUserKey)
	if !ok {
		return domain.User{}, false
	}
	user, ok := value.(domain.User)
	return user, ok
}
