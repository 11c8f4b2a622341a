// Package handler exposes the authentication HTTP surface.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/domain"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/http/middleware"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/http/session"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/service"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/service/oauth"
)

// AuthHandler orchestrates the session endpoints: OTP login, refresh
// rotation, logout, and the Google handshake.
type AuthHandler struct {
	OTP         *service.OTPService
	Credentials *service.CredentialService
	Broker      *oauth.Broker
	Sessions    *session.Transport
	Cfg         config.Config
	Logger      *zap.Logger
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(otp *service.OTPService, credentials *service.CredentialService, broker *oauth.Broker, sessions *session.Transport, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		OTP:         otp,
		Credentials: credentials,
		Broker:      broker,
		Sessions:    sessions,
		Cfg:         cfg,
		Logger:      logger,
	}
}

// OTPSend kicks off the email challenge. The response never reveals
// whether the address was already registered.
func (h *AuthHandler) OTPSend(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "A valid email is required."})
		return
	}

	if err := h.OTP.Request(c.Request.Context(), req.Email); err != nil {
		// Surface nothing: an attacker probing addresses learns only
		// that the endpoint answered.
		h.Logger.Error("otp request failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"detail": "If the email is valid, a code has been sent."})
}

// OTPVerify checks the submitted code and opens a session on success.
func (h *AuthHandler) OTPVerify(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Email and code are required."})
		return
	}

	user, err := h.OTP.Verify(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	pair, err := h.Credentials.IssuePair(c.Request.Context(), user)
	if err != nil {
		h.Logger.Error("issue session after otp verify", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not open a session."})
		return
	}

	h.Sessions.SetSession(c.Writer, pair)
	c.JSON(http.StatusOK, identityPayload(user))
}

// Logout revokes the presented refresh token and clears the session
// cookies. It always succeeds from the client's point of view.
func (h *AuthHandler) Logout(c *gin.Context) {
	if refresh := h.Sessions.RefreshToken(c.Request); refresh != "" {
		h.Credentials.RevokeRefresh(c.Request.Context(), refresh)
	}
	h.Sessions.ClearSession(c.Writer)
	c.Status(http.StatusResetContent)
}

// Refresh rotates the refresh cookie into a fresh session pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	presented := h.Sessions.RefreshToken(c.Request)
	if presented == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "No refresh token provided."})
		return
	}

	pair, err := h.Credentials.Rotate(c.Request.Context(), presented)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalid), errors.Is(err, domain.ErrUserNotFound):
			h.Sessions.ClearSession(c.Writer)
			c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid refresh token."})
		default:
			h.Logger.Error("refresh rotation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not refresh the session."})
		}
		return
	}

	h.Sessions.SetSession(c.Writer, pair)
	c.JSON(http.StatusOK, gin.H{"detail": "Session refreshed."})
}

// Me returns the authenticated identity.
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.GetCurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Authentication credentials were not provided."})
		return
	}
	c.JSON(http.StatusOK, identityPayload(user))
}

// GoogleRedirect starts the PKCE handshake and sends the browser to the
// provider consent screen.
func (h *AuthHandler) GoogleRedirect(c *gin.Context) {
	result, err := h.Broker.Start(c.Request.Context())
	if err != nil {
		h.Logger.Error("oauth start failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not start the sign-in flow."})
		return
	}

	h.Sessions.SetHandshake(c.Writer, result.HandshakeID)
	c.Redirect(http.StatusFound, result.AuthorizationURL)
}

// GoogleCallback completes the handshake, opens a session, and bounces
// the browser back to the dashboard.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	handshakeID := h.Sessions.HandshakeID(c.Request)
	h.Sessions.ClearHandshake(c.Writer)

	user, err := h.Broker.Callback(c.Request.Context(), handshakeID, c.Query("code"), c.Query("state"))
	if err != nil {
		h.respondAuthError(c, err)
		return
	}

	pair, err := h.Credentials.IssuePair(c.Request.Context(), user)
	if err != nil {
		h.Logger.Error("issue session after oauth callback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Could not open a session."})
		return
	}

	h.Sessions.SetSession(c.Writer, pair)
	c.Redirect(http.StatusFound, h.Cfg.DashboardURL)
}

// respondAuthError maps the error taxonomy onto generic client-facing
// responses. Provider bodies and internals never surface.
func (h *AuthHandler) respondAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "User not found."})
	case errors.Is(err, domain.ErrCodeMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid or expired code."})
	case errors.Is(err, domain.ErrMissingParameter):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Missing code or state parameter."})
	case errors.Is(err, domain.ErrStateMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "State verification failed."})
	case errors.Is(err, domain.ErrUpstreamExchange):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Could not complete sign-in with the provider."})
	case errors.Is(err, domain.ErrTokenVerification):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Identity verification failed."})
	case errors.Is(err, domain.ErrMissingEmail):
		c.JSON(http.StatusBadRequest, gin.H{"detail": "The provider account has no email."})
	default:
		h.Logger.Error("auth request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal error."})
	}
}

func identityPayload(user domain.User) gin.H {
	return gin.H{
		"id":                strconv.FormatInt(user.ID, 10),
		"email":             user.Email,
		"name":              user.Name,
		"avatar_url":        user.AvatarURL,
		"is_email_verified": user.EmailVerified,
	}
}
