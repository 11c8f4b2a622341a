// Package http wires the gin engine for the authentication service.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/sesto-dev/e2e-type-safety-templates/internal/config"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/http/handler"
	httpmiddleware "github.com/sesto-dev/e2e-type-safety-templates/internal/http/middleware"
	"github.com/sesto-dev/e2e-type-safety-templates/internal/middleware"
)

// NewRouter wires gin routes and middleware.
func NewRouter(cfg config.Config, authHandler *handler.AuthHandler, authMiddleware *httpmiddleware.Auth, rateLimiter *middleware.RateLimiter) *gin.Engine {
	if !cfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLogger(nil))
	if rateLimiter != nil {
		r.Use(rateLimiter.Handler())
	}
	r.Use(otelgin.Middleware(cfg.ServiceName))

	otp := r.Group("/otp")
	{
		otp.POST("/send", authHandler.OTPSend)
		otp.POST("/verify", authHandler.OTPVerify)
	}

	r.POST("/logout", authMiddleware.RequireUser, authHandler.Logout)
	r.POST("/token/refresh", authHandler.Refresh)
	r.GET("/me", authMiddleware.RequireUser, authHandler.Me)

	if cfg.OAuthEnabled() {
		r.GET("/google", authHandler.GoogleRedirect)
		r.GET("/google/callback", authHandler.GoogleCallback)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
