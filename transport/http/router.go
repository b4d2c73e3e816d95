package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gatekeeper/service"
	"go.uber.org/zap"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, logger *zap.Logger, requestTimeout time.Duration) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(logger), TimeoutMiddleware(requestTimeout), SecurityContextMiddleware())

	// Create handlers
	handlers := NewAuthHandlers(authService)

	// Auth routes
	auth := router.Group("/auth")
	{
		auth.GET("/captcha", handlers.Captcha)
		auth.POST("/login", handlers.Login)
		auth.POST("/sms/code", handlers.SmsCode)
		auth.POST("/sms/login", handlers.SmsLogin)
		auth.POST("/oauth/login", handlers.OAuthLogin)
		auth.POST("/refresh", handlers.Refresh)
		auth.DELETE("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService.Tokens()))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)
	}

	return router
}
