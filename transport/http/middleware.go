package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/service"
	"go.uber.org/zap"
)

const principalKey = "principal"

// SecurityContextMiddleware attaches a request-scoped security context built
// from the Authorization header and clears it once the request completes
func SecurityContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := core.NewSecurityContext(c.GetHeader("Authorization"))
		c.Request = c.Request.WithContext(core.WithSecurityContext(c.Request.Context(), sc))

		c.Next()

		sc.Clear()
	}
}

// TimeoutMiddleware bounds the context handed to the services. Verifier
// calls to external collaborators observe the deadline.
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if timeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AuthMiddleware creates middleware that validates access tokens
func AuthMiddleware(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc, ok := core.SecurityContextFrom(c.Request.Context())
		if !ok {
			sc = core.NewSecurityContext(c.GetHeader("Authorization"))
			c.Request = c.Request.WithContext(core.WithSecurityContext(c.Request.Context(), sc))
		}

		token, ok := sc.BearerToken()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		info, err := tokens.Inspect(c.Request.Context(), token)
		if err != nil {
			status, msg := errorStatus(err)
			if status != http.StatusInternalServerError {
				status = http.StatusUnauthorized
			}
			c.AbortWithStatusJSON(status, gin.H{"error": msg})
			return
		}
		if info.Kind != core.TokenKindAccess {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		principal := info.Principal
		sc.SetPrincipal(&principal)
		c.Set(principalKey, &principal)

		c.Next()
	}
}

// RequestLogger writes one access log line per request
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if p, ok := c.Get(principalKey); ok {
			fields = append(fields, zap.String("user_id", p.(*core.Principal).ID))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Error("request", fields...)
		} else {
			logger.Info("request", fields...)
		}
	}
}
