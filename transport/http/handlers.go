package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Captcha issues an image challenge; ?type= selects the kind
func (h *AuthHandlers) Captcha(c *gin.Context) {
	info, err := h.authService.Captcha(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// Login handles username/password login
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		Password    string `json:"password" binding:"required"`
		CaptchaKey  string `json:"captcha_key"`
		CaptchaCode string `json:"captcha_code"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issued, err := h.authService.LoginByPassword(c.Request.Context(), req.Username, req.Password, req.CaptchaKey, req.CaptchaCode)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// SmsCode sends a one-time login code
func (h *AuthHandlers) SmsCode(c *gin.Context) {
	var req struct {
		Mobile string `json:"mobile" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.SendSmsLoginCode(c.Request.Context(), req.Mobile); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Code sent"})
}

// SmsLogin handles login with a one-time code
func (h *AuthHandlers) SmsLogin(c *gin.Context) {
	var req struct {
		Mobile string `json:"mobile" binding:"required"`
		Code   string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issued, err := h.authService.LoginBySms(c.Request.Context(), req.Mobile, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// OAuthLogin handles login with a third-party authorization code
func (h *AuthHandlers) OAuthLogin(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issued, err := h.authService.LoginByOAuth(c.Request.Context(), req.Code)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	issued, err := h.authService.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

// Logout revokes the bearer token of the request. It always succeeds.
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.authService.Logout(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns information about the authenticated user
func (h *AuthHandlers) Me(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          principal.ID,
		"username":    principal.Username,
		"authorities": principal.Authorities,
	})
}

// Authorize checks that the user holds the authority named by ?authority=
func (h *AuthHandlers) Authorize(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	authority := c.Query("authority")
	if authority != "" && !principal.HasAuthority(authority) {
		c.JSON(http.StatusForbidden, gin.H{"authorized": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authorized": true,
		"username":   principal.Username,
	})
}

func currentPrincipal(c *gin.Context) (*core.Principal, bool) {
	sc, ok := core.SecurityContextFrom(c.Request.Context())
	if !ok {
		return nil, false
	}
	principal := sc.Principal()
	return principal, principal != nil
}

func respondError(c *gin.Context, err error) {
	status, msg := errorStatus(err)
	c.JSON(status, gin.H{"error": msg})
}

// errorStatus maps service errors to a status code and a client message
func errorStatus(err error) (int, string) {
	if reason, ok := core.ReasonOf(err); ok {
		switch reason {
		case core.ReasonAccountDisabled, core.ReasonAccountLocked:
			return http.StatusForbidden, string(reason)
		case core.ReasonUnsupportedModality:
			return http.StatusBadRequest, string(reason)
		default:
			return http.StatusUnauthorized, string(reason)
		}
	}

	switch {
	case errors.Is(err, core.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, core.ErrInvalidTokenFormat):
		return http.StatusBadRequest, "Invalid token format"
	case errors.Is(err, core.ErrInvalidConfiguration):
		return http.StatusBadRequest, "Unsupported option"
	case errors.Is(err, core.ErrRefreshTokenInvalid):
		return http.StatusUnauthorized, "Invalid refresh token"
	case errors.Is(err, core.ErrTokenExpired):
		return http.StatusUnauthorized, "Token expired"
	case errors.Is(err, core.ErrTokenRevoked):
		return http.StatusUnauthorized, "Token revoked"
	case errors.Is(err, core.ErrInvalidSignature), errors.Is(err, core.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid token"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Request timed out"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}
