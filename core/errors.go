package core

import (
	"errors"
	"fmt"
)

var (
	ErrTokenExpired         = errors.New("token has expired")
	ErrTokenRevoked         = errors.New("token has been revoked")
	ErrInvalidSignature     = errors.New("invalid signature")
	ErrInvalidToken         = errors.New("invalid token")
	ErrInvalidTokenFormat   = errors.New("invalid token format")
	ErrRefreshTokenInvalid  = errors.New("refresh token is invalid or expired")
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrDeliveryFailed       = errors.New("notification delivery failed")
	ErrNotFound             = errors.New("not found")
	ErrStoreOperationFailed = errors.New("store operation failed")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrInvalidRequest       = errors.New("invalid request")
)

// Reason explains why an authentication attempt was rejected.
type Reason string

const (
	ReasonBadCredentials         Reason = "bad_credentials"
	ReasonAccountDisabled        Reason = "account_disabled"
	ReasonAccountLocked          Reason = "account_locked"
	ReasonCodeExpiredOrMissing   Reason = "code_expired_or_missing"
	ReasonCodeMismatch           Reason = "code_mismatch"
	ReasonCaptchaInvalid         Reason = "captcha_invalid"
	ReasonProviderExchangeFailed Reason = "provider_exchange_failed"
	ReasonUnsupportedModality    Reason = "unsupported_modality"
)

// AuthError is returned by verifiers when a credential is rejected.
// It matches ErrAuthenticationFailed under errors.Is.
type AuthError struct {
	Reason Reason
	Err    error
}

// NewAuthError creates an AuthError with an optional cause
func NewAuthError(reason Reason, cause error) *AuthError {
	return &AuthError{Reason: reason, Err: cause}
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", e.Reason)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuthenticationFailed
}

// ReasonOf extracts the rejection reason from err, if any.
func ReasonOf(err error) (Reason, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}
