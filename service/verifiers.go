package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// Verifier turns a raw credential into a verified principal
type Verifier func(ctx context.Context, cred core.Credential) (*core.Principal, error)

// PasswordVerifier checks username/password pairs with the identity
// authority. When captcha is not nil the credential must also carry a
// solved captcha.
func PasswordVerifier(authority ports.IdentityAuthority, captcha *CaptchaService) Verifier {
	return func(ctx context.Context, cred core.Credential) (*core.Principal, error) {
		c, ok := cred.(core.PasswordCredential)
		if !ok {
			return nil, unsupported(cred)
		}

		username := strings.TrimSpace(c.Username)
		if username == "" || c.Password == "" {
			return nil, core.NewAuthError(core.ReasonBadCredentials, nil)
		}

		if captcha != nil {
			if err := captcha.Verify(ctx, c.CaptchaKey, c.CaptchaCode); err != nil {
				return nil, err
			}
		}

		principal, err := authority.Authenticate(ctx, username, c.Password)
		if err != nil {
			return nil, authorityError(err)
		}
		return principal, nil
	}
}

// AttemptLimit bounds wrong guesses against one SMS code. Max zero means
// unlimited; Window is how long failures are counted.
type AttemptLimit struct {
	Max    int
	Window time.Duration
}

// SmsVerifier checks the one-time code cached for a mobile number and
// consumes it on success. Once limit.Max wrong codes have been tried the
// code is burned.
func SmsVerifier(store ports.Store, authority ports.IdentityAuthority, limit AttemptLimit) Verifier {
	if limit.Window <= 0 {
		limit.Window = DefaultSmsCodeExpiry
	}
	return func(ctx context.Context, cred core.Credential) (*core.Principal, error) {
		c, ok := cred.(core.SmsCredential)
		if !ok {
			return nil, unsupported(cred)
		}

		mobile := strings.TrimSpace(c.Mobile)
		code := strings.TrimSpace(c.Code)
		if mobile == "" {
			return nil, core.NewAuthError(core.ReasonCodeExpiredOrMissing, nil)
		}
		key := core.SmsLoginCodeKey(mobile)

		stored, err := store.Get(ctx, key)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.NewAuthError(core.ReasonCodeExpiredOrMissing, nil)
			}
			return nil, fmt.Errorf("load sms code: %w", err)
		}
		if !codesEqual(stored, code) {
			if err := countFailedAttempt(ctx, store, mobile, limit); err != nil {
				return nil, err
			}
			return nil, core.NewAuthError(core.ReasonCodeMismatch, nil)
		}

		// Only the caller whose Take returns the matched code wins
		taken, err := store.Take(ctx, key)
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return nil, core.NewAuthError(core.ReasonCodeExpiredOrMissing, nil)
			}
			return nil, fmt.Errorf("consume sms code: %w", err)
		}
		if !codesEqual(taken, code) {
			return nil, core.NewAuthError(core.ReasonCodeExpiredOrMissing, nil)
		}

		// The counter expires on its own
		_ = store.Delete(ctx, core.SmsLoginAttemptsKey(mobile))

		principal, err := authority.LoadByMobile(ctx, mobile)
		if err != nil {
			return nil, authorityError(err)
		}
		return principal, nil
	}
}

// OAuthCodeVerifier exchanges an authorization code with the provider and
// maps the resulting profile to a local principal
func OAuthCodeVerifier(provider ports.OAuthProvider, authority ports.IdentityAuthority) Verifier {
	return func(ctx context.Context, cred core.Credential) (*core.Principal, error) {
		c, ok := cred.(core.OAuthCodeCredential)
		if !ok {
			return nil, unsupported(cred)
		}

		code := strings.TrimSpace(c.Code)
		if code == "" {
			return nil, core.NewAuthError(core.ReasonProviderExchangeFailed, errors.New("empty authorization code"))
		}

		profile, err := provider.Exchange(ctx, code)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, core.NewAuthError(core.ReasonProviderExchangeFailed, err)
		}

		principal, err := authority.LoadByExternalProfile(ctx, profile)
		if err != nil {
			return nil, authorityError(err)
		}
		return principal, nil
	}
}

func countFailedAttempt(ctx context.Context, store ports.Store, mobile string, limit AttemptLimit) error {
	if limit.Max <= 0 {
		return nil
	}
	attemptsKey := core.SmsLoginAttemptsKey(mobile)

	n, err := store.Incr(ctx, attemptsKey, limit.Window)
	if err != nil {
		return fmt.Errorf("count sms attempts: %w", err)
	}
	if n < int64(limit.Max) {
		return nil
	}

	if err := store.Delete(ctx, core.SmsLoginCodeKey(mobile)); err != nil {
		return fmt.Errorf("burn sms code: %w", err)
	}
	return store.Delete(ctx, attemptsKey)
}

func codesEqual(a, b string) bool {
	return a != "" && subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unsupported(cred core.Credential) error {
	return core.NewAuthError(core.ReasonUnsupportedModality, fmt.Errorf("unexpected credential %T", cred))
}

func authorityError(err error) error {
	if errors.Is(err, core.ErrAuthenticationFailed) {
		return err
	}
	return fmt.Errorf("identity authority: %w", err)
}
