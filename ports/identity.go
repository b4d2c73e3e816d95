package ports

import (
	"context"

	"github.com/layer-3/gatekeeper/core"
)

// IdentityAuthority owns the user directory. Rejections are reported as
// *core.AuthError so the reason reaches the caller unchanged.
type IdentityAuthority interface {
	// Authenticate checks a username/password pair
	Authenticate(ctx context.Context, username, password string) (*core.Principal, error)

	// LoadByMobile resolves the account bound to a mobile number
	LoadByMobile(ctx context.Context, mobile string) (*core.Principal, error)

	// LoadByExternalProfile maps a third-party profile to a local account
	LoadByExternalProfile(ctx context.Context, profile *core.ExternalProfile) (*core.Principal, error)
}

// OAuthProvider exchanges an authorization code for a third-party profile
type OAuthProvider interface {
	Exchange(ctx context.Context, code string) (*core.ExternalProfile, error)
}

// NotificationSender delivers one-time codes to users
type NotificationSender interface {
	SendCode(ctx context.Context, destination string, purpose string, params map[string]string) error
}
