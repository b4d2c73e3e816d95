package ports

import "github.com/layer-3/gatekeeper/core"

// Tokenizer converts between sessions and signed tokens
type Tokenizer interface {
	SessionToAccessToken(session *core.Session) (string, error)
	SessionToRefreshToken(session *core.Session) (string, error)

	// ParseToken verifies the signature and expiry of an access or refresh
	// token. Structurally broken input yields core.ErrInvalidTokenFormat.
	ParseToken(token string) (*core.TokenInfo, error)

	// ParseExpiredToken is ParseToken without the expiry check. Revocation
	// uses it to reach the refresh token linked to an expired access token.
	ParseExpiredToken(token string) (*core.TokenInfo, error)
}
