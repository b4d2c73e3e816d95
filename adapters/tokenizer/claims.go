package tokenizer

import "github.com/golang-jwt/jwt/v5"

// TokenClaims carries the principal in both access and refresh tokens.
// The audience tells the two kinds apart.
type TokenClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"uid"`
	Username    string   `json:"username"`
	Authorities []string `json:"authorities,omitempty"`
	RefreshID   string   `json:"rid,omitempty"` // ID of the refresh token, access tokens only
}
