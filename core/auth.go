package core

import (
	"strings"
	"time"
)

// Modality is the declared login method of a credential
type Modality string

const (
	ModalityPassword Modality = "password"
	ModalitySms      Modality = "sms"
	ModalityOAuth    Modality = "oauth"
)

// Principal is the identity produced by a successful verification
type Principal struct {
	ID          string    // Stable user identifier
	Username    string    // Login name
	Authorities []string  // Granted roles and permissions
	IssuedAt    time.Time // When the principal was verified
}

// HasAuthority reports whether the principal was granted authority
func (p *Principal) HasAuthority(authority string) bool {
	for _, a := range p.Authorities {
		if a == authority {
			return true
		}
	}
	return false
}

// Valid reports whether the principal can be embedded into a token
func (p *Principal) Valid() bool {
	return p != nil && strings.TrimSpace(p.ID) != "" && strings.TrimSpace(p.Username) != ""
}

// Credential is a raw credential submitted at the request boundary.
// The set of variants is closed: PasswordCredential, SmsCredential and
// OAuthCodeCredential.
type Credential interface {
	Modality() Modality
	credential()
}

// PasswordCredential carries a username/password pair and, when captcha
// protection is enabled, the captcha challenge answer.
type PasswordCredential struct {
	Username    string
	Password    string
	CaptchaKey  string
	CaptchaCode string
}

// SmsCredential carries a mobile number and the one-time code sent to it
type SmsCredential struct {
	Mobile string
	Code   string
}

// OAuthCodeCredential carries a one-time authorization code from a third-party provider
type OAuthCodeCredential struct {
	Code string
}

func (PasswordCredential) Modality() Modality  { return ModalityPassword }
func (SmsCredential) Modality() Modality       { return ModalitySms }
func (OAuthCodeCredential) Modality() Modality { return ModalityOAuth }

func (PasswordCredential) credential()  {}
func (SmsCredential) credential()       {}
func (OAuthCodeCredential) credential() {}

// ExternalProfile is the profile returned by an OAuth provider
type ExternalProfile struct {
	Provider       string
	ProviderUserID string
	Username       string
	Email          string
}

// Session binds a principal to a pair of token identifiers
type Session struct {
	ID            string    // JWT ID of the access token
	RefreshID     string    // JWT ID of the refresh token
	Principal     Principal // Identity embedded in both tokens
	IssuedAt      time.Time // When the pair was minted
	AccessExpiry  time.Time // When the access token expires
	RefreshExpiry time.Time // When the refresh token expires
}

// TokenKind distinguishes access tokens from refresh tokens
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenInfo is the verified content of a signed token
type TokenInfo struct {
	ID        string
	Kind      TokenKind
	RefreshID string // Set on access tokens only
	Principal Principal
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// IssuedToken is the access/refresh pair returned to the client
type IssuedToken struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Challenge is a server-generated secret the client must echo back
type Challenge struct {
	ID               string
	ExpectedSolution string
	Kind             CaptchaKind
	CreatedAt        time.Time
	TTL              time.Duration
}

// CaptchaInfo is what the client receives for a captcha challenge.
// The solution never leaves the server.
type CaptchaInfo struct {
	CaptchaKey    string `json:"captcha_key"`
	CaptchaBase64 string `json:"captcha_base64"`
}
