package tokenizer

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const AudienceAccess = "session:access"
const AudienceRefresh = "session:refresh"

// JWTTokenizer implements the Tokenizer interface using ES256 JWTs
type JWTTokenizer struct {
	signKey *ecdsa.PrivateKey
	issuer  string
	leeway  time.Duration
}

// NewJWTTokenizer creates a new JWT tokenizer
func NewJWTTokenizer(signKey *ecdsa.PrivateKey, issuer string, leeway time.Duration) ports.Tokenizer {
	return &JWTTokenizer{signKey: signKey, issuer: issuer, leeway: leeway}
}

// SessionToAccessToken converts a Session to an access JWT token
func (j *JWTTokenizer) SessionToAccessToken(session *core.Session) (string, error) {
	claims := j.claims(session, session.ID, session.AccessExpiry, AudienceAccess)
	claims.RefreshID = session.RefreshID

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// SessionToRefreshToken converts a Session to a refresh JWT token
func (j *JWTTokenizer) SessionToRefreshToken(session *core.Session) (string, error) {
	claims := j.claims(session, session.RefreshID, session.RefreshExpiry, AudienceRefresh)

	signedToken, err := jwt.NewWithClaims(jwt.SigningMethodES256, claims).SignedString(j.signKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// ParseToken verifies and decodes an access or refresh token
func (j *JWTTokenizer) ParseToken(tokenStr string) (*core.TokenInfo, error) {
	return j.parse(tokenStr, true)
}

// ParseExpiredToken verifies the signing method, signature and issuer but
// accepts a token past its expiry
func (j *JWTTokenizer) ParseExpiredToken(tokenStr string) (*core.TokenInfo, error) {
	return j.parse(tokenStr, false)
}

func (j *JWTTokenizer) parse(tokenStr string, checkExpiry bool) (*core.TokenInfo, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, core.ErrInvalidTokenFormat
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
	}
	if checkExpiry {
		options = append(options, jwt.WithExpirationRequired(), jwt.WithIssuedAt())
		if j.issuer != "" {
			options = append(options, jwt.WithIssuer(j.issuer))
		}
		if j.leeway > 0 {
			options = append(options, jwt.WithLeeway(j.leeway))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenStr, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return &j.signKey.PublicKey, nil
	}, options...)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidTokenFormat, err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, core.ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, core.ErrInvalidSignature
		default:
			return nil, fmt.Errorf("%w: %v", core.ErrInvalidToken, err)
		}
	}

	// Validate token
	if !token.Valid {
		return nil, core.ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return nil, fmt.Errorf("%w: invalid claims type", core.ErrInvalidToken)
	}

	kind, err := kindFromAudience(claims.Audience)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" || claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing identifiers", core.ErrInvalidToken)
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing timestamps", core.ErrInvalidToken)
	}
	if !checkExpiry && j.issuer != "" && claims.Issuer != j.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer %q", core.ErrInvalidToken, claims.Issuer)
	}

	info := &core.TokenInfo{
		ID:        claims.ID,
		Kind:      kind,
		RefreshID: claims.RefreshID,
		Principal: core.Principal{
			ID:          claims.UserID,
			Username:    claims.Username,
			Authorities: claims.Authorities,
			IssuedAt:    claims.IssuedAt.Time,
		},
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}

	return info, nil
}

func (j *JWTTokenizer) claims(session *core.Session, id string, expiresAt time.Time, audience string) TokenClaims {
	return TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   session.Principal.Username,
			ID:        id,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			Audience:  jwt.ClaimStrings{audience},
		},
		UserID:      session.Principal.ID,
		Username:    session.Principal.Username,
		Authorities: session.Principal.Authorities,
	}
}

func kindFromAudience(aud jwt.ClaimStrings) (core.TokenKind, error) {
	if len(aud) != 1 {
		return "", fmt.Errorf("%w: unexpected audience", core.ErrInvalidToken)
	}
	switch aud[0] {
	case AudienceAccess:
		return core.TokenKindAccess, nil
	case AudienceRefresh:
		return core.TokenKindRefresh, nil
	default:
		return "", fmt.Errorf("%w: unexpected audience %q", core.ErrInvalidToken, aud[0])
	}
}
