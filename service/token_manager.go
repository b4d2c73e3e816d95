package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

const (
	DefaultAccessTTL  = 30 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour

	tokenType = "Bearer"
)

// TokenConfig controls token lifetimes
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RotateRefresh revokes a refresh token once it has been exchanged
	RotateRefresh bool
}

// TokenManager issues, validates, refreshes and revokes token pairs.
// Revoked token IDs live in the store until the token would have expired.
type TokenManager struct {
	tokenizer ports.Tokenizer
	store     ports.Store
	cfg       TokenConfig
	now       func() time.Time
}

// NewTokenManager creates a new token manager
func NewTokenManager(tokenizer ports.Tokenizer, store ports.Store, cfg TokenConfig) *TokenManager {
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	return &TokenManager{
		tokenizer: tokenizer,
		store:     store,
		cfg:       cfg,
		now:       time.Now,
	}
}

// GenerateToken mints a new access/refresh pair for principal
func (m *TokenManager) GenerateToken(ctx context.Context, principal *core.Principal) (*core.IssuedToken, error) {
	if !principal.Valid() {
		return nil, fmt.Errorf("%w: principal requires id and username", core.ErrInvalidRequest)
	}

	now := m.now()
	session := &core.Session{
		ID:            uuid.New().String(),
		RefreshID:     uuid.New().String(),
		Principal:     *principal,
		IssuedAt:      now,
		AccessExpiry:  now.Add(m.cfg.AccessTTL),
		RefreshExpiry: now.Add(m.cfg.RefreshTTL),
	}

	accessToken, err := m.tokenizer.SessionToAccessToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := m.tokenizer.SessionToRefreshToken(session)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	return &core.IssuedToken{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresIn:    int64(m.cfg.AccessTTL / time.Second),
	}, nil
}

// ValidateToken reports whether token is authentic, unexpired and not
// revoked. Only structurally broken tokens and store failures are errors.
func (m *TokenManager) ValidateToken(ctx context.Context, token string) (bool, error) {
	_, err := m.Inspect(ctx, token)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, core.ErrInvalidTokenFormat), errors.Is(err, core.ErrStoreOperationFailed):
		return false, err
	default:
		return false, nil
	}
}

// Inspect validates token and returns its content
func (m *TokenManager) Inspect(ctx context.Context, token string) (*core.TokenInfo, error) {
	info, err := m.tokenizer.ParseToken(token)
	if err != nil {
		return nil, err
	}

	revoked, err := m.isRevoked(ctx, info)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}

	return info, nil
}

// RefreshToken exchanges a valid refresh token for a brand-new pair
func (m *TokenManager) RefreshToken(ctx context.Context, refreshToken string) (*core.IssuedToken, error) {
	info, err := m.Inspect(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, core.ErrStoreOperationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", core.ErrRefreshTokenInvalid, err)
	}
	if info.Kind != core.TokenKindRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", core.ErrRefreshTokenInvalid)
	}

	principal := info.Principal
	principal.IssuedAt = m.now()

	issued, err := m.GenerateToken(ctx, &principal)
	if err != nil {
		return nil, err
	}

	if m.cfg.RotateRefresh {
		if err := m.revoke(ctx, info.ID, info.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
		}
	}

	return issued, nil
}

// BlacklistToken revokes token for the rest of its lifetime. Revoking an
// access token also revokes the refresh token minted with it, even when the
// access token itself has already expired. Revoking twice only rewrites the
// entry.
func (m *TokenManager) BlacklistToken(ctx context.Context, token string) error {
	info, err := m.parseForRevocation(token)
	if err != nil {
		return err
	}
	return m.revokeInfo(ctx, info)
}

// parseForRevocation parses token, accepting an authentic token past its expiry
func (m *TokenManager) parseForRevocation(token string) (*core.TokenInfo, error) {
	info, err := m.tokenizer.ParseToken(token)
	if errors.Is(err, core.ErrTokenExpired) {
		return m.tokenizer.ParseExpiredToken(token)
	}
	return info, err
}

// inspectForLogout resolves the token a logout should revoke. Expired
// tokens are accepted; revoked ones yield core.ErrTokenRevoked.
func (m *TokenManager) inspectForLogout(ctx context.Context, token string) (*core.TokenInfo, error) {
	info, err := m.parseForRevocation(token)
	if err != nil {
		return nil, err
	}

	revoked, err := m.isRevoked(ctx, info)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, core.ErrTokenRevoked
	}
	return info, nil
}

func (m *TokenManager) revokeInfo(ctx context.Context, info *core.TokenInfo) error {
	if err := m.revoke(ctx, info.ID, info.ExpiresAt); err != nil {
		return err
	}
	if info.Kind == core.TokenKindAccess && info.RefreshID != "" {
		// The refresh token was minted together with this one
		return m.revoke(ctx, info.RefreshID, info.IssuedAt.Add(m.cfg.RefreshTTL))
	}
	return nil
}

func (m *TokenManager) revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	return m.store.Set(ctx, core.TokenBlacklistKey(tokenID), "1", ttl)
}

func (m *TokenManager) isRevoked(ctx context.Context, info *core.TokenInfo) (bool, error) {
	ids := []string{info.ID}
	if info.RefreshID != "" {
		ids = append(ids, info.RefreshID)
	}

	for _, id := range ids {
		_, err := m.store.Get(ctx, core.TokenBlacklistKey(id))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, core.ErrNotFound):
			continue
		default:
			return false, err
		}
	}
	return false, nil
}
