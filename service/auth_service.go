package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"go.uber.org/zap"
)

// AuthService orchestrates login, refresh and logout. It picks the verifier
// purely by the credential's modality; there is no fallback between them.
type AuthService struct {
	verifiers map[core.Modality]Verifier
	tokens    *TokenManager
	captcha   *CaptchaService
	sms       *SmsCodeService
	eventPub  ports.EventPublisher
	logger    *zap.Logger
}

// NewAuthService creates a new authentication service. eventPub may be nil.
func NewAuthService(
	tokens *TokenManager,
	captcha *CaptchaService,
	sms *SmsCodeService,
	eventPub ports.EventPublisher,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		verifiers: make(map[core.Modality]Verifier),
		tokens:    tokens,
		captcha:   captcha,
		sms:       sms,
		eventPub:  eventPub,
		logger:    logger.Named("auth"),
	}
}

// RegisterVerifier binds a verifier to a modality, replacing any previous one.
// Registration happens during wiring, before requests are served.
func (s *AuthService) RegisterVerifier(modality core.Modality, verifier Verifier) {
	s.verifiers[modality] = verifier
}

// Tokens exposes the token manager to the transport layer
func (s *AuthService) Tokens() *TokenManager {
	return s.tokens
}

// Login verifies cred, mints a token pair and records the principal in the
// request's security context
func (s *AuthService) Login(ctx context.Context, cred core.Credential) (*core.IssuedToken, error) {
	if cred == nil {
		return nil, core.NewAuthError(core.ReasonUnsupportedModality, errors.New("no credential"))
	}

	modality := cred.Modality()
	verify, ok := s.verifiers[modality]
	if !ok {
		return nil, core.NewAuthError(core.ReasonUnsupportedModality, fmt.Errorf("modality %q is not enabled", modality))
	}

	principal, err := verify(ctx, cred)
	if err != nil {
		if reason, ok := core.ReasonOf(err); ok {
			s.logger.Info("login rejected", zap.String("modality", string(modality)), zap.String("reason", string(reason)))
		} else {
			s.logger.Error("login failed", zap.String("modality", string(modality)), zap.Error(err))
		}
		return nil, err
	}

	issued, err := s.tokens.GenerateToken(ctx, principal)
	if err != nil {
		return nil, err
	}

	if sc, ok := core.SecurityContextFrom(ctx); ok {
		sc.SetPrincipal(principal)
	}

	if s.eventPub != nil {
		if err := s.eventPub.PublishLogin(ctx, principal, modality); err != nil {
			s.logger.Warn("failed to publish login event", zap.Error(err))
		}
	}

	return issued, nil
}

// LoginByPassword logs in with a username and password
func (s *AuthService) LoginByPassword(ctx context.Context, username, password, captchaKey, captchaCode string) (*core.IssuedToken, error) {
	return s.Login(ctx, core.PasswordCredential{
		Username:    username,
		Password:    password,
		CaptchaKey:  captchaKey,
		CaptchaCode: captchaCode,
	})
}

// LoginBySms logs in with a one-time code sent to mobile
func (s *AuthService) LoginBySms(ctx context.Context, mobile, code string) (*core.IssuedToken, error) {
	return s.Login(ctx, core.SmsCredential{Mobile: mobile, Code: code})
}

// LoginByOAuth logs in with a third-party authorization code
func (s *AuthService) LoginByOAuth(ctx context.Context, code string) (*core.IssuedToken, error) {
	return s.Login(ctx, core.OAuthCodeCredential{Code: code})
}

// SendSmsLoginCode issues a login code for mobile
func (s *AuthService) SendSmsLoginCode(ctx context.Context, mobile string) error {
	if s.sms == nil {
		return core.NewAuthError(core.ReasonUnsupportedModality, errors.New("sms login is not enabled"))
	}
	return s.sms.SendLoginCode(ctx, mobile)
}

// Captcha issues an image challenge. An empty kind uses the configured one.
func (s *AuthService) Captcha(ctx context.Context, kind string) (*core.CaptchaInfo, error) {
	if s.captcha == nil {
		return nil, fmt.Errorf("captcha is not enabled: %w", core.ErrInvalidConfiguration)
	}
	if kind == "" {
		return s.captcha.Generate(ctx)
	}
	return s.captcha.GenerateNamed(ctx, kind)
}

// RefreshToken exchanges a refresh token for a new pair
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*core.IssuedToken, error) {
	return s.tokens.RefreshToken(ctx, refreshToken)
}

// Logout revokes the bearer token of the current request and clears the
// security context. An expired access token still takes its refresh token
// down with it. A missing, malformed or already revoked token is a silent
// no-op; logout never fails visibly.
func (s *AuthService) Logout(ctx context.Context) {
	sc, ok := core.SecurityContextFrom(ctx)
	if !ok {
		return
	}
	token, ok := sc.BearerToken()
	if !ok {
		return
	}
	defer sc.Clear()

	info, err := s.tokens.inspectForLogout(ctx, token)
	if err != nil {
		s.logger.Debug("logout ignored", zap.Error(err))
		return
	}

	if err := s.tokens.revokeInfo(ctx, info); err != nil {
		s.logger.Error("failed to revoke token on logout", zap.String("token_id", info.ID), zap.Error(err))
		return
	}

	if s.eventPub != nil {
		principal := info.Principal
		if err := s.eventPub.PublishLogout(ctx, &principal, info.ID); err != nil {
			s.logger.Warn("failed to publish logout event", zap.Error(err))
		}
	}
}
