package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"go.uber.org/zap"
)

const DefaultCaptchaExpiry = 2 * time.Minute

// CaptchaService issues image challenges and checks answers to them
type CaptchaService struct {
	store     ports.Store
	generator ports.CodeGenerator
	renderer  ports.CaptchaRenderer
	kind      core.CaptchaKind
	expire    time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewCaptchaService creates a captcha service rendering kind by default
func NewCaptchaService(
	store ports.Store,
	generator ports.CodeGenerator,
	renderer ports.CaptchaRenderer,
	kind core.CaptchaKind,
	expire time.Duration,
	logger *zap.Logger,
) (*CaptchaService, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("captcha kind %v: %w", kind, core.ErrInvalidConfiguration)
	}
	if expire <= 0 {
		expire = DefaultCaptchaExpiry
	}
	return &CaptchaService{
		store:     store,
		generator: generator,
		renderer:  renderer,
		kind:      kind,
		expire:    expire,
		logger:    logger.Named("captcha"),
		now:       time.Now,
	}, nil
}

// Generate issues a challenge of the configured kind
func (s *CaptchaService) Generate(ctx context.Context) (*core.CaptchaInfo, error) {
	return s.GenerateKind(ctx, s.kind, s.expire)
}

// GenerateNamed issues a challenge of a kind selected by name
func (s *CaptchaService) GenerateNamed(ctx context.Context, kindName string) (*core.CaptchaInfo, error) {
	kind, err := core.ParseCaptchaKind(kindName)
	if err != nil {
		return nil, err
	}
	return s.GenerateKind(ctx, kind, s.expire)
}

// GenerateKind renders a challenge and caches its solution for expire.
// Only the key and the image leave the service.
func (s *CaptchaService) GenerateKind(ctx context.Context, kind core.CaptchaKind, expire time.Duration) (*core.CaptchaInfo, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("captcha kind %v: %w", kind, core.ErrInvalidConfiguration)
	}
	if expire <= 0 {
		return nil, fmt.Errorf("captcha expiry must be positive: %w", core.ErrInvalidConfiguration)
	}

	code, err := s.generator.Generate()
	if err != nil {
		return nil, err
	}

	image, err := s.renderer.Render(kind, code.Text)
	if err != nil {
		return nil, fmt.Errorf("render captcha: %w", err)
	}

	challenge := core.Challenge{
		ID:               strings.ReplaceAll(uuid.New().String(), "-", ""),
		ExpectedSolution: code.Answer,
		Kind:             kind,
		CreatedAt:        s.now(),
		TTL:              expire,
	}

	if err := s.store.Set(ctx, core.CaptchaCodeKey(challenge.ID), challenge.ExpectedSolution, challenge.TTL); err != nil {
		return nil, fmt.Errorf("cache captcha: %w", err)
	}

	s.logger.Debug("captcha issued",
		zap.String("captcha_key", challenge.ID),
		zap.Stringer("kind", challenge.Kind),
		zap.Duration("ttl", challenge.TTL),
	)

	return &core.CaptchaInfo{
		CaptchaKey:    challenge.ID,
		CaptchaBase64: image,
	}, nil
}

// Verify consumes the challenge stored under key. A challenge allows a
// single attempt, right or wrong.
func (s *CaptchaService) Verify(ctx context.Context, key, input string) error {
	key = strings.TrimSpace(key)
	if key == "" || strings.TrimSpace(input) == "" {
		return core.NewAuthError(core.ReasonCaptchaInvalid, nil)
	}

	answer, err := s.store.Take(ctx, core.CaptchaCodeKey(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NewAuthError(core.ReasonCaptchaInvalid, errors.New("captcha expired or already used"))
		}
		return fmt.Errorf("consume captcha: %w", err)
	}

	if !s.generator.Verify(answer, input) {
		return core.NewAuthError(core.ReasonCaptchaInvalid, nil)
	}
	return nil
}
