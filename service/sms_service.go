package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"go.uber.org/zap"
)

const (
	DefaultSmsCodeExpiry = 5 * time.Minute

	PurposeLogin = "login"
)

// SmsCodeService issues one-time login codes
type SmsCodeService struct {
	store     ports.Store
	sender    ports.NotificationSender
	generator ports.CodeGenerator
	expire    time.Duration
	logger    *zap.Logger
}

// NewSmsCodeService creates a new SMS code service
func NewSmsCodeService(
	store ports.Store,
	sender ports.NotificationSender,
	generator ports.CodeGenerator,
	expire time.Duration,
	logger *zap.Logger,
) *SmsCodeService {
	if expire <= 0 {
		expire = DefaultSmsCodeExpiry
	}
	return &SmsCodeService{
		store:     store,
		sender:    sender,
		generator: generator,
		expire:    expire,
		logger:    logger.Named("sms"),
	}
}

// SendLoginCode caches a fresh code for mobile and asks the sender to
// deliver it. A delivery failure is logged only; the cached code stays
// valid.
func (s *SmsCodeService) SendLoginCode(ctx context.Context, mobile string) error {
	mobile = strings.TrimSpace(mobile)
	if mobile == "" {
		return fmt.Errorf("%w: mobile is required", core.ErrInvalidRequest)
	}

	code, err := s.generator.Generate()
	if err != nil {
		return err
	}

	if err := s.store.Set(ctx, core.SmsLoginCodeKey(mobile), code.Answer, s.expire); err != nil {
		return fmt.Errorf("cache sms code: %w", err)
	}
	// A fresh code gets a fresh attempt budget
	if err := s.store.Delete(ctx, core.SmsLoginAttemptsKey(mobile)); err != nil {
		s.logger.Warn("failed to reset sms attempts", zap.Error(err))
	}

	if err := s.sender.SendCode(ctx, mobile, PurposeLogin, map[string]string{"code": code.Text}); err != nil {
		s.logger.Error("failed to deliver sms login code", zap.Error(err))
	}

	return nil
}
