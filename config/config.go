package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/gatekeeper/adapters/captcha"
	"github.com/layer-3/gatekeeper/core"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Log     LogConfig     `mapstructure:"log"`
	Store   StoreConfig   `mapstructure:"store"`
	Token   TokenConfig   `mapstructure:"token"`
	Captcha CaptchaConfig `mapstructure:"captcha"`
	Sms     SmsConfig     `mapstructure:"sms"`
	OAuth   OAuthConfig   `mapstructure:"oauth"`
	Events  EventsConfig  `mapstructure:"events"`
	Users   []UserConfig  `mapstructure:"users"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// StoreConfig selects the challenge store; driver is "redis" or "memory"
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	RedisURL string `mapstructure:"redis_url"`
}

type TokenConfig struct {
	Issuer        string        `mapstructure:"issuer"`
	SigningKey    string        `mapstructure:"signing_key"` // PEM text or a file path; empty generates an ephemeral key
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Leeway        time.Duration `mapstructure:"leeway"`
	RotateRefresh bool          `mapstructure:"rotate_refresh"`
}

type CaptchaCodeConfig struct {
	Type   string `mapstructure:"type"`
	Length int    `mapstructure:"length"`
}

type CaptchaFontConfig struct {
	Name string  `mapstructure:"name"`
	Size float64 `mapstructure:"size"`
}

type CaptchaConfig struct {
	Kind           string            `mapstructure:"kind"`
	Width          int               `mapstructure:"width"`
	Height         int               `mapstructure:"height"`
	InterfereCount int               `mapstructure:"interfere_count"`
	TextAlpha      float64           `mapstructure:"text_alpha"`
	Expire         time.Duration     `mapstructure:"expire"`
	Required       bool              `mapstructure:"required"`
	Code           CaptchaCodeConfig `mapstructure:"code"`
	Font           CaptchaFontConfig `mapstructure:"font"`
}

type SmsConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	CodeLength  int           `mapstructure:"code_length"`
	Expire      time.Duration `mapstructure:"expire"`
	MaxAttempts int           `mapstructure:"max_attempts"` // Wrong codes tolerated before the code is burned; 0 disables the limit
}

type OAuthConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	Name         string   `mapstructure:"name"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	AuthURL      string   `mapstructure:"auth_url"`
	TokenURL     string   `mapstructure:"token_url"`
	UserInfoURL  string   `mapstructure:"user_info_url"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// EventsConfig controls audit events and queued notifications. When
// disabled, codes are written to the log instead of being queued.
type EventsConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	LoginTopic        string `mapstructure:"login_topic"`
	LogoutTopic       string `mapstructure:"logout_topic"`
	NotificationTopic string `mapstructure:"notification_topic"`
}

// UserConfig is a static directory entry
type UserConfig struct {
	ID           string   `mapstructure:"id"`
	Username     string   `mapstructure:"username"`
	PasswordHash string   `mapstructure:"password_hash"`
	Mobile       string   `mapstructure:"mobile"`
	Authorities  []string `mapstructure:"authorities"`
	Status       string   `mapstructure:"status"`
	External     []string `mapstructure:"external"`
}

// CaptchaKind returns the parsed default captcha kind
func (c *Config) CaptchaKind() (core.CaptchaKind, error) {
	return core.ParseCaptchaKind(c.Captcha.Kind)
}

// Validate checks the settings that would otherwise fail on first use
func (c *Config) Validate() error {
	var errs []error

	if _, err := c.CaptchaKind(); err != nil {
		errs = append(errs, err)
	}
	if !captcha.HasFont(c.Captcha.Font.Name) {
		errs = append(errs, fmt.Errorf("unknown captcha font %q: %w", c.Captcha.Font.Name, core.ErrInvalidConfiguration))
	}
	switch strings.ToLower(c.Captcha.Code.Type) {
	case "", captcha.GeneratorRandom, captcha.GeneratorMath:
	default:
		errs = append(errs, fmt.Errorf("unknown captcha code type %q: %w", c.Captcha.Code.Type, core.ErrInvalidConfiguration))
	}
	if c.Captcha.Expire <= 0 || c.Sms.Expire <= 0 {
		errs = append(errs, fmt.Errorf("code expiry must be positive: %w", core.ErrInvalidConfiguration))
	}
	if c.Sms.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("sms max attempts must not be negative: %w", core.ErrInvalidConfiguration))
	}
	switch c.Store.Driver {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q: %w", c.Store.Driver, core.ErrInvalidConfiguration))
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL < c.Token.AccessTTL {
		errs = append(errs, fmt.Errorf("refresh ttl must outlive a positive access ttl: %w", core.ErrInvalidConfiguration))
	}

	return errors.Join(errs...)
}
