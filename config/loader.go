package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GATEKEEPER_TOKEN_ISSUER
const EnvPrefix = "GATEKEEPER"

// LoadConfig reads ./configs/config.yaml, or the file named by CONFIG_PATH,
// and applies environment overrides on top of the defaults
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// Without a file only defaults and the environment apply
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":9000")
	v.SetDefault("server.request_timeout", 10*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("store.driver", "redis")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")

	v.SetDefault("token.issuer", "gatekeeper")
	v.SetDefault("token.signing_key", "")
	v.SetDefault("token.access_ttl", 30*time.Minute)
	v.SetDefault("token.refresh_ttl", 7*24*time.Hour)
	v.SetDefault("token.leeway", 5*time.Second)
	v.SetDefault("token.rotate_refresh", true)

	v.SetDefault("captcha.kind", "circle")
	v.SetDefault("captcha.width", 130)
	v.SetDefault("captcha.height", 48)
	v.SetDefault("captcha.interfere_count", 2)
	v.SetDefault("captcha.text_alpha", 1.0)
	v.SetDefault("captcha.expire", 2*time.Minute)
	v.SetDefault("captcha.required", false)
	v.SetDefault("captcha.code.type", "random")
	v.SetDefault("captcha.code.length", 4)
	v.SetDefault("captcha.font.name", "gobold")
	v.SetDefault("captcha.font.size", 0)

	v.SetDefault("sms.enabled", true)
	v.SetDefault("sms.code_length", 4)
	v.SetDefault("sms.expire", 5*time.Minute)
	v.SetDefault("sms.max_attempts", 5)

	// Every key needs a default for AutomaticEnv to reach it on Unmarshal
	v.SetDefault("oauth.enabled", false)
	v.SetDefault("oauth.name", "")
	v.SetDefault("oauth.client_id", "")
	v.SetDefault("oauth.client_secret", "")
	v.SetDefault("oauth.auth_url", "")
	v.SetDefault("oauth.token_url", "")
	v.SetDefault("oauth.user_info_url", "")
	v.SetDefault("oauth.redirect_url", "")
	v.SetDefault("oauth.scopes", []string{})

	v.SetDefault("events.enabled", true)
	v.SetDefault("events.login_topic", "gatekeeper.login")
	v.SetDefault("events.logout_topic", "gatekeeper.logout")
	v.SetDefault("events.notification_topic", "gatekeeper.notifications")
}
