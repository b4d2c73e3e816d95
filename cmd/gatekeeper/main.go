package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/layer-3/gatekeeper/adapters/captcha"
	"github.com/layer-3/gatekeeper/adapters/events"
	"github.com/layer-3/gatekeeper/adapters/identity"
	"github.com/layer-3/gatekeeper/adapters/notify"
	"github.com/layer-3/gatekeeper/adapters/oauth"
	"github.com/layer-3/gatekeeper/adapters/store"
	"github.com/layer-3/gatekeeper/adapters/tokenizer"
	"github.com/layer-3/gatekeeper/config"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/internal/logger"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/layer-3/gatekeeper/service"
	transport "github.com/layer-3/gatekeeper/transport/http"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("gatekeeper stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var redisClient *redis.Client
	if cfg.Store.Driver == "redis" {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to reach redis: %w", err)
		}
	}

	var challengeStore ports.Store
	if redisClient != nil {
		challengeStore = store.NewRedisStore(redisClient)
	} else {
		challengeStore = store.NewMemoryStore()
	}

	// Audit events and queued notifications go to redis streams, or to an
	// in-process bus when running without redis
	var publisher message.Publisher
	if cfg.Events.Enabled {
		wmLogger := watermill.NewStdLogger(false, false)
		if redisClient != nil {
			p, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: redisClient}, wmLogger)
			if err != nil {
				return fmt.Errorf("failed to create redis publisher: %w", err)
			}
			publisher = p
		} else {
			publisher = gochannel.NewGoChannel(gochannel.Config{}, wmLogger)
		}
		defer publisher.Close()
	}

	signKey, err := tokenizer.LoadSigningKey(cfg.Token.SigningKey)
	if err != nil {
		return err
	}
	if cfg.Token.SigningKey == "" {
		zl.Warn("no signing key configured, using an ephemeral key")
	}

	tokens := service.NewTokenManager(
		tokenizer.NewJWTTokenizer(signKey, cfg.Token.Issuer, cfg.Token.Leeway),
		challengeStore,
		service.TokenConfig{
			AccessTTL:     cfg.Token.AccessTTL,
			RefreshTTL:    cfg.Token.RefreshTTL,
			RotateRefresh: cfg.Token.RotateRefresh,
		},
	)

	directory, err := newDirectory(cfg.Users)
	if err != nil {
		return err
	}

	captchaSvc, err := newCaptchaService(cfg, challengeStore, zl)
	if err != nil {
		return err
	}

	var sms *service.SmsCodeService
	if cfg.Sms.Enabled {
		var sender ports.NotificationSender
		if publisher != nil {
			sender = notify.NewQueueSender(publisher, cfg.Events.NotificationTopic)
		} else {
			sender = notify.NewLogSender(zl)
		}
		smsGen, err := captcha.NewRandomGenerator(captcha.NumericAlphabet, cfg.Sms.CodeLength)
		if err != nil {
			return err
		}
		sms = service.NewSmsCodeService(challengeStore, sender, smsGen, cfg.Sms.Expire, zl)
	}

	var eventPub ports.EventPublisher
	if publisher != nil {
		eventPub = events.NewWatermillPublisher(publisher, cfg.Events.LoginTopic, cfg.Events.LogoutTopic)
	}

	authService := service.NewAuthService(tokens, captchaSvc, sms, eventPub, zl)

	var loginCaptcha *service.CaptchaService
	if cfg.Captcha.Required {
		loginCaptcha = captchaSvc
	}
	authService.RegisterVerifier(core.ModalityPassword, service.PasswordVerifier(directory, loginCaptcha))
	if sms != nil {
		authService.RegisterVerifier(core.ModalitySms, service.SmsVerifier(challengeStore, directory, service.AttemptLimit{
			Max:    cfg.Sms.MaxAttempts,
			Window: cfg.Sms.Expire,
		}))
	}
	if cfg.OAuth.Enabled {
		provider, err := oauth.NewProvider(oauth.Config{
			Name:         cfg.OAuth.Name,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			AuthURL:      cfg.OAuth.AuthURL,
			TokenURL:     cfg.OAuth.TokenURL,
			UserInfoURL:  cfg.OAuth.UserInfoURL,
			RedirectURL:  cfg.OAuth.RedirectURL,
			Scopes:       cfg.OAuth.Scopes,
		})
		if err != nil {
			return err
		}
		authService.RegisterVerifier(core.ModalityOAuth, service.OAuthCodeVerifier(provider, directory))
	}

	// Setup Gin router
	router := transport.SetupRouter(authService, zl, cfg.Server.RequestTimeout)
	srv := &http.Server{Addr: cfg.Server.Addr, Handler: router}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("listening", zap.String("addr", cfg.Server.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newDirectory(users []config.UserConfig) (*identity.Directory, error) {
	records := make([]identity.User, 0, len(users))
	for _, u := range users {
		records = append(records, identity.User{
			ID:           u.ID,
			Username:     u.Username,
			PasswordHash: u.PasswordHash,
			Mobile:       u.Mobile,
			Authorities:  u.Authorities,
			Status:       identity.Status(u.Status),
			External:     u.External,
		})
	}
	return identity.NewDirectory(records)
}

func newCaptchaService(cfg *config.Config, s ports.Store, zl *zap.Logger) (*service.CaptchaService, error) {
	kind, err := cfg.CaptchaKind()
	if err != nil {
		return nil, err
	}
	gen, err := captcha.NewCodeGenerator(cfg.Captcha.Code.Type, cfg.Captcha.Code.Length)
	if err != nil {
		return nil, err
	}
	renderer, err := captcha.NewRenderer(captcha.RendererConfig{
		Width:          cfg.Captcha.Width,
		Height:         cfg.Captcha.Height,
		InterfereCount: cfg.Captcha.InterfereCount,
		TextAlpha:      cfg.Captcha.TextAlpha,
		FontName:       cfg.Captcha.Font.Name,
		FontSize:       cfg.Captcha.Font.Size,
	})
	if err != nil {
		return nil, err
	}
	return service.NewCaptchaService(s, gen, renderer, kind, cfg.Captcha.Expire, zl)
}
