package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"golang.org/x/oauth2"
)

// Config describes an authorization-code provider
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
}

// Provider exchanges authorization codes using oauth2.Config and reads the
// user's profile from the provider's userinfo endpoint
type Provider struct {
	name        string
	config      *oauth2.Config
	userInfoURL string
}

// NewProvider creates a new authorization-code provider
func NewProvider(cfg Config) (ports.OAuthProvider, error) {
	if cfg.ClientID == "" || cfg.TokenURL == "" || cfg.UserInfoURL == "" {
		return nil, fmt.Errorf("oauth provider %q: client id, token url and userinfo url are required: %w", cfg.Name, core.ErrInvalidConfiguration)
	}

	return &Provider{
		name: cfg.Name,
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: cfg.UserInfoURL,
	}, nil
}

// Exchange trades the code for a token and fetches the profile with it
func (p *Provider) Exchange(ctx context.Context, code string) (*core.ExternalProfile, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}

	resp, err := p.config.Client(ctx, token).Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("user info status: %s", resp.Status)
	}

	var info struct {
		ID       string `json:"id"`
		Sub      string `json:"sub"`
		OpenID   string `json:"openid"`
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
		Email    string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}

	profile := &core.ExternalProfile{
		Provider:       p.name,
		ProviderUserID: firstNonEmpty(info.ID, info.Sub, info.OpenID),
		Username:       firstNonEmpty(info.Name, info.Nickname),
		Email:          info.Email,
	}
	if profile.ProviderUserID == "" {
		return nil, errors.New("user info carries no user id")
	}

	return profile, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
