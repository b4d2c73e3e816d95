package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/layer-3/gatekeeper/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeProvider(t *testing.T) *httptest.Server {
	t.Helper()

	used := map[string]bool{}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		code := r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		if code != "good-code" || used[code] {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		used[code] = true
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "provider-access",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer provider-access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"openid": "openid-1", "nickname": "bob"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExchange(t *testing.T) {
	srv := newFakeProvider(t)
	provider, err := NewProvider(Config{
		Name:        "wechat",
		ClientID:    "client",
		TokenURL:    srv.URL + "/token",
		UserInfoURL: srv.URL + "/userinfo",
	})
	require.NoError(t, err)

	profile, err := provider.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "wechat", profile.Provider)
	assert.Equal(t, "openid-1", profile.ProviderUserID)
	assert.Equal(t, "bob", profile.Username)

	// authorization codes are single use at the provider
	_, err = provider.Exchange(context.Background(), "good-code")
	assert.Error(t, err)
}

func TestExchangeRejectedCode(t *testing.T) {
	srv := newFakeProvider(t)
	provider, err := NewProvider(Config{
		Name:        "wechat",
		ClientID:    "client",
		TokenURL:    srv.URL + "/token",
		UserInfoURL: srv.URL + "/userinfo",
	})
	require.NoError(t, err)

	_, err = provider.Exchange(context.Background(), "bad-code")
	assert.ErrorContains(t, err, "exchange code")
}

func TestNewProviderRequiresEndpoints(t *testing.T) {
	_, err := NewProvider(Config{Name: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}
