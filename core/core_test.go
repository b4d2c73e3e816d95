package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCaptchaKind(t *testing.T) {
	tests := []struct {
		name string
		want CaptchaKind
	}{
		{"circle", CaptchaCircle},
		{"GIF", CaptchaGif},
		{" Line ", CaptchaLine},
		{"shear", CaptchaShear},
	}
	for _, tt := range tests {
		kind, err := ParseCaptchaKind(tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, kind)
		assert.True(t, kind.Valid())
	}

	for _, name := range []string{"hexagon", "", "circle2"} {
		_, err := ParseCaptchaKind(name)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, name)
	}

	assert.False(t, CaptchaKind(0).Valid())
	assert.Equal(t, "CaptchaKind(9)", CaptchaKind(9).String())
}

func TestAuthError(t *testing.T) {
	cause := errors.New("wrong password")
	err := fmt.Errorf("login: %w", NewAuthError(ReasonBadCredentials, cause))

	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "bad_credentials")

	reason, ok := ReasonOf(err)
	require.True(t, ok)
	assert.Equal(t, ReasonBadCredentials, reason)

	_, ok = ReasonOf(ErrInvalidTokenFormat)
	assert.False(t, ok)
	assert.NotErrorIs(t, ErrInvalidTokenFormat, ErrAuthenticationFailed)
}

func TestSecurityContextBearerToken(t *testing.T) {
	tests := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"  Bearer abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwdw==", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		token, ok := NewSecurityContext(tt.header).BearerToken()
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.token, token, tt.header)
	}
}

func TestSecurityContextLifecycle(t *testing.T) {
	_, ok := SecurityContextFrom(context.Background())
	assert.False(t, ok)

	sc := NewSecurityContext("Bearer token")
	ctx := WithSecurityContext(context.Background(), sc)

	got, ok := SecurityContextFrom(ctx)
	require.True(t, ok)
	assert.Same(t, sc, got)

	got.SetPrincipal(&Principal{ID: "1", Username: "admin"})
	assert.Equal(t, "admin", sc.Principal().Username)

	sc.Clear()
	assert.Nil(t, sc.Principal())
	_, ok = sc.BearerToken()
	assert.False(t, ok)
}

func TestPrincipal(t *testing.T) {
	p := &Principal{ID: "1", Username: "admin", Authorities: []string{"ROLE_ADMIN"}}
	assert.True(t, p.Valid())
	assert.True(t, p.HasAuthority("ROLE_ADMIN"))
	assert.False(t, p.HasAuthority("ROLE_USER"))

	var nilPrincipal *Principal
	assert.False(t, nilPrincipal.Valid())
	assert.False(t, (&Principal{Username: "x"}).Valid())
}
