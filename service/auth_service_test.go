package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/gatekeeper/adapters/identity"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	mr        *miniredis.Miniredis
	svc       *AuthService
	store     ports.Store
	authority *MockIdentityAuthority
	events    *MockEventPublisher
	sender    *MockNotificationSender
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	mr, s := newTestStore(t)

	authority := new(MockIdentityAuthority)
	events := new(MockEventPublisher)
	sender := new(MockNotificationSender)

	captchaSvc, err := NewCaptchaService(s, fixedGenerator{code: newCode("abcd")}, &stubRenderer{}, core.CaptchaCircle, time.Minute, nopLogger)
	require.NoError(t, err)
	sms := NewSmsCodeService(s, sender, fixedGenerator{code: newCode("123456")}, time.Minute, nopLogger)

	svc := NewAuthService(newTestTokenManager(t, s, true), captchaSvc, sms, events, nopLogger)
	svc.RegisterVerifier(core.ModalityPassword, PasswordVerifier(authority, nil))
	svc.RegisterVerifier(core.ModalitySms, SmsVerifier(s, authority, AttemptLimit{Max: 3, Window: time.Minute}))

	return &authFixture{mr: mr, svc: svc, store: s, authority: authority, events: events, sender: sender}
}

func requestContext(authorization string) (context.Context, *core.SecurityContext) {
	sc := core.NewSecurityContext(authorization)
	return core.WithSecurityContext(context.Background(), sc), sc
}

func TestLoginByPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.authority.On("Authenticate", mock.Anything, "admin", "secret").Return(testPrincipal(), nil)
	f.events.On("PublishLogin", mock.Anything, mock.Anything, core.ModalityPassword).Return(nil).Once()

	ctx, sc := requestContext("")
	issued, err := f.svc.LoginByPassword(ctx, "admin", "secret", "", "")
	require.NoError(t, err)

	info, err := f.svc.Tokens().Inspect(ctx, issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", info.Principal.Username)
	assert.Equal(t, []string{"ROLE_ADMIN"}, info.Principal.Authorities)

	require.NotNil(t, sc.Principal())
	assert.Equal(t, "1", sc.Principal().ID)
	f.events.AssertExpectations(t)
}

func TestLoginByPasswordRejected(t *testing.T) {
	f := newAuthFixture(t)
	f.authority.On("Authenticate", mock.Anything, "admin", "wrong").
		Return(nil, core.NewAuthError(core.ReasonBadCredentials, nil))

	ctx, sc := requestContext("")
	issued, err := f.svc.LoginByPassword(ctx, "admin", "wrong", "", "")
	assert.Nil(t, issued)
	assertReason(t, core.ReasonBadCredentials, err)
	assert.Nil(t, sc.Principal())
	f.events.AssertNotCalled(t, "PublishLogin", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginUnsupportedModality(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.svc.LoginByOAuth(context.Background(), "code")
	assertReason(t, core.ReasonUnsupportedModality, err)

	_, err = f.svc.Login(context.Background(), nil)
	assertReason(t, core.ReasonUnsupportedModality, err)
}

func TestLoginDispatchesByModality(t *testing.T) {
	f := newAuthFixture(t)
	f.events.On("PublishLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	var seen []core.Modality
	record := func(ctx context.Context, cred core.Credential) (*core.Principal, error) {
		seen = append(seen, cred.Modality())
		return testPrincipal(), nil
	}
	f.svc.RegisterVerifier(core.ModalityPassword, record)
	f.svc.RegisterVerifier(core.ModalityOAuth, record)

	_, err := f.svc.LoginByOAuth(context.Background(), "code")
	require.NoError(t, err)
	_, err = f.svc.LoginByPassword(context.Background(), "u", "p", "", "")
	require.NoError(t, err)

	assert.Equal(t, []core.Modality{core.ModalityOAuth, core.ModalityPassword}, seen)
}

func TestLoginEventFailureDoesNotFailLogin(t *testing.T) {
	f := newAuthFixture(t)
	f.authority.On("Authenticate", mock.Anything, "admin", "secret").Return(testPrincipal(), nil)
	f.events.On("PublishLogin", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	issued, err := f.svc.LoginByPassword(context.Background(), "admin", "secret", "", "")
	require.NoError(t, err)
	assert.NotEmpty(t, issued.AccessToken)
}

func TestSmsLoginFlow(t *testing.T) {
	f := newAuthFixture(t)
	f.sender.On("SendCode", mock.Anything, "13800000000", PurposeLogin, mock.Anything).Return(nil)
	f.authority.On("LoadByMobile", mock.Anything, "13800000000").Return(testPrincipal(), nil)
	f.events.On("PublishLogin", mock.Anything, mock.Anything, core.ModalitySms).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.svc.SendSmsLoginCode(ctx, "13800000000"))

	_, err := f.svc.LoginBySms(ctx, "13800000000", "123456")
	require.NoError(t, err)

	_, err = f.svc.LoginBySms(ctx, "13800000000", "123456")
	assertReason(t, core.ReasonCodeExpiredOrMissing, err)
}

func TestSendSmsLoginCodeDisabled(t *testing.T) {
	svc := NewAuthService(newTestTokenManager(t, nil, false), nil, nil, nil, nopLogger)
	assertReason(t, core.ReasonUnsupportedModality, svc.SendSmsLoginCode(context.Background(), "1"))
}

func TestCaptcha(t *testing.T) {
	f := newAuthFixture(t)

	info, err := f.svc.Captcha(context.Background(), "")
	require.NoError(t, err)
	assert.NotEmpty(t, info.CaptchaKey)

	_, err = f.svc.Captcha(context.Background(), "hexagon")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)

	disabled := NewAuthService(newTestTokenManager(t, nil, false), nil, nil, nil, nopLogger)
	_, err = disabled.Captcha(context.Background(), "")
	assert.ErrorIs(t, err, core.ErrInvalidConfiguration)
}

func TestRefreshTokenViaService(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	first, err := f.svc.Tokens().GenerateToken(ctx, testPrincipal())
	require.NoError(t, err)

	second, err := f.svc.RefreshToken(ctx, first.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, first.AccessToken, second.AccessToken)

	// rotation is on in the fixture, so the old access token dies with its refresh token
	ok, err := f.svc.Tokens().ValidateToken(ctx, first.AccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.Tokens().ValidateToken(ctx, second.AccessToken)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogout(t *testing.T) {
	f := newAuthFixture(t)
	bg := context.Background()

	issued, err := f.svc.Tokens().GenerateToken(bg, testPrincipal())
	require.NoError(t, err)

	f.events.On("PublishLogout", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	ctx, sc := requestContext(core.BearerPrefix + issued.AccessToken)
	sc.SetPrincipal(testPrincipal())
	f.svc.Logout(ctx)
	assert.Nil(t, sc.Principal())

	ok, err := f.svc.Tokens().ValidateToken(bg, issued.AccessToken)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.RefreshToken(bg, issued.RefreshToken)
	assert.ErrorIs(t, err, core.ErrRefreshTokenInvalid)

	// second logout is a silent no-op that still clears the context
	ctx, sc = requestContext(core.BearerPrefix + issued.AccessToken)
	sc.SetPrincipal(testPrincipal())
	f.svc.Logout(ctx)
	assert.Nil(t, sc.Principal())
	f.events.AssertNumberOfCalls(t, "PublishLogout", 1)
}

func TestLogoutWithExpiredAccessToken(t *testing.T) {
	f := newAuthFixture(t)
	bg := context.Background()

	// issued half an hour ago: the access token is expired, the refresh token is not
	f.svc.tokens.now = func() time.Time { return time.Now().Add(-30 * time.Minute) }
	issued, err := f.svc.Tokens().GenerateToken(bg, testPrincipal())
	require.NoError(t, err)
	f.svc.tokens.now = time.Now

	ok, err := f.svc.Tokens().ValidateToken(bg, issued.AccessToken)
	require.NoError(t, err)
	require.False(t, ok)
	ok, err = f.svc.Tokens().ValidateToken(bg, issued.RefreshToken)
	require.NoError(t, err)
	require.True(t, ok)

	f.events.On("PublishLogout", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	ctx, sc := requestContext(core.BearerPrefix + issued.AccessToken)
	sc.SetPrincipal(testPrincipal())
	f.svc.Logout(ctx)
	assert.Nil(t, sc.Principal())

	_, err = f.svc.RefreshToken(bg, issued.RefreshToken)
	assert.ErrorIs(t, err, core.ErrRefreshTokenInvalid)

	ctx, _ = requestContext(core.BearerPrefix + issued.AccessToken)
	f.svc.Logout(ctx)
	f.events.AssertNumberOfCalls(t, "PublishLogout", 1)
}

func TestLogoutWithForeignToken(t *testing.T) {
	f := newAuthFixture(t)
	bg := context.Background()

	other := newTestTokenManager(t, f.store, false)
	other.now = func() time.Time { return time.Now().Add(-30 * time.Minute) }
	foreign, err := other.GenerateToken(bg, testPrincipal())
	require.NoError(t, err)

	ctx, sc := requestContext(core.BearerPrefix + foreign.AccessToken)
	sc.SetPrincipal(testPrincipal())
	f.svc.Logout(ctx)
	assert.Nil(t, sc.Principal())

	// nothing was revoked with a token this service did not sign
	ok, err := other.ValidateToken(bg, foreign.RefreshToken)
	require.NoError(t, err)
	assert.True(t, ok)
	f.events.AssertNotCalled(t, "PublishLogout", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogoutStoreFailureClearsContext(t *testing.T) {
	f := newAuthFixture(t)

	issued, err := f.svc.Tokens().GenerateToken(context.Background(), testPrincipal())
	require.NoError(t, err)

	f.mr.Close()

	ctx, sc := requestContext(core.BearerPrefix + issued.AccessToken)
	sc.SetPrincipal(testPrincipal())
	f.svc.Logout(ctx)
	assert.Nil(t, sc.Principal())
	f.events.AssertNotCalled(t, "PublishLogout", mock.Anything, mock.Anything, mock.Anything)
}

func TestLogoutWithoutToken(t *testing.T) {
	f := newAuthFixture(t)

	f.svc.Logout(context.Background())

	ctx, _ := requestContext("")
	f.svc.Logout(ctx)

	ctx, _ = requestContext("Bearer not-a-jwt")
	f.svc.Logout(ctx)

	f.events.AssertNotCalled(t, "PublishLogout", mock.Anything, mock.Anything, mock.Anything)
}

func TestLoginWithDirectory(t *testing.T) {
	params := identity.HashParams{Memory: 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
	hash, err := identity.HashPassword("hunter2", params)
	require.NoError(t, err)

	dir, err := identity.NewDirectory([]identity.User{{
		ID:           "7",
		Username:     "alice",
		PasswordHash: hash,
		Authorities:  []string{"ROLE_USER"},
	}})
	require.NoError(t, err)

	f := newAuthFixture(t)
	f.svc.RegisterVerifier(core.ModalityPassword, PasswordVerifier(dir, nil))
	f.events.On("PublishLogin", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	issued, err := f.svc.LoginByPassword(context.Background(), "alice", "hunter2", "", "")
	require.NoError(t, err)
	info, err := f.svc.Tokens().Inspect(context.Background(), issued.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "7", info.Principal.ID)

	_, err = f.svc.LoginByPassword(context.Background(), "alice", "nope", "", "")
	assertReason(t, core.ReasonBadCredentials, err)
}
