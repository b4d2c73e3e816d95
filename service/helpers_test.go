package service

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/layer-3/gatekeeper/adapters/store"
	"github.com/layer-3/gatekeeper/adapters/tokenizer"
	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockIdentityAuthority struct{ mock.Mock }

func (m *MockIdentityAuthority) Authenticate(ctx context.Context, username, password string) (*core.Principal, error) {
	args := m.Called(ctx, username, password)
	if p := args.Get(0); p != nil {
		return p.(*core.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityAuthority) LoadByMobile(ctx context.Context, mobile string) (*core.Principal, error) {
	args := m.Called(ctx, mobile)
	if p := args.Get(0); p != nil {
		return p.(*core.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockIdentityAuthority) LoadByExternalProfile(ctx context.Context, profile *core.ExternalProfile) (*core.Principal, error) {
	args := m.Called(ctx, profile)
	if p := args.Get(0); p != nil {
		return p.(*core.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockOAuthProvider struct{ mock.Mock }

func (m *MockOAuthProvider) Exchange(ctx context.Context, code string) (*core.ExternalProfile, error) {
	args := m.Called(ctx, code)
	if p := args.Get(0); p != nil {
		return p.(*core.ExternalProfile), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockNotificationSender struct{ mock.Mock }

func (m *MockNotificationSender) SendCode(ctx context.Context, destination, purpose string, params map[string]string) error {
	return m.Called(ctx, destination, purpose, params).Error(0)
}

type MockEventPublisher struct{ mock.Mock }

func (m *MockEventPublisher) PublishLogin(ctx context.Context, principal *core.Principal, modality core.Modality) error {
	return m.Called(ctx, principal, modality).Error(0)
}

func (m *MockEventPublisher) PublishLogout(ctx context.Context, principal *core.Principal, tokenID string) error {
	return m.Called(ctx, principal, tokenID).Error(0)
}

// fixedGenerator always produces the same code
type fixedGenerator struct {
	code ports.Code
}

func (g fixedGenerator) Generate() (ports.Code, error) { return g.code, nil }

func (g fixedGenerator) Verify(answer, input string) bool { return answer == input }

type stubRenderer struct {
	rendered []string
}

func (r *stubRenderer) Render(kind core.CaptchaKind, text string) (string, error) {
	r.rendered = append(r.rendered, text)
	return "data:image/png;base64,c3R1Yg==", nil
}

func newTestStore(t *testing.T) (*miniredis.Miniredis, ports.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, store.NewRedisStore(client)
}

func newTestTokenManager(t *testing.T, s ports.Store, rotate bool) *TokenManager {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	return NewTokenManager(tokenizer.NewJWTTokenizer(key, "gatekeeper-test", 0), s, TokenConfig{
		AccessTTL:     5 * time.Minute,
		RefreshTTL:    time.Hour,
		RotateRefresh: rotate,
	})
}

func testPrincipal() *core.Principal {
	return &core.Principal{
		ID:          "1",
		Username:    "admin",
		Authorities: []string{"ROLE_ADMIN"},
		IssuedAt:    time.Now(),
	}
}

var nopLogger = zap.NewNop()

func newCode(answer string) ports.Code {
	return ports.Code{Text: answer, Answer: answer}
}

func mustGet(t *testing.T, mr *miniredis.Miniredis, key string) string {
	t.Helper()
	v, err := mr.Get(key)
	require.NoError(t, err)
	return v
}
