package core

import (
	"context"
	"strings"
	"sync"
)

// BearerPrefix is the scheme prefix of the Authorization header
const BearerPrefix = "Bearer "

// SecurityContext is the request-scoped slot holding the verified principal
// and the raw Authorization value. It lives from request entry to request
// completion and is passed through context.Context.
type SecurityContext struct {
	mu            sync.RWMutex
	principal     *Principal
	authorization string
}

// NewSecurityContext creates a security context for a request carrying the
// given Authorization header value (may be empty)
func NewSecurityContext(authorization string) *SecurityContext {
	return &SecurityContext{authorization: authorization}
}

func (s *SecurityContext) Principal() *Principal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal
}

func (s *SecurityContext) SetPrincipal(p *Principal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = p
}

// Authorization returns the raw Authorization value
func (s *SecurityContext) Authorization() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorization
}

// BearerToken returns the token following the Bearer prefix, or false when
// the Authorization value is blank or uses another scheme.
func (s *SecurityContext) BearerToken() (string, bool) {
	auth := strings.TrimSpace(s.Authorization())
	if auth == "" || !strings.HasPrefix(auth, BearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, BearerPrefix))
	return token, token != ""
}

// Clear drops the principal and the bearer value
func (s *SecurityContext) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.principal = nil
	s.authorization = ""
}

type securityContextKey struct{}

// WithSecurityContext attaches sc to ctx
func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFrom returns the security context attached to ctx, if any
func SecurityContextFrom(ctx context.Context) (*SecurityContext, bool) {
	sc, ok := ctx.Value(securityContextKey{}).(*SecurityContext)
	return sc, ok && sc != nil
}
