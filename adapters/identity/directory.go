package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/gatekeeper/core"
	"github.com/layer-3/gatekeeper/ports"
)

// Status of a directory account
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
	StatusLocked   Status = "locked"
)

// User is a directory record
type User struct {
	ID           string
	Username     string
	PasswordHash string   // PHC encoded argon2id hash
	Mobile       string
	Authorities  []string
	Status       Status
	External     []string // Bound third-party identities as "provider:providerUserID"
}

// Directory is an in-memory IdentityAuthority
type Directory struct {
	mu         sync.RWMutex
	byUsername map[string]*User
	byMobile   map[string]*User
	byExternal map[string]*User
	dummyHash  string
	now        func() time.Time
}

// NewDirectory indexes users by username, mobile and external identity
func NewDirectory(users []User) (*Directory, error) {
	// Unknown usernames are checked against this hash so that their
	// response time matches a wrong password.
	dummyHash, err := HashPassword("dummy-password", DefaultHashParams)
	if err != nil {
		return nil, err
	}

	d := &Directory{
		byUsername: make(map[string]*User),
		byMobile:   make(map[string]*User),
		byExternal: make(map[string]*User),
		dummyHash:  dummyHash,
		now:        time.Now,
	}
	for i := range users {
		if err := d.Add(users[i]); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var _ ports.IdentityAuthority = (*Directory)(nil)

// Add registers a user
func (d *Directory) Add(user User) error {
	if user.ID == "" || user.Username == "" {
		return fmt.Errorf("user requires id and username")
	}
	if user.Status == "" {
		user.Status = StatusEnabled
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.byUsername[user.Username]; exists {
		return fmt.Errorf("duplicate username %q", user.Username)
	}
	u := &user
	d.byUsername[user.Username] = u
	if user.Mobile != "" {
		d.byMobile[user.Mobile] = u
	}
	for _, ext := range user.External {
		d.byExternal[ext] = u
	}
	return nil
}

func (d *Directory) Authenticate(ctx context.Context, username, password string) (*core.Principal, error) {
	d.mu.RLock()
	user, ok := d.byUsername[username]
	d.mu.RUnlock()

	if !ok || user.PasswordHash == "" {
		_, _ = VerifyPassword(password, d.dummyHash)
		return nil, core.NewAuthError(core.ReasonBadCredentials, nil)
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password for %s: %w", username, err)
	}
	if !match {
		return nil, core.NewAuthError(core.ReasonBadCredentials, nil)
	}

	return d.principal(user)
}

func (d *Directory) LoadByMobile(ctx context.Context, mobile string) (*core.Principal, error) {
	d.mu.RLock()
	user, ok := d.byMobile[mobile]
	d.mu.RUnlock()

	if !ok {
		return nil, core.NewAuthError(core.ReasonBadCredentials, core.ErrNotFound)
	}
	return d.principal(user)
}

func (d *Directory) LoadByExternalProfile(ctx context.Context, profile *core.ExternalProfile) (*core.Principal, error) {
	key := strings.ToLower(profile.Provider) + ":" + profile.ProviderUserID

	d.mu.RLock()
	user, ok := d.byExternal[key]
	d.mu.RUnlock()

	if !ok {
		return nil, core.NewAuthError(core.ReasonBadCredentials, core.ErrNotFound)
	}
	return d.principal(user)
}

func (d *Directory) principal(user *User) (*core.Principal, error) {
	switch user.Status {
	case StatusDisabled:
		return nil, core.NewAuthError(core.ReasonAccountDisabled, nil)
	case StatusLocked:
		return nil, core.NewAuthError(core.ReasonAccountLocked, nil)
	}

	authorities := make([]string, len(user.Authorities))
	copy(authorities, user.Authorities)

	return &core.Principal{
		ID:          user.ID,
		Username:    user.Username,
		Authorities: authorities,
		IssuedAt:    d.now(),
	}, nil
}
