package memory

import (
	"context"
	"fmt"
	"sync"

	"membership/internal/identity/service"
	"membership/pkg/platform/sentinel"
)

// User is a snapshot of a stored identity.
type User struct {
	Username          string
	Email             string
	Name              string
	MembershipType    string
	LAAStatus         string
	TemporaryPassword string
	Enabled           bool
}

// Directory is an in-process identity directory for local runs and tests.
type Directory struct {
	mu    sync.RWMutex
	users map[string]*User
}

func New() *Directory {
	return &Directory{users: make(map[string]*User)}
}

func (d *Directory) CreateUser(_ context.Context, in service.NewUser) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.users[in.Username]; ok {
		return "", fmt.Errorf("user %s: %w", in.Username, sentinel.ErrConflict)
	}
	d.users[in.Username] = &User{
		Username:          in.Username,
		Email:             in.Email,
		Name:              in.Name,
		MembershipType:    in.MembershipType,
		LAAStatus:         in.LAAStatus,
		TemporaryPassword: in.TemporaryPassword,
		Enabled:           true,
	}
	return in.Username, nil
}

func (d *Directory) DisableUser(_ context.Context, username string) error {
	return d.setEnabled(username, false)
}

func (d *Directory) EnableUser(_ context.Context, username string) error {
	return d.setEnabled(username, true)
}

func (d *Directory) setEnabled(username string, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[username]
	if !ok {
		return fmt.Errorf("user %s: %w", username, sentinel.ErrNotFound)
	}
	u.Enabled = enabled
	return nil
}

// Get returns a copy of the stored user.
func (d *Directory) Get(username string) (User, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[username]
	if !ok {
		return User{}, false
	}
	return *u, true
}
