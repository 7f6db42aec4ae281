// Package directory resolves shoppers by email for notification delivery.
package directory

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrUserNotFound = errors.New("user not found")

// User is the subset of an account the notifier needs.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role"`
}

type Directory interface {
	FindUserByEmail(ctx context.Context, email string) (*User, error)
}

// MemoryDirectory is a fixed in-process directory, keyed case-insensitively.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.Put(u)
	}
	return d
}

func (d *MemoryDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[strings.ToLower(u.Email)] = u
}

func (d *MemoryDirectory) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[strings.ToLower(email)]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
