// Package memory is an in-process core.Directory for the dev backend and tests.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/crypto"
)

type Directory struct {
	mu      sync.RWMutex
	entries map[string]*core.DirectoryEntry // key: class/id
	now     func() time.Time
}

var _ core.Directory = (*Directory)(nil)

func NewDirectory() *Directory {
	return &Directory{
		entries: make(map[string]*core.DirectoryEntry),
		now:     time.Now,
	}
}

func entryKey(class core.IdentityClass, id string) string {
	return string(class) + "/" + id
}

// Create stores entry, assigning an ID when it has none. Usernames are unique
// per class, compared case-insensitively.
func (d *Directory) Create(_ context.Context, entry *core.DirectoryEntry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	class := entry.User.UserType
	if d.findLocked(class, func(e *core.DirectoryEntry) bool {
		return strings.EqualFold(e.User.Username, entry.User.Username)
	}) != nil {
		return core.ErrUserExists
	}

	if entry.User.ID == "" {
		id, err := crypto.NewID()
		if err != nil {
			return err
		}
		entry.User.ID = id
	}

	now := d.now()
	entry.CreatedAt, entry.UpdatedAt = now, now
	stored := *entry
	d.entries[entryKey(class, entry.User.ID)] = &stored
	return nil
}

func (d *Directory) FindByUsername(_ context.Context, class core.IdentityClass, username string) (*core.DirectoryEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyOrMissing(d.findLocked(class, func(e *core.DirectoryEntry) bool {
		return strings.EqualFold(e.User.Username, username)
	}))
}

func (d *Directory) FindByEmail(_ context.Context, class core.IdentityClass, email string) (*core.DirectoryEntry, error) {
	if email == "" {
		return nil, core.ErrUserNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyOrMissing(d.findLocked(class, func(e *core.DirectoryEntry) bool {
		return strings.EqualFold(e.User.Email, email)
	}))
}

func (d *Directory) FindByID(_ context.Context, class core.IdentityClass, id string) (*core.DirectoryEntry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return copyOrMissing(d.entries[entryKey(class, id)])
}

// Update overwrites the profile of an existing user. The password is kept.
func (d *Directory) Update(_ context.Context, user *core.UserRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[entryKey(user.UserType, user.ID)]
	if !ok {
		return core.ErrUserNotFound
	}
	e.User = *user
	e.UpdatedAt = d.now()
	return nil
}

func (d *Directory) SetPassword(_ context.Context, class core.IdentityClass, id, passwordHash string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[entryKey(class, id)]
	if !ok {
		return core.ErrUserNotFound
	}
	e.PasswordHash = passwordHash
	e.UpdatedAt = d.now()
	return nil
}

// Len is the number of stored users across both classes.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}

func (d *Directory) findLocked(class core.IdentityClass, match func(*core.DirectoryEntry) bool) *core.DirectoryEntry {
	for _, e := range d.entries {
		if e.User.UserType == class && match(e) {
			return e
		}
	}
	return nil
}

func copyOrMissing(e *core.DirectoryEntry) (*core.DirectoryEntry, error) {
	if e == nil {
		return nil, core.ErrUserNotFound
	}
	c := *e
	return &c, nil
}
