package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORT (persistent key/value)
// ============================================

// KVStore is durable string key/value storage that survives restarts.
// SetMany and Delete apply all keys or none.
type KVStore interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	SetMany(values map[string]string) error
	Delete(keys ...string) error
}

// ============================================
// BACKEND PORT (REST API)
// ============================================

// AuthAPI performs one call against the auth backend.
//
// token is sent as a bearer credential when non-empty. On success the
// envelope's data field is decoded into out (which may be nil). Non-2xx
// responses and success=false bodies come back as *APIError; transport
// failures wrap ErrNetwork.
type AuthAPI interface {
	Call(ctx context.Context, ep Endpoint, token string, body, out any) error
}

// ============================================
// DIRECTORY PORT (dev backend user storage)
// ============================================

// DirectoryEntry is a user row as the backend stores it.
type DirectoryEntry struct {
	User         UserRecord
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Directory is the account storage behind the dev backend. Lookups return
// ErrUserNotFound when nothing matches; Create returns ErrUserExists for a
// taken username.
type Directory interface {
	Create(ctx context.Context, entry *DirectoryEntry) error
	FindByUsername(ctx context.Context, class IdentityClass, username string) (*DirectoryEntry, error)
	FindByID(ctx context.Context, class IdentityClass, id string) (*DirectoryEntry, error)
	FindByEmail(ctx context.Context, class IdentityClass, email string) (*DirectoryEntry, error)
	Update(ctx context.Context, user *UserRecord) error
	SetPassword(ctx context.Context, class IdentityClass, id, passwordHash string) error
}

// ============================================
// CLOCK
// ============================================

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time
