package services

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

// Persisted key names. These are read by other clients of the same storage
// and must not change.
const (
	KeyCommunityToken  = "authToken"
	KeyCommunityUser   = "user"
	KeyCommunityExpiry = "tokenExpiry"

	KeySystemToken    = "systemAuthToken"
	KeySystemUser     = "systemUser"
	KeySystemExpiry   = "systemTokenExpiry"
	KeySystemUserType = "systemUserType"

	// KeyActiveClass records the class of the last successful sign-in.
	KeyActiveClass = "activeIdentityClass"
)

// ExpiryLayout is ISO-8601 with milliseconds, always written in UTC.
const ExpiryLayout = "2006-01-02T15:04:05.000Z07:00"

type classKeys struct {
	token  string
	user   string
	expiry string
}

func keysFor(class core.IdentityClass) classKeys {
	if class == core.ClassSystem {
		return classKeys{token: KeySystemToken, user: KeySystemUser, expiry: KeySystemExpiry}
	}
	return classKeys{token: KeyCommunityToken, user: KeyCommunityUser, expiry: KeyCommunityExpiry}
}

// CredentialStore persists one session record per identity class over a
// core.KVStore and announces every user change on a payload-free broadcaster.
//
// Storage failures are logged and swallowed by the getters and single-key
// setters; getters then report the value as absent. Save is the exception
// since a login must know whether its session was written.
type CredentialStore struct {
	kv           core.KVStore
	changes      *core.Broadcaster
	logger       *slog.Logger
	legacyMirror bool

	// serialises multi-key operations so Save and Clear are not interleaved
	mu sync.Mutex
}

type CredentialStoreOption func(*CredentialStore)

// WithLegacyMirror makes a system Save also write the session into the
// community keys, and a system Clear remove it from there again. Older
// dashboard builds read the current user from the community keys only.
func WithLegacyMirror(enabled bool) CredentialStoreOption {
	return func(s *CredentialStore) { s.legacyMirror = enabled }
}

func WithStoreLogger(l *slog.Logger) CredentialStoreOption {
	return func(s *CredentialStore) { s.logger = log.OrNop(l) }
}

func NewCredentialStore(kv core.KVStore, opts ...CredentialStoreOption) *CredentialStore {
	s := &CredentialStore{
		kv:      kv,
		changes: core.NewBroadcaster(),
		logger:  log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn to run after every user change. Listeners should
// re-read whatever they need; the signal carries nothing.
func (s *CredentialStore) Subscribe(fn func()) (unsubscribe func()) {
	return s.changes.Subscribe(fn)
}

// NotifyChanged publishes a change signal without writing anything. Used when
// the underlying storage was changed by someone else.
func (s *CredentialStore) NotifyChanged() {
	s.changes.Publish()
}

// ============================================
// SINGLE KEY ACCESS
// ============================================

func (s *CredentialStore) Token(class core.IdentityClass) (string, bool) {
	v, ok := s.get(keysFor(class).token)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (s *CredentialStore) SetToken(class core.IdentityClass, token string) {
	s.set(keysFor(class).token, token)
}

// User returns the stored user for class, or nil.
func (s *CredentialStore) User(class core.IdentityClass) *core.UserRecord {
	raw, ok := s.get(keysFor(class).user)
	if !ok {
		return nil
	}
	user, err := decodeUser(raw)
	if err != nil {
		s.logger.Warn("stored user record is unreadable", "class", class, "error", err)
		return nil
	}
	return user
}

// SetUser stores user for class and broadcasts. A nil user removes the key.
func (s *CredentialStore) SetUser(class core.IdentityClass, user *core.UserRecord) {
	key := keysFor(class).user
	if user == nil {
		s.del(key)
	} else {
		raw, err := json.Marshal(user)
		if err != nil {
			s.logger.Error("encode user record", "class", class, "error", err)
			return
		}
		s.set(key, string(raw))
	}
	s.changes.Publish()
}

// Expiry returns the stored expiry for class, or nil when absent or unparseable.
func (s *CredentialStore) Expiry(class core.IdentityClass) *time.Time {
	raw, ok := s.get(keysFor(class).expiry)
	if !ok {
		return nil
	}
	t, err := parseExpiry(raw)
	if err != nil {
		s.logger.Warn("stored expiry is unreadable", "class", class, "value", raw, "error", err)
		return nil
	}
	return &t
}

func (s *CredentialStore) SetExpiry(class core.IdentityClass, expiry time.Time) {
	s.set(keysFor(class).expiry, formatExpiry(expiry))
}

// ============================================
// SESSION RECORD
// ============================================

// Save writes token, user and expiry for class in one batch, then broadcasts.
func (s *CredentialStore) Save(class core.IdentityClass, rec core.SessionRecord) error {
	if rec.Token == "" || rec.User == nil || rec.ExpiresAt.IsZero() {
		return fmt.Errorf("incomplete session record for %s", class)
	}

	raw, err := json.Marshal(rec.User)
	if err != nil {
		return fmt.Errorf("encode user record: %w", err)
	}

	keys := keysFor(class)
	values := map[string]string{
		keys.token:  rec.Token,
		keys.user:   string(raw),
		keys.expiry: formatExpiry(rec.ExpiresAt),
	}
	if class == core.ClassSystem {
		values[KeySystemUserType] = string(core.ClassSystem)
		if s.legacyMirror {
			community := keysFor(core.ClassCommunity)
			values[community.token] = rec.Token
			values[community.user] = string(raw)
			values[community.expiry] = formatExpiry(rec.ExpiresAt)
		}
	}

	s.mu.Lock()
	err = s.kv.SetMany(values)
	s.mu.Unlock()
	if err != nil {
		s.logger.Error("persist session", "class", class, "error", err)
		return fmt.Errorf("persist %s session: %w", class, err)
	}

	s.changes.Publish()
	return nil
}

// Load returns the record for class only when token, user and expiry are all
// present and readable.
func (s *CredentialStore) Load(class core.IdentityClass) (*core.SessionRecord, bool) {
	token, ok := s.Token(class)
	if !ok {
		return nil, false
	}
	user := s.User(class)
	if user == nil {
		return nil, false
	}
	expiry := s.Expiry(class)
	if expiry == nil {
		return nil, false
	}
	return &core.SessionRecord{Token: token, User: user, ExpiresAt: *expiry}, true
}

// Clear removes the session for class only, then broadcasts.
func (s *CredentialStore) Clear(class core.IdentityClass) {
	keys := keysFor(class)
	remove := []string{keys.token, keys.user, keys.expiry}

	s.mu.Lock()
	if class == core.ClassSystem {
		remove = append(remove, KeySystemUserType)
		if s.legacyMirror && s.holdsMirroredSystemUser() {
			community := keysFor(core.ClassCommunity)
			remove = append(remove, community.token, community.user, community.expiry)
		}
	}
	err := s.kv.Delete(remove...)
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("clear session", "class", class, "error", err)
	}
	s.changes.Publish()
}

// holdsMirroredSystemUser reports whether the community keys carry a system
// user. Caller holds s.mu.
func (s *CredentialStore) holdsMirroredSystemUser() bool {
	raw, ok := s.get(KeyCommunityUser)
	if !ok {
		return false
	}
	user, err := decodeUser(raw)
	return err == nil && user.UserType == core.ClassSystem
}

// HasSystemMarker reports whether the system user type flag is set.
func (s *CredentialStore) HasSystemMarker() bool {
	v, ok := s.get(KeySystemUserType)
	return ok && v == string(core.ClassSystem)
}

// ActiveClass returns the class of the last successful sign-in, if recorded.
func (s *CredentialStore) ActiveClass() (core.IdentityClass, bool) {
	v, ok := s.get(KeyActiveClass)
	if !ok {
		return "", false
	}
	class, err := core.ParseIdentityClass(v)
	if err != nil {
		return "", false
	}
	return class, true
}

func (s *CredentialStore) SetActiveClass(class core.IdentityClass) {
	s.set(KeyActiveClass, string(class))
}

// ClearActiveClass forgets the last sign-in when it was class.
func (s *CredentialStore) ClearActiveClass(class core.IdentityClass) {
	if active, ok := s.ActiveClass(); ok && active == class {
		s.del(KeyActiveClass)
	}
}

// ============================================
// HELPERS
// ============================================

func (s *CredentialStore) get(key string) (string, bool) {
	v, ok, err := s.kv.Get(key)
	if err != nil {
		s.logger.Warn("storage read failed", "key", key, "error", err)
		return "", false
	}
	return v, ok
}

func (s *CredentialStore) set(key, value string) {
	if err := s.kv.Set(key, value); err != nil {
		s.logger.Warn("storage write failed", "key", key, "error", err)
	}
}

func (s *CredentialStore) del(keys ...string) {
	if err := s.kv.Delete(keys...); err != nil {
		s.logger.Warn("storage delete failed", "keys", keys, "error", err)
	}
}

func decodeUser(raw string) (*core.UserRecord, error) {
	var user core.UserRecord
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func formatExpiry(t time.Time) string {
	return t.UTC().Format(ExpiryLayout)
}

func parseExpiry(raw string) (time.Time, error) {
	return time.Parse(time.RFC3339, raw)
}
