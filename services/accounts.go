package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/cache"
	"github.com/lborres/bantay/pkg/crypto"
	"github.com/lborres/bantay/pkg/log"
)

const (
	DefaultResetTTL       = 15 * time.Minute
	DefaultMaxLiveTokens  = 10000
	defaultMinPasswordLen = 8
)

var ErrWeakPassword = errors.New("password is too short")

// IssuedSession is the backend's record of one bearer token. Only the token
// hash is kept as the lookup key.
type IssuedSession struct {
	UserID    string
	Class     core.IdentityClass
	ExpiresAt time.Time
	CreatedAt time.Time
}

type resetGrant struct {
	userID    string
	expiresAt time.Time
}

// AccountService is the backend half of one identity class: it checks
// passwords against a Directory and issues opaque bearer tokens. The dev
// server mounts one per class.
type AccountService struct {
	config    core.SessionConfig
	directory core.Directory
	passwords crypto.PasswordHandler
	sessions  *cache.InMemory[IssuedSession]
	resets    *cache.InMemory[resetGrant]
	resetTTL  time.Duration
	now       core.Clock
	logger    *slog.Logger
}

type AccountOption func(*AccountService)

func WithAccountClock(now core.Clock) AccountOption {
	return func(s *AccountService) { s.now = now }
}

func WithPasswordHandler(p crypto.PasswordHandler) AccountOption {
	return func(s *AccountService) { s.passwords = p }
}

func WithResetTTL(d time.Duration) AccountOption {
	return func(s *AccountService) { s.resetTTL = d }
}

func WithAccountLogger(l *slog.Logger) AccountOption {
	return func(s *AccountService) { s.logger = log.OrNop(l) }
}

func NewAccountService(config core.SessionConfig, directory core.Directory, opts ...AccountOption) *AccountService {
	s := &AccountService{
		config:    config,
		directory: directory,
		passwords: crypto.NewArgon2(),
		resetTTL:  DefaultResetTTL,
		now:       time.Now,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	// cache entries lapse a full session after their last Set, which is what
	// sliding renewal needs
	s.sessions = cache.NewInMemory[IssuedSession](cache.Config{
		TTL:     config.Duration(),
		MaxSize: DefaultMaxLiveTokens,
	}).WithClock(s.now)
	s.resets = cache.NewInMemory[resetGrant](cache.Config{TTL: s.resetTTL}).WithClock(s.now)
	s.logger = s.logger.With("class", config.Class)
	return s
}

func (s *AccountService) Class() core.IdentityClass {
	return s.config.Class
}

func (s *AccountService) Config() core.SessionConfig {
	return s.config
}

// ============================================
// SIGN UP / SIGN IN / SIGN OUT
// ============================================

// Register creates a user in this class and signs them in.
func (s *AccountService) Register(ctx context.Context, input core.RegisterInput) (*core.AuthResult, error) {
	if input.Username == "" {
		return nil, core.ErrUsernameRequired
	}
	if err := checkPassword(input.Password); err != nil {
		return nil, err
	}

	_, err := s.directory.FindByUsername(ctx, s.config.Class, input.Username)
	if err == nil {
		return nil, core.ErrUserExists
	}
	if !errors.Is(err, core.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	entry := &core.DirectoryEntry{
		User: core.UserRecord{
			Username:   input.Username,
			Name:       input.Name,
			Email:      input.Email,
			Role:       input.Role,
			Department: input.Department,
			Phone:      input.Phone,
			Status:     "active",
			UserType:   s.config.Class,
		},
		PasswordHash: hash,
	}
	if err := s.directory.Create(ctx, entry); err != nil {
		if errors.Is(err, core.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.issue(entry.User.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", "user_id", entry.User.ID)

	user := entry.User
	return &core.AuthResult{User: &user, Token: token}, nil
}

// Login checks the password and issues a new token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, creds core.Credentials) (*core.AuthResult, error) {
	if creds.Username == "" {
		return nil, core.ErrUsernameRequired
	}
	if creds.Password == "" {
		return nil, core.ErrPasswordRequired
	}

	entry, err := s.directory.FindByUsername(ctx, s.config.Class, creds.Username)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	ok, err := s.passwords.Verify(creds.Password, entry.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, core.ErrInvalidCredentials
	}

	token, err := s.issue(entry.User.ID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed in", "user_id", entry.User.ID)

	user := entry.User
	return &core.AuthResult{User: &user, Token: token}, nil
}

// Logout revokes token. Unknown tokens are ignored.
func (s *AccountService) Logout(token string) {
	s.sessions.Delete(crypto.HashToken(token))
}

// ============================================
// TOKENS
// ============================================

// Authenticate resolves a bearer token to its session without renewing it.
func (s *AccountService) Authenticate(token string) (*IssuedSession, error) {
	if token == "" {
		return nil, core.ErrMissingToken
	}

	hash := crypto.HashToken(token)
	session, err := s.sessions.Get(hash)
	if err != nil {
		return nil, core.ErrInvalidToken
	}
	if !s.now().Before(session.ExpiresAt) {
		s.sessions.Delete(hash)
		return nil, core.ErrInvalidToken
	}
	return &session, nil
}

// Validate confirms token and slides its expiry forward by a full session.
func (s *AccountService) Validate(ctx context.Context, token string) (*core.UserRecord, error) {
	session, err := s.Authenticate(token)
	if err != nil {
		return nil, err
	}

	user, err := s.user(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	session.ExpiresAt = s.now().Add(s.config.Duration())
	s.sessions.Set(crypto.HashToken(token), *session)
	return user, nil
}

// LiveSessions counts tokens that have not been revoked or lapsed from the
// cache.
func (s *AccountService) LiveSessions() int {
	return s.sessions.Len()
}

// ============================================
// PROFILE & PASSWORD
// ============================================

func (s *AccountService) Profile(ctx context.Context, userID string) (*core.UserRecord, error) {
	return s.user(ctx, userID)
}

// UpdateProfile applies the non-empty fields of update.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, update core.ProfileUpdate) (*core.UserRecord, error) {
	user, err := s.user(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != "" {
		user.Name = update.Name
	}
	if update.Email != "" {
		user.Email = update.Email
	}
	if update.Department != "" {
		user.Department = update.Department
	}
	if update.Phone != "" {
		user.Phone = update.Phone
	}

	if err := s.directory.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return user, nil
}

// ChangePassword replaces the password after checking the current one. Every
// other token of the user is revoked; keepToken stays valid.
func (s *AccountService) ChangePassword(ctx context.Context, userID, keepToken string, input core.ChangePasswordInput) error {
	if input.CurrentPassword == "" {
		return core.ErrPasswordRequired
	}
	if err := checkPassword(input.NewPassword); err != nil {
		return err
	}

	entry, err := s.directory.FindByID(ctx, s.config.Class, userID)
	if err != nil {
		return err
	}
	ok, err := s.passwords.Verify(input.CurrentPassword, entry.PasswordHash)
	if err != nil {
		return fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return core.ErrInvalidCredentials
	}

	if err := s.setPassword(ctx, userID, input.NewPassword); err != nil {
		return err
	}
	s.revokeUser(userID, crypto.HashToken(keepToken))
	return nil
}

// ForgotPassword issues a reset token for the account with email. An unknown
// email returns an empty token and no error so callers can't probe for
// accounts.
func (s *AccountService) ForgotPassword(ctx context.Context, email string) (string, error) {
	entry, err := s.directory.FindByEmail(ctx, s.config.Class, email)
	if errors.Is(err, core.ErrUserNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	pair, err := crypto.NewToken(crypto.ResetTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	s.resets.Set(pair.Hash, resetGrant{userID: entry.User.ID, expiresAt: s.now().Add(s.resetTTL)})
	s.logger.Info("password reset requested", "user_id", entry.User.ID)
	return pair.Token, nil
}

// ResetPassword consumes a reset token and sets the new password. All of the
// user's tokens are revoked.
func (s *AccountService) ResetPassword(ctx context.Context, input core.ResetPasswordInput) error {
	if input.Token == "" {
		return core.ErrInvalidToken
	}
	if err := checkPassword(input.NewPassword); err != nil {
		return err
	}

	hash := crypto.HashToken(input.Token)
	grant, err := s.resets.Get(hash)
	if err != nil || !s.now().Before(grant.expiresAt) {
		s.resets.Delete(hash)
		return core.ErrInvalidToken
	}

	if err := s.setPassword(ctx, grant.userID, input.NewPassword); err != nil {
		return err
	}
	s.resets.Delete(hash)
	s.revokeUser(grant.userID, "")
	return nil
}

// ============================================
// HELPERS
// ============================================

func (s *AccountService) issue(userID string) (string, error) {
	pair, err := crypto.NewToken(crypto.SessionTokenBytes)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := s.now()
	s.sessions.Set(pair.Hash, IssuedSession{
		UserID:    userID,
		Class:     s.config.Class,
		ExpiresAt: now.Add(s.config.Duration()),
		CreatedAt: now,
	})
	return pair.Token, nil
}

func (s *AccountService) user(ctx context.Context, userID string) (*core.UserRecord, error) {
	entry, err := s.directory.FindByID(ctx, s.config.Class, userID)
	if err != nil {
		if errors.Is(err, core.ErrUserNotFound) {
			return nil, core.ErrInvalidToken
		}
		return nil, err
	}
	user := entry.User
	return &user, nil
}

func (s *AccountService) setPassword(ctx context.Context, userID, password string) error {
	hash, err := s.passwords.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.directory.SetPassword(ctx, s.config.Class, userID, hash); err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return nil
}

func (s *AccountService) revokeUser(userID, keepHash string) {
	n := s.sessions.DeleteFunc(func(hash string, session IssuedSession) bool {
		return session.UserID == userID && hash != keepHash
	})
	if n > 0 {
		s.logger.Info("revoked sessions", "user_id", userID, "count", n)
	}
}

func checkPassword(p string) error {
	if p == "" {
		return core.ErrPasswordRequired
	}
	if len(p) < defaultMinPasswordLen {
		return ErrWeakPassword
	}
	return nil
}
