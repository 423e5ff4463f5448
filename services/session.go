package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/pkg/log"
)

// SessionService runs login, logout and validate for one identity class and
// keeps that class's record in the CredentialStore. Community and system
// sessions are two instances with different SessionConfig values.
type SessionService struct {
	config    core.SessionConfig
	api       core.AuthAPI
	store     *CredentialStore
	endpoints *EndpointRegistry
	now       core.Clock
	logger    *slog.Logger
}

type SessionOption func(*SessionService)

func WithClock(now core.Clock) SessionOption {
	return func(s *SessionService) { s.now = now }
}

func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *SessionService) { s.logger = log.OrNop(l) }
}

func NewSessionService(config core.SessionConfig, api core.AuthAPI, store *CredentialStore, opts ...SessionOption) *SessionService {
	s := &SessionService{
		config:    config,
		api:       api,
		store:     store,
		endpoints: EndpointsFor(config),
		now:       time.Now,
		logger:    log.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("class", config.Class)
	return s
}

func (s *SessionService) Class() core.IdentityClass {
	return s.config.Class
}

func (s *SessionService) Config() core.SessionConfig {
	return s.config
}

func (s *SessionService) Endpoints() *EndpointRegistry {
	return s.endpoints
}

// ============================================
// LOGIN / REGISTER / LOGOUT
// ============================================

// Login posts credentials and, on success, persists token, user and a fresh
// expiry together. Nothing is written on failure.
func (s *SessionService) Login(ctx context.Context, creds core.Credentials) (*core.AuthResult, error) {
	if creds.Username == "" {
		return nil, core.ErrUsernameRequired
	}
	if creds.Password == "" {
		return nil, core.ErrPasswordRequired
	}

	ep, err := s.endpoint(core.EndpointLogin)
	if err != nil {
		return nil, err
	}

	var res core.AuthResult
	if err := s.api.Call(ctx, ep, "", creds, &res); err != nil {
		return nil, classifyCallError(err, true)
	}
	if res.Token == "" || res.User == nil {
		return nil, core.NewAuthError(core.ErrMalformedResponse, "Login response did not include a session", nil)
	}

	if err := s.persist(res.Token, res.User); err != nil {
		return nil, err
	}
	s.logger.Info("signed in", "user_id", res.User.ID)
	return &res, nil
}

// Register posts the full profile. When the backend also returns a token the
// session is persisted exactly like a login.
func (s *SessionService) Register(ctx context.Context, input core.RegisterInput) (*core.AuthResult, error) {
	if input.Username == "" {
		return nil, core.ErrUsernameRequired
	}
	if input.Password == "" {
		return nil, core.ErrPasswordRequired
	}

	ep, err := s.endpoint(core.EndpointRegister)
	if err != nil {
		return nil, err
	}

	var res core.AuthResult
	if err := s.api.Call(ctx, ep, "", input, &res); err != nil {
		return nil, classifyCallError(err, false)
	}

	if res.Token != "" && res.User != nil {
		if err := s.persist(res.Token, res.User); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

// Logout tells the backend, when the class has a logout endpoint, then clears
// the stored session. The backend call is best effort and its error is
// discarded; local state is always cleared.
func (s *SessionService) Logout(ctx context.Context) {
	if ep, ok := s.endpoints.Lookup(core.EndpointLogout); ok {
		if token, ok := s.store.Token(s.config.Class); ok {
			if err := s.api.Call(ctx, ep, token, nil, nil); err != nil {
				s.logger.Debug("backend logout failed, clearing locally", "error", err)
			}
		}
	}
	s.store.Clear(s.config.Class)
}

// ============================================
// VALIDATION
// ============================================

// ValidateToken confirms the stored session with the backend.
//
// A session that is already expired locally is cleared and reported as
// expired without a network call. On success the user record is refreshed and
// the expiry slides forward by a full session duration. A 401 clears the
// session only if the local check also says it has expired; every other
// failure is transient and leaves storage alone.
func (s *SessionService) ValidateToken(ctx context.Context) (*core.UserRecord, error) {
	if s.IsTokenExpired() {
		s.store.Clear(s.config.Class)
		return nil, core.NewAuthError(core.ErrSessionExpired, "", nil)
	}

	token, ok := s.store.Token(s.config.Class)
	if !ok {
		s.store.Clear(s.config.Class)
		return nil, core.NewAuthError(core.ErrNoSession, "", nil)
	}

	ep, err := s.endpoint(core.EndpointValidate)
	if err != nil {
		return nil, err
	}

	var user core.UserRecord
	if err := s.api.Call(ctx, ep, token, nil, &user); err != nil {
		if core.StatusOf(err) == http.StatusUnauthorized && s.IsTokenExpired() {
			s.store.Clear(s.config.Class)
			return nil, &core.AuthError{Kind: core.ErrSessionExpired, Status: http.StatusUnauthorized, Cause: err}
		}
		s.logger.Warn("token validation failed, keeping session", "error", err)
		return nil, &core.AuthError{Kind: core.ErrTransientValidation, Status: core.StatusOf(err), Cause: err}
	}
	if user.ID == "" && user.Username == "" {
		return nil, core.NewAuthError(core.ErrTransientValidation, "", core.ErrMalformedResponse)
	}

	if err := s.persist(token, &user); err != nil {
		return nil, &core.AuthError{Kind: core.ErrTransientValidation, Cause: err}
	}
	return &user, nil
}

// ============================================
// EXPIRY QUERIES
// ============================================

// IsAuthenticated is true when a token is stored and not expired.
func (s *SessionService) IsAuthenticated() bool {
	if _, ok := s.store.Token(s.config.Class); !ok {
		return false
	}
	return !s.IsTokenExpired()
}

func (s *SessionService) IsTokenExpired() bool {
	return core.IsExpired(s.now(), s.store.Expiry(s.config.Class), s.config.ExpiryBuffer)
}

func (s *SessionService) TimeUntilExpiry() time.Duration {
	return core.TimeUntilExpiry(s.now(), s.store.Expiry(s.config.Class))
}

func (s *SessionService) TokenExpiry() *time.Time {
	return s.store.Expiry(s.config.Class)
}

// DeadlineIn is how long until IsTokenExpired turns true.
func (s *SessionService) DeadlineIn() time.Duration {
	return core.DeadlineIn(s.now(), s.store.Expiry(s.config.Class), s.config.ExpiryBuffer)
}

// CurrentUser returns the stored user for this class, or nil.
func (s *SessionService) CurrentUser() *core.UserRecord {
	return s.store.User(s.config.Class)
}

// ============================================
// PROFILE & PASSWORD
// ============================================

func (s *SessionService) GetProfile(ctx context.Context) (*core.UserRecord, error) {
	var user core.UserRecord
	if err := s.authorizedCall(ctx, core.EndpointGetProfile, nil, &user); err != nil {
		return nil, err
	}
	s.refreshUser(&user)
	return &user, nil
}

func (s *SessionService) UpdateProfile(ctx context.Context, update core.ProfileUpdate) (*core.UserRecord, error) {
	var user core.UserRecord
	if err := s.authorizedCall(ctx, core.EndpointUpdateProfile, update, &user); err != nil {
		return nil, err
	}
	s.refreshUser(&user)
	return &user, nil
}

func (s *SessionService) ChangePassword(ctx context.Context, input core.ChangePasswordInput) error {
	if input.CurrentPassword == "" || input.NewPassword == "" {
		return core.ErrPasswordRequired
	}
	return s.authorizedCall(ctx, core.EndpointChangePassword, input, nil)
}

// ForgotPassword asks the backend to issue a reset token for email.
func (s *SessionService) ForgotPassword(ctx context.Context, email string) error {
	if email == "" {
		return core.ErrUsernameRequired
	}
	ep, err := s.endpoint(core.EndpointForgotPassword)
	if err != nil {
		return err
	}
	body := map[string]string{"email": email}
	if err := s.api.Call(ctx, ep, "", body, nil); err != nil {
		return classifyCallError(err, false)
	}
	return nil
}

func (s *SessionService) ResetPassword(ctx context.Context, input core.ResetPasswordInput) error {
	if input.Token == "" {
		return core.ErrInvalidToken
	}
	if input.NewPassword == "" {
		return core.ErrPasswordRequired
	}
	ep, err := s.endpoint(core.EndpointResetPassword)
	if err != nil {
		return err
	}
	if err := s.api.Call(ctx, ep, "", input, nil); err != nil {
		return classifyCallError(err, false)
	}
	return nil
}

// authorizedCall runs the pre-flight expiry check, then calls key with the
// stored bearer token.
func (s *SessionService) authorizedCall(ctx context.Context, key core.EndpointKey, body, out any) error {
	ep, err := s.endpoint(key)
	if err != nil {
		return err
	}
	if s.IsTokenExpired() {
		s.store.Clear(s.config.Class)
		return core.NewAuthError(core.ErrSessionExpired, "", nil)
	}
	token, ok := s.store.Token(s.config.Class)
	if !ok {
		return core.NewAuthError(core.ErrNoSession, "", nil)
	}
	if err := s.api.Call(ctx, ep, token, body, out); err != nil {
		return classifyCallError(err, false)
	}
	return nil
}

// ============================================
// HELPERS
// ============================================

func (s *SessionService) endpoint(key core.EndpointKey) (core.Endpoint, error) {
	ep, ok := s.endpoints.Lookup(key)
	if !ok {
		return core.Endpoint{}, fmt.Errorf("%w: %s has no %s endpoint", core.ErrNotSupported, s.config.Class, key)
	}
	return ep, nil
}

func (s *SessionService) persist(token string, user *core.UserRecord) error {
	if user.UserType == "" {
		user.UserType = s.config.Class
	}
	return s.store.Save(s.config.Class, core.SessionRecord{
		Token:     token,
		User:      user,
		ExpiresAt: core.ComputeExpiry(s.now(), s.config.DurationHours),
	})
}

func (s *SessionService) refreshUser(user *core.UserRecord) {
	if user.UserType == "" {
		user.UserType = s.config.Class
	}
	s.store.SetUser(s.config.Class, user)
}

// classifyCallError turns a client error into an AuthError. With login set, a
// backend refusal that is not a server fault means the credentials were wrong.
func classifyCallError(err error, login bool) error {
	if errors.Is(err, core.ErrNetwork) {
		return core.NewAuthError(core.ErrNetwork, "Unable to reach the server", err)
	}
	if errors.Is(err, core.ErrMalformedResponse) {
		return core.NewAuthError(core.ErrMalformedResponse, "", err)
	}

	var apiErr *core.APIError
	if errors.As(err, &apiErr) {
		kind, msg := core.ErrRequestRejected, apiErr.Message
		if login && rejectsCredentials(apiErr.Status) {
			kind = core.ErrInvalidCredentials
			if msg == "" {
				msg = "Invalid username or password"
			}
		}
		return &core.AuthError{Kind: kind, Status: apiErr.Status, Message: msg, Cause: err}
	}
	return err
}

// rejectsCredentials reports whether a login answered with status is a
// credential refusal. Some backends reply 200 or 400 with success false.
func rejectsCredentials(status int) bool {
	switch status {
	case http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized:
		return true
	}
	return false
}
