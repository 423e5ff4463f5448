package core

import (
	"errors"
	"fmt"
)

// Session lifecycle errors. These are the kinds an AuthError can carry.
var (
	ErrInvalidCredentials  = errors.New("invalid username or password")     // 401 from login
	ErrSessionExpired      = errors.New("session expired")                  // local expiry check failed
	ErrTransientValidation = errors.New("session validation failed")        // validate failed, session kept
	ErrNetwork             = errors.New("backend unreachable")              // transport failure
	ErrNoSession           = errors.New("no active session")                // nothing persisted for the class
	ErrMalformedResponse   = errors.New("malformed backend response")       // 2xx with unusable payload
	ErrRequestRejected     = errors.New("request rejected by backend")      // any other non-2xx
	ErrNotSupported        = errors.New("operation not supported for class") // endpoint missing for the class
)

// Input and configuration errors
var (
	ErrUnknownIdentityClass = errors.New("unknown identity class")
	ErrUsernameRequired     = errors.New("username is required")
	ErrPasswordRequired     = errors.New("password is required")
	ErrStorageRequired      = errors.New("storage backend is required")
	ErrBackendRequired      = errors.New("backend client or base URL is required")
	ErrDirectoryRequired    = errors.New("user directory is required")
)

// Backend-side errors used by the directory and dev backend
var (
	ErrUserExists   = errors.New("user already exists") // 409 Conflict
	ErrUserNotFound = errors.New("user not found")      // 404 Not Found
	ErrInvalidToken = errors.New("invalid session token")
	ErrMissingToken = errors.New("missing authorization header")
)

// MsgSessionExpired is shown to the user after a forced logout.
const MsgSessionExpired = "Session expired, please log in again"

// AuthError classifies a failure into one of the kinds above while keeping
// the backend message and the underlying cause.
type AuthError struct {
	Kind    error
	Status  int
	Message string
	Cause   error
}

func (e *AuthError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AuthError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// NewAuthError builds an AuthError of the given kind.
func NewAuthError(kind error, message string, cause error) *AuthError {
	return &AuthError{Kind: kind, Message: message, Cause: cause}
}

// APIError is returned by an AuthAPI when the backend answered with a non-2xx
// status or with success=false.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// StatusOf extracts the HTTP status of an APIError in the chain, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// UserMessage returns the text the UI should show for err. Backend messages
// are surfaced verbatim; expiry always maps to MsgSessionExpired.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrSessionExpired) {
		return MsgSessionExpired
	}
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Message != "" {
		return authErr.Message
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
