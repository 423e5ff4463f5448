package core

import "time"

// IdentityClass separates the two user populations that can sign in to the
// dashboard. Each class has its own token, user record and expiry instant.
type IdentityClass string

const (
	ClassCommunity IdentityClass = "community"
	ClassSystem    IdentityClass = "system"
)

// Valid reports whether c is one of the known identity classes.
func (c IdentityClass) Valid() bool {
	return c == ClassCommunity || c == ClassSystem
}

// Other returns the opposite class.
func (c IdentityClass) Other() IdentityClass {
	if c == ClassSystem {
		return ClassCommunity
	}
	return ClassSystem
}

func (c IdentityClass) String() string {
	return string(c)
}

// ParseIdentityClass maps a user supplied string to an IdentityClass
func ParseIdentityClass(s string) (IdentityClass, error) {
	switch IdentityClass(s) {
	case ClassCommunity, "":
		return ClassCommunity, nil
	case ClassSystem:
		return ClassSystem, nil
	}
	return "", ErrUnknownIdentityClass
}

// UserRecord is the profile persisted next to a token.
//
// Both identity classes share this shape; UserType tells them apart.
type UserRecord struct {
	ID         string        `json:"id"`
	Username   string        `json:"username"`
	Name       string        `json:"name,omitempty"`
	Email      string        `json:"email,omitempty"`
	Role       string        `json:"role,omitempty"`
	Department string        `json:"department,omitempty"`
	Phone      string        `json:"phone,omitempty"`
	Status     string        `json:"status,omitempty"`
	UserType   IdentityClass `json:"userType"`
}

// Clone returns a copy so callers can't mutate shared state
func (u *UserRecord) Clone() *UserRecord {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

// SessionRecord is everything persisted for one identity class.
// Token, User and ExpiresAt are always written and cleared together.
type SessionRecord struct {
	Token     string      `json:"token"`
	User      *UserRecord `json:"user"`
	ExpiresAt time.Time   `json:"expiresAt"`
}

// Credentials is the login request body
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterInput is the full profile payload sent to the register endpoint.
type RegisterInput struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ProfileUpdate carries the editable profile fields. Empty fields are left
// unchanged by the backend.
type ProfileUpdate struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Department string `json:"department,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// AuthResult is the data payload of a successful login or register call.
type AuthResult struct {
	User  *UserRecord `json:"user"`
	Token string      `json:"token,omitempty"`
}

// Envelope is the JSON shape every backend response uses
type Envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data,omitempty"`
}

// TokenStatus is the read-only view surfaced to the UI
type TokenStatus struct {
	IsExpired       bool          `json:"isExpired"`
	TimeUntilExpiry time.Duration `json:"timeUntilExpiry"`
	ExpiryDate      *time.Time    `json:"expiryDate,omitempty"`
	FormattedTime   string        `json:"formattedTime"`
	IsNearExpiry    bool          `json:"isNearExpiry"`
}
