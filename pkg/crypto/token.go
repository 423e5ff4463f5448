package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const (
	// SessionTokenBytes is the entropy of a bearer token (256 bits)
	SessionTokenBytes = 32
	// ResetTokenBytes is shorter since reset tokens are typed by hand from email
	ResetTokenBytes = 16
)

var ErrEmptyToken = errors.New("token and hash cannot be empty")

// TokenPair holds the raw token handed to the client and the hash the backend
// keeps. Only the hash is ever stored.
type TokenPair struct {
	Token string
	Hash  string
}

// NewToken returns a random URL-safe token of n bytes and its hash.
func NewToken(n int) (*TokenPair, error) {
	if n <= 0 {
		n = SessionTokenBytes
	}

	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	token := base64.RawURLEncoding.EncodeToString(buf)
	return &TokenPair{Token: token, Hash: HashToken(token)}, nil
}

// HashToken is the storage key for a token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyToken compares a presented token against a stored hash in constant time.
func VerifyToken(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, ErrEmptyToken
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1, nil
}
