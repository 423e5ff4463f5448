package crypto

import (
	"crypto/rand"
	"errors"
)

const (
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	idSize     = 21
)

var ErrIDSize = errors.New("id size must be positive")

// NewID returns a URL-safe random identifier (nanoid alphabet, 21 chars).
func NewID() (string, error) {
	return NewIDSize(idSize)
}

// NewIDSize is NewID with a custom length. The 64-symbol alphabet lets every
// random byte map to a symbol with a 6-bit mask, so there is no rejection loop.
func NewIDSize(size int) (string, error) {
	if size <= 0 {
		return "", ErrIDSize
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}

	id := make([]byte, size)
	for i, b := range buf {
		id[i] = idAlphabet[b&63]
	}
	return string(id), nil
}
