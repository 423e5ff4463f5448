// Package storage provides core.KVStore backends for persisted credentials.
package storage

import (
	"errors"

	"github.com/lborres/bantay/core"
)

var (
	ErrClosed    = errors.New("storage is closed")
	ErrEmptyKey  = errors.New("storage key cannot be empty")
	ErrEmptyPath = errors.New("storage path cannot be empty")
)

var (
	_ core.KVStore = (*Memory)(nil)
	_ core.KVStore = (*File)(nil)
	_ core.KVStore = (*SQLite)(nil)
)

func checkKeys(values map[string]string) error {
	for k := range values {
		if k == "" {
			return ErrEmptyKey
		}
	}
	return nil
}
