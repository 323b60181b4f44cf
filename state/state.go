package state

import (
	"context"
	"errors"
	"strings"
)

// Common errors.
var (
	// ErrNotFound indicates the key does not exist.
	ErrNotFound = errors.New("key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store closed")

	// ErrInvalidKey indicates the key is empty or malformed.
	ErrInvalidKey = errors.New("invalid key")
)

// Store is the persistence surface for saved runner state.
type Store interface {
	// Put creates or replaces the value at key.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves the value at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases the backend. Further calls return ErrClosed.
	Close() error
}

// ValidateKey rejects empty keys and keys with whitespace, which the
// NATS backend cannot represent.
func ValidateKey(key string) error {
	if key == "" || strings.ContainsAny(key, " \t\r\n") {
		return ErrInvalidKey
	}
	return nil
}
