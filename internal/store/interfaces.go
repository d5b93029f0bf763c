package store

import (
	"context"
	"errors"
)

// Predefined errors for store operations
var (
	ErrKeyNotFound = errors.New("store: key not found")
	ErrInvalidKey  = errors.New("store: invalid key")
	ErrSchema      = errors.New("store: storage schema missing")
)

// KeyValueStorer is durable single-writer storage addressed by a fixed key.
// Implementations return ErrKeyNotFound from Get when the key was never written.
type KeyValueStorer interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
