// Package kv defines the string-keyed store the ledger persists into.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("kv: key not found")

// Ports for storage adapters.
type (
	// Store is a flat string-keyed store. Set replaces the whole value.
	Store interface {
		Get(ctx context.Context, key string) (string, error)
		Set(ctx context.Context, key, value string) error
		Delete(ctx context.Context, key string) error
		// Clear removes every key.
		Clear(ctx context.Context) error
	}

	// Pinger is implemented by stores backed by a connection that can be
	// checked for readiness.
	Pinger interface {
		Ping(ctx context.Context) error
	}
)
