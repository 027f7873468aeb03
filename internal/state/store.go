// Package state persists the small pieces of sync bookkeeping (the catalog
// checkpoint and the genre retry ledger) outside the catalog database.
package state

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("state: key not found")

// Store is a tiny key/value store. Commit writes every entry or none of them
// (the file backend only guarantees this per key).
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Commit(ctx context.Context, entries map[string][]byte) error
	Close() error
}

// Open returns the backend named by kind: "file", "badger" or "memory".
func Open(kind, dir string) (Store, error) {
	switch kind {
	case "", "file":
		return NewFileStore(dir)
	case "badger":
		return OpenBadger(dir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", kind)
	}
}
