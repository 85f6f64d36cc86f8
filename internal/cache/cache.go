// Package cache persists fully paginated transaction listings.
//
// Entries are keyed by (endpoint, key) and never expire on their own; a
// caller that wants fresh data skips the lookup and overwrites the entry.
package cache

import (
	"context"
	"errors"
	"strings"

	"upspend/internal/core"
)

var ErrEmptyKey = errors.New("cache key is empty")

// Store is the page cache port used by the fetcher.
type Store interface {
	// Get returns the cached listing. ok is false on a miss.
	Get(ctx context.Context, endpoint, key string) (txs []core.Transaction, ok bool, err error)

	// Put stores the listing, replacing any previous entry.
	Put(ctx context.Context, endpoint, key string, txs []core.Transaction) error
}

func validate(endpoint, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	if strings.TrimSpace(endpoint) == "" {
		return errors.New("cache endpoint is empty")
	}
	return nil
}

func clone(txs []core.Transaction) []core.Transaction {
	if txs == nil {
		return []core.Transaction{}
	}
	out := make([]core.Transaction, len(txs))
	copy(out, txs)
	return out
}
