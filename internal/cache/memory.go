package cache

import (
	"context"
	"time"

	"upspend/internal/core"
)

// MemoryStore keeps listings in an LRU for the lifetime of the process.
type MemoryStore struct {
	lru *LRUCache[[]core.Transaction]
}

// NewMemoryStore holds at most maxEntries listings. A zero ttl never expires.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{lru: NewLRUCache[[]core.Transaction](maxEntries, ttl)}
}

func memoryKey(endpoint, key string) string {
	return endpoint + "\x00" + key
}

func (m *MemoryStore) Get(_ context.Context, endpoint, key string) ([]core.Transaction, bool, error) {
	if err := validate(endpoint, key); err != nil {
		return nil, false, err
	}
	txs, ok := m.lru.Get(memoryKey(endpoint, key))
	if !ok {
		return nil, false, nil
	}
	return clone(txs), true, nil
}

func (m *MemoryStore) Put(_ context.Context, endpoint, key string, txs []core.Transaction) error {
	if err := validate(endpoint, key); err != nil {
		return err
	}
	m.lru.Set(memoryKey(endpoint, key), clone(txs))
	return nil
}
