package backend

import (
	"context"

	"upspend/internal/cache"
	"upspend/internal/syncstate"
)

// CorrectionLog records queued corrections so the worker can skip
// redelivered messages. Only the sqlite backend provides one.
type CorrectionLog interface {
	CorrectionProcessed(ctx context.Context, messageID string) (bool, error)
	RecordCorrection(ctx context.Context, messageID, txID, categoryID string, applyErr error) error
}

// Backend bundles the local persistence used by one run.
type Backend struct {
	Cache       cache.Store
	State       syncstate.Store
	Corrections CorrectionLog
}

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult contains the backend instance and optional cleanup function
type BackendResult struct {
	Backend Backend
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// File backend: page cache and _upstate.json live here.
	CacheDir string

	// SQLite backend
	SQLiteDBPath string

	// Memory backend
	MemoryEntries int
}

// BackendType represents the type of backend
type BackendType string

const (
	FileBackend   BackendType = "file"
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

// String implements fmt.Stringer
func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case FileBackend, SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
