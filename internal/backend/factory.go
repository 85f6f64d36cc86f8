package backend

import (
	"context"
	"fmt"

	"upspend/internal/cache"
	"upspend/internal/log"
	"upspend/internal/storage"
	"upspend/internal/syncstate"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Nop()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case FileBackend:
		return f.createFileBackend(ctx, config)
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createFileBackend(ctx context.Context, config Config) (*BackendResult, error) {
	pages, err := cache.NewFileStore(config.CacheDir, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file cache: %w", err)
	}
	state, err := syncstate.NewFileStore(config.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sync state: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized file backend", "cache_dir", config.CacheDir)

	return &BackendResult{
		Backend: Backend{Cache: pages, State: state},
	}, nil
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	entries, err := repo.CachedEntries(ctx)
	if err != nil {
		repo.Close()
		return nil, err
	}
	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"cached_listings", entries)

	return &BackendResult{
		Backend: Backend{
			Cache:       repo,
			State:       repo.StateStore(),
			Corrections: repo,
		},
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	entries := config.MemoryEntries
	if entries <= 0 {
		entries = 64
	}

	f.logger.InfoContext(ctx, "Initialized memory backend", "max_entries", entries)

	return &BackendResult{
		Backend: Backend{
			Cache: cache.NewMemoryStore(entries, 0),
			State: syncstate.NewMemoryStore(),
		},
	}, nil
}
