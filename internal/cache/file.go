package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"upspend/internal/core"
	"upspend/internal/log"
)

// FileStore writes one JSON file per entry under
// <root>/<endpoint>/getpaged-<key>.json.
type FileStore struct {
	root   string
	logger *log.Logger
}

func NewFileStore(root string, logger *log.Logger) (*FileStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("file cache: root directory is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("file cache: create root: %w", err)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &FileStore{root: root, logger: logger.WithComponent(log.ComponentCache)}, nil
}

var keyReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")

// Path returns the file that holds an entry.
func (f *FileStore) Path(endpoint, key string) (string, error) {
	if err := validate(endpoint, key); err != nil {
		return "", err
	}
	dir := filepath.Clean(filepath.FromSlash(strings.Trim(endpoint, "/")))
	if dir == "." || strings.HasPrefix(dir, "..") || filepath.IsAbs(dir) {
		return "", fmt.Errorf("file cache: invalid endpoint %q", endpoint)
	}
	return filepath.Join(f.root, dir, "getpaged-"+keyReplacer.Replace(key)+".json"), nil
}

func (f *FileStore) Get(ctx context.Context, endpoint, key string) ([]core.Transaction, bool, error) {
	path, err := f.Path(endpoint, key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("file cache: read %s: %w", path, err)
	}

	var txs []core.Transaction
	if err := json.Unmarshal(data, &txs); err != nil {
		return nil, false, fmt.Errorf("file cache: decode %s: %w", path, err)
	}
	f.logger.DebugContext(ctx, "Cache hit",
		log.FieldEndpoint, endpoint,
		log.FieldCacheKey, key,
		log.FieldCount, len(txs))
	return clone(txs), true, nil
}

// Put writes the entry through a temp file so a crash never leaves a
// truncated listing behind.
func (f *FileStore) Put(ctx context.Context, endpoint, key string, txs []core.Transaction) error {
	path, err := f.Path(endpoint, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("file cache: create dir: %w", err)
	}

	data, err := json.Marshal(clone(txs))
	if err != nil {
		return fmt.Errorf("file cache: encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".getpaged-*.tmp")
	if err != nil {
		return fmt.Errorf("file cache: temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file cache: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file cache: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("file cache: rename: %w", err)
	}

	f.logger.DebugContext(ctx, "Cache entry written",
		log.FieldEndpoint, endpoint,
		log.FieldCacheKey, key,
		log.FieldCount, len(txs))
	return nil
}
