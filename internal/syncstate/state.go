// Package syncstate persists the watermark of the last successful run.
//
// The watermark is only advanced by Complete. A run that fails part way
// leaves it untouched, so the next run fetches the same window again.
package syncstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"upspend/internal/core"
	"upspend/internal/log"
)

// DefaultLookback is used when no watermark has been stored yet.
const DefaultLookback = 7 * 24 * time.Hour

// FileName is the state file inside the cache directory.
const FileName = "_upstate.json"

type State struct {
	LastRun time.Time `json:"last_run"`
}

// Store persists a single State record.
type Store interface {
	// Load returns the stored state. ok is false when nothing was stored.
	Load(ctx context.Context) (st State, ok bool, err error)
	Save(ctx context.Context, st State) error
}

// Load returns the stored watermark, or now minus lookback if there is none.
func Load(ctx context.Context, store Store, run core.RunContext, lookback time.Duration, logger *log.Logger) (State, error) {
	st, ok, err := store.Load(ctx)
	if err != nil {
		return State{}, fmt.Errorf("load sync state: %w", err)
	}
	if ok {
		return st, nil
	}
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	st = State{LastRun: run.Now.Add(-lookback)}
	if logger != nil {
		logger.InfoContext(ctx, "No sync state stored, using default watermark",
			log.FieldWatermark, st.LastRun.Format(time.RFC3339))
	}
	return st, nil
}

// Complete records run.Now as the new watermark. Call it only after every
// step of the run has succeeded.
func Complete(ctx context.Context, store Store, run core.RunContext) error {
	if run.Now.IsZero() {
		return errors.New("complete sync: run time is zero")
	}
	if err := store.Save(ctx, State{LastRun: run.Now}); err != nil {
		return fmt.Errorf("save sync state: %w", err)
	}
	return nil
}

// FileStore keeps the state as JSON in <dir>/_upstate.json.
type FileStore struct {
	path string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sync state: create dir: %w", err)
	}
	return &FileStore{path: filepath.Join(dir, FileName)}, nil
}

func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Load(_ context.Context) (State, bool, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read %s: %w", f.path, err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, fmt.Errorf("decode %s: %w", f.path, err)
	}
	if st.LastRun.IsZero() {
		return State{}, false, nil
	}
	return st, true, nil
}

func (f *FileStore) Save(_ context.Context, st State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("rename %s: %w", tmp, err)
	}
	return nil
}

// MemoryStore holds the state for the lifetime of the process.
type MemoryStore struct {
	mu  sync.Mutex
	st  State
	set bool
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(_ context.Context) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st, m.set, nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st, m.set = st, true
	return nil
}
