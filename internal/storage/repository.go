// Package storage is the SQLite backend for the page cache, the sync
// watermark and the correction log.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"upspend/internal/core"
	"upspend/internal/log"
	"upspend/internal/syncstate"

	_ "modernc.org/sqlite"
)

const (
	CorrectionApplied = "applied"
	CorrectionFailed  = "failed"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
	now     func() time.Time
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, errors.New("sqlite database path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if logger == nil {
		logger = log.Nop()
	}
	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger.WithComponent(log.ComponentStorage),
		now:     time.Now,
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Get implements cache.Store
func (r *SQLiteRepository) Get(ctx context.Context, endpoint, key string) ([]core.Transaction, bool, error) {
	row, err := r.queries.GetPageCache(ctx, GetPageCacheParams{Endpoint: endpoint, CacheKey: key})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get page cache: %w", err)
	}

	txs := []core.Transaction{}
	if err := json.Unmarshal([]byte(row.Payload), &txs); err != nil {
		return nil, false, fmt.Errorf("decode page cache %s/%s: %w", endpoint, key, err)
	}

	r.logger.DebugContext(ctx, "Page cache hit",
		log.FieldEndpoint, endpoint,
		log.FieldCacheKey, key,
		log.FieldCount, row.TxCount,
		"fetched_at", row.FetchedAt)
	return txs, true, nil
}

// Put implements cache.Store
func (r *SQLiteRepository) Put(ctx context.Context, endpoint, key string, txs []core.Transaction) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("put page cache: empty cache key")
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	payload, err := json.Marshal(txs)
	if err != nil {
		return fmt.Errorf("encode page cache: %w", err)
	}

	err = r.queries.UpsertPageCache(ctx, UpsertPageCacheParams{
		Endpoint:  endpoint,
		CacheKey:  key,
		Payload:   string(payload),
		TxCount:   int64(len(txs)),
		FetchedAt: r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("upsert page cache: %w", err)
	}

	r.logger.InfoContext(ctx, "Page cache saved to SQLite",
		log.FieldEndpoint, endpoint,
		log.FieldCacheKey, key,
		log.FieldCount, len(txs))
	return nil
}

// CachedEntries returns the number of stored listings.
func (r *SQLiteRepository) CachedEntries(ctx context.Context) (int64, error) {
	n, err := r.queries.CountPageCache(ctx)
	if err != nil {
		return 0, fmt.Errorf("count page cache: %w", err)
	}
	return n, nil
}

// StateStore adapts the repository to syncstate.Store.
func (r *SQLiteRepository) StateStore() syncstate.Store {
	return stateStore{r}
}

type stateStore struct {
	r *SQLiteRepository
}

func (s stateStore) Load(ctx context.Context) (syncstate.State, bool, error) {
	raw, err := s.r.queries.GetSyncState(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return syncstate.State{}, false, nil
	}
	if err != nil {
		return syncstate.State{}, false, fmt.Errorf("get sync state: %w", err)
	}
	lastRun, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return syncstate.State{}, false, fmt.Errorf("parse sync state %q: %w", raw, err)
	}
	return syncstate.State{LastRun: lastRun}, true, nil
}

func (s stateStore) Save(ctx context.Context, st syncstate.State) error {
	err := s.r.queries.UpsertSyncState(ctx, UpsertSyncStateParams{
		LastRun:   st.LastRun.Format(time.RFC3339Nano),
		UpdatedAt: s.r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("upsert sync state: %w", err)
	}
	s.r.logger.InfoContext(ctx, "Sync state saved",
		log.FieldWatermark, st.LastRun.Format(time.RFC3339))
	return nil
}

// CorrectionProcessed reports whether a queued correction was already applied.
func (r *SQLiteRepository) CorrectionProcessed(ctx context.Context, messageID string) (bool, error) {
	row, err := r.queries.GetCorrection(ctx, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get correction: %w", err)
	}
	return row.Status == CorrectionApplied, nil
}

// RecordCorrection stores the outcome of one queued correction.
func (r *SQLiteRepository) RecordCorrection(ctx context.Context, messageID, txID, categoryID string, applyErr error) error {
	status, errText := CorrectionApplied, ""
	if applyErr != nil {
		status, errText = CorrectionFailed, applyErr.Error()
	}
	err := r.queries.RecordCorrection(ctx, RecordCorrectionParams{
		MessageID:     messageID,
		TransactionID: txID,
		CategoryID:    categoryID,
		Status:        status,
		Error:         errText,
		ProcessedAt:   r.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("record correction: %w", err)
	}
	if applyErr != nil {
		r.logger.WarnContext(ctx, "Correction marked as failed",
			"message_id", messageID,
			log.FieldTxID, txID,
			log.FieldError, applyErr)
	}
	return nil
}
