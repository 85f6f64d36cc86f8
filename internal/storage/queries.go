package storage

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type PageCache struct {
	Endpoint  string
	CacheKey  string
	Payload   string
	TxCount   int64
	FetchedAt string
}

type CorrectionLog struct {
	MessageID     string
	TransactionID string
	CategoryID    string
	Status        string
	Error         string
	ProcessedAt   string
}

const getPageCache = `-- name: GetPageCache :one
SELECT endpoint, cache_key, payload, tx_count, fetched_at FROM page_cache
WHERE endpoint = ? AND cache_key = ?
`

type GetPageCacheParams struct {
	Endpoint string
	CacheKey string
}

func (q *Queries) GetPageCache(ctx context.Context, arg GetPageCacheParams) (PageCache, error) {
	row := q.db.QueryRowContext(ctx, getPageCache, arg.Endpoint, arg.CacheKey)
	var i PageCache
	err := row.Scan(
		&i.Endpoint,
		&i.CacheKey,
		&i.Payload,
		&i.TxCount,
		&i.FetchedAt,
	)
	return i, err
}

const upsertPageCache = `-- name: UpsertPageCache :exec
INSERT INTO page_cache (endpoint, cache_key, payload, tx_count, fetched_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (endpoint, cache_key) DO UPDATE SET
    payload = excluded.payload,
    tx_count = excluded.tx_count,
    fetched_at = excluded.fetched_at
`

type UpsertPageCacheParams struct {
	Endpoint  string
	CacheKey  string
	Payload   string
	TxCount   int64
	FetchedAt string
}

func (q *Queries) UpsertPageCache(ctx context.Context, arg UpsertPageCacheParams) error {
	_, err := q.db.ExecContext(ctx, upsertPageCache,
		arg.Endpoint,
		arg.CacheKey,
		arg.Payload,
		arg.TxCount,
		arg.FetchedAt,
	)
	return err
}

const countPageCache = `-- name: CountPageCache :one
SELECT COUNT(*) FROM page_cache
`

func (q *Queries) CountPageCache(ctx context.Context) (int64, error) {
	row := q.db.QueryRowContext(ctx, countPageCache)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getSyncState = `-- name: GetSyncState :one
SELECT last_run FROM sync_state WHERE id = 1
`

func (q *Queries) GetSyncState(ctx context.Context) (string, error) {
	row := q.db.QueryRowContext(ctx, getSyncState)
	var lastRun string
	err := row.Scan(&lastRun)
	return lastRun, err
}

const upsertSyncState = `-- name: UpsertSyncState :exec
INSERT INTO sync_state (id, last_run, updated_at)
VALUES (1, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    last_run = excluded.last_run,
    updated_at = excluded.updated_at
`

type UpsertSyncStateParams struct {
	LastRun   string
	UpdatedAt string
}

func (q *Queries) UpsertSyncState(ctx context.Context, arg UpsertSyncStateParams) error {
	_, err := q.db.ExecContext(ctx, upsertSyncState, arg.LastRun, arg.UpdatedAt)
	return err
}

const getCorrection = `-- name: GetCorrection :one
SELECT message_id, transaction_id, category_id, status, error, processed_at FROM correction_log
WHERE message_id = ?
`

func (q *Queries) GetCorrection(ctx context.Context, messageID string) (CorrectionLog, error) {
	row := q.db.QueryRowContext(ctx, getCorrection, messageID)
	var i CorrectionLog
	err := row.Scan(
		&i.MessageID,
		&i.TransactionID,
		&i.CategoryID,
		&i.Status,
		&i.Error,
		&i.ProcessedAt,
	)
	return i, err
}

const recordCorrection = `-- name: RecordCorrection :exec
INSERT INTO correction_log (message_id, transaction_id, category_id, status, error, processed_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (message_id) DO UPDATE SET
    status = excluded.status,
    error = excluded.error,
    processed_at = excluded.processed_at
`

type RecordCorrectionParams struct {
	MessageID     string
	TransactionID string
	CategoryID    string
	Status        string
	Error         string
	ProcessedAt   string
}

func (q *Queries) RecordCorrection(ctx context.Context, arg RecordCorrectionParams) error {
	_, err := q.db.ExecContext(ctx, recordCorrection,
		arg.MessageID,
		arg.TransactionID,
		arg.CategoryID,
		arg.Status,
		arg.Error,
		arg.ProcessedAt,
	)
	return err
}
