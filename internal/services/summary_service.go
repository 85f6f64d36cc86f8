// Package services orchestrates one command run: fetch, summarise, fix,
// export and advance the sync watermark.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"upspend/internal/core"
	"upspend/internal/export"
	"upspend/internal/fetch"
	"upspend/internal/fixer"
	"upspend/internal/log"
	"upspend/internal/summary"
	"upspend/internal/syncstate"
)

var (
	ErrNoVendorMap   = errors.New("no vendor map configured")
	ErrAnchorFailed  = errors.New("anchor period could not be fetched")
	ErrFixIncomplete = errors.New("some category corrections failed")
)

// ServiceConfig holds the tunables of a run
type ServiceConfig struct {
	// Threshold is the share of total spend below which a category is
	// folded into "other" (default: summary.DefaultThreshold)
	Threshold float64

	// Lookback is the default watermark age when no sync state exists
	// (default: syncstate.DefaultLookback)
	Lookback time.Duration

	// Concurrency bounds parallel period fetches in Compare (default: 1)
	Concurrency int
}

// DefaultServiceConfig returns sensible defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Threshold:   summary.DefaultThreshold,
		Lookback:    syncstate.DefaultLookback,
		Concurrency: 1,
	}
}

// SummaryService wires the summary pipeline to its collaborators. Fixer and
// exporters are optional.
type SummaryService struct {
	fetcher *fetch.Fetcher
	state   syncstate.Store
	fixer   *fixer.Fixer
	exports []export.SummaryWriter
	config  ServiceConfig
	logger  *log.Logger
}

func NewSummaryService(
	fetcher *fetch.Fetcher,
	state syncstate.Store,
	fix *fixer.Fixer,
	exports []export.SummaryWriter,
	config ServiceConfig,
	logger *log.Logger,
) *SummaryService {
	if config.Concurrency < 1 {
		config.Concurrency = 1
	}
	if config.Lookback <= 0 {
		config.Lookback = syncstate.DefaultLookback
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &SummaryService{
		fetcher: fetcher,
		state:   state,
		fixer:   fix,
		exports: exports,
		config:  config,
		logger:  logger.WithComponent(log.ComponentSummary),
	}
}

// Report is the outcome of summarising one period.
type Report struct {
	Query fetch.Query
	Full  summary.Summary
	Short summary.Summary
}

// LoadWatermark fills run.Watermark from sync state.
func (s *SummaryService) LoadWatermark(ctx context.Context, run core.RunContext) (core.RunContext, error) {
	st, err := syncstate.Load(ctx, s.state, run, s.config.Lookback, s.logger)
	if err != nil {
		return run, err
	}
	return run.WithWatermark(st.LastRun), nil
}

// Transactions returns the listing for a mode.
func (s *SummaryService) Transactions(ctx context.Context, run core.RunContext, mode string, useCache bool) (fetch.Query, []core.Transaction, error) {
	if mode == "recent" && run.Watermark.IsZero() {
		var err error
		if run, err = s.LoadWatermark(ctx, run); err != nil {
			return fetch.Query{}, nil, err
		}
	}
	q, err := fetch.ModeQuery(run, mode)
	if err != nil {
		return fetch.Query{}, nil, err
	}
	txs, err := s.fetcher.Transactions(ctx, q, useCache)
	if err != nil {
		return q, nil, fmt.Errorf("fetch %s: %w", q.Name, err)
	}
	return q, txs, nil
}

// Summarise fetches one mode, summarises it and exports the short summary.
func (s *SummaryService) Summarise(ctx context.Context, run core.RunContext, mode string, useCache bool) (Report, error) {
	q, txs, err := s.Transactions(ctx, run, mode, useCache)
	if err != nil {
		return Report{}, err
	}
	return s.summarise(ctx, q, txs)
}

func (s *SummaryService) summarise(ctx context.Context, q fetch.Query, txs []core.Transaction) (Report, error) {
	full := summary.Aggregate(txs)
	summary.ReportUnresolved(ctx, s.logger, full)
	short := summary.Shorten(full, summary.FindSignificant(full, s.config.Threshold))

	s.logger.InfoContext(ctx, "Summarised transactions",
		log.FieldOperation, log.OpSummary,
		log.FieldPeriod, q.Name,
		log.FieldCount, len(txs))

	for _, w := range s.exports {
		if err := w.WriteSummary(ctx, q.Name, short); err != nil {
			return Report{}, fmt.Errorf("export summary %s: %w", q.Name, err)
		}
	}
	return Report{Query: q, Full: full, Short: short}, nil
}

// Compare fetches each mode and compares them against the first. A failed
// later period is logged and left out; a failed anchor aborts.
func (s *SummaryService) Compare(ctx context.Context, run core.RunContext, modes []string, useCache bool) (summary.Comparison, error) {
	if len(modes) == 0 {
		return summary.Comparison{}, summary.ErrNoPeriods
	}
	if contains(modes, "recent") && run.Watermark.IsZero() {
		var err error
		if run, err = s.LoadWatermark(ctx, run); err != nil {
			return summary.Comparison{}, err
		}
	}

	queries := make([]fetch.Query, 0, len(modes))
	for _, m := range modes {
		q, err := fetch.ModeQuery(run, m)
		if err != nil {
			return summary.Comparison{}, err
		}
		queries = append(queries, q)
	}

	results := s.fetcher.FetchPeriods(ctx, queries, useCache, s.config.Concurrency)
	if results[0].Err != nil {
		return summary.Comparison{}, fmt.Errorf("%w: %s: %v", ErrAnchorFailed, results[0].Query.Name, results[0].Err)
	}

	periods := make([]summary.Period, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			s.logger.WarnContext(ctx, "Leaving failed period out of comparison",
				log.FieldPeriod, r.Query.Name,
				log.FieldError, r.Err)
			continue
		}
		periods = append(periods, summary.Period{Name: r.Query.Name, Transactions: r.Transactions})
	}

	cmp, err := summary.Compare(periods, s.config.Threshold)
	if err != nil {
		return summary.Comparison{}, err
	}

	s.logger.InfoContext(ctx, "Compared periods",
		log.FieldOperation, log.OpCompare,
		log.FieldCount, len(cmp.Periods))

	name := "compare"
	for _, p := range cmp.Periods {
		name += "-" + p
	}
	for _, w := range s.exports {
		cw, ok := w.(export.ComparisonWriter)
		if !ok {
			continue
		}
		if err := cw.WriteComparison(ctx, name, cmp); err != nil {
			return summary.Comparison{}, fmt.Errorf("export comparison: %w", err)
		}
	}
	return cmp, nil
}

// Fix fetches one mode and backfills missing categories.
func (s *SummaryService) Fix(ctx context.Context, run core.RunContext, mode string, useCache bool) (fixer.Result, error) {
	if s.fixer == nil {
		return fixer.Result{}, ErrNoVendorMap
	}
	_, txs, err := s.Transactions(ctx, run, mode, useCache)
	if err != nil {
		return fixer.Result{}, err
	}
	return s.fixer.Fix(ctx, txs)
}

// SyncResult is the outcome of an incremental run.
type SyncResult struct {
	Report    Report
	Fix       *fixer.Result
	Watermark time.Time
}

// Sync summarises everything since the last successful run, fixing
// categories first when a vendor map is configured. The watermark only
// advances when every step succeeded.
func (s *SummaryService) Sync(ctx context.Context, run core.RunContext) (SyncResult, error) {
	run, err := s.LoadWatermark(ctx, run)
	if err != nil {
		return SyncResult{}, err
	}
	s.logger.InfoContext(ctx, "Starting incremental sync",
		log.FieldOperation, log.OpSync,
		log.FieldWatermark, run.Watermark.Format(time.RFC3339))

	q := fetch.RecentQuery(run)
	txs, err := s.fetcher.Transactions(ctx, q, false)
	if err != nil {
		return SyncResult{}, fmt.Errorf("fetch %s: %w", q.Name, err)
	}

	res := SyncResult{Watermark: run.Watermark}
	if s.fixer != nil {
		fixed, err := s.fixer.Fix(ctx, txs)
		if err != nil {
			return res, fmt.Errorf("fix categories: %w", err)
		}
		res.Fix = &fixed
		if len(fixed.Failed) > 0 {
			return res, fmt.Errorf("%w: %d of %d", ErrFixIncomplete, len(fixed.Failed), fixed.Eligible)
		}
	}

	res.Report, err = s.summarise(ctx, q, txs)
	if err != nil {
		return res, err
	}

	if err := syncstate.Complete(ctx, s.state, run); err != nil {
		return res, err
	}
	res.Watermark = run.Now
	s.logger.InfoContext(ctx, "Sync complete",
		log.FieldOperation, log.OpSync,
		log.FieldWatermark, run.Now.Format(time.RFC3339))
	return res, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
