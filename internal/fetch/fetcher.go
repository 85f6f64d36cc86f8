// Package fetch retrieves complete transaction listings, following
// pagination links and caching the merged result.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"upspend/internal/cache"
	"upspend/internal/core"
	"upspend/internal/log"
	"upspend/internal/upbank"
)

const DefaultMaxPages = 500

var (
	ErrPaginationExceeded = errors.New("pagination exceeded")
	ErrOffline            = errors.New("no API client configured and no cached listing")
)

// Lister is the paginated listing API.
type Lister interface {
	ListTransactions(ctx context.Context, endpoint string, params url.Values) (upbank.Page, error)
	NextPage(ctx context.Context, next string) (upbank.Page, error)
}

type Options struct {
	MaxPages int
	PageSize int
	Logger   *log.Logger
}

type Fetcher struct {
	lister   Lister
	store    cache.Store
	maxPages int
	pageSize int
	logger   *log.Logger
}

// New builds a fetcher. lister may be nil, in which case only cached
// listings can be served.
func New(lister Lister, store cache.Store, opts Options) *Fetcher {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Fetcher{
		lister:   lister,
		store:    store,
		maxPages: opts.MaxPages,
		pageSize: opts.PageSize,
		logger:   opts.Logger.WithComponent(log.ComponentFetch),
	}
}

// Fetch returns the full listing for (endpoint, params). With useCache a
// stored entry is returned without touching the network. A fresh listing is
// stored only after every page has been fetched and every record decoded.
func (f *Fetcher) Fetch(ctx context.Context, endpoint string, params url.Values, cacheKey string, useCache bool) ([]core.Transaction, error) {
	if useCache && f.store != nil {
		txs, ok, err := f.store.Get(ctx, endpoint, cacheKey)
		if err != nil {
			f.logger.WarnContext(ctx, "Cache read failed, refetching",
				log.FieldEndpoint, endpoint,
				log.FieldCacheKey, cacheKey,
				log.FieldError, err)
		} else if ok {
			f.logger.InfoContext(ctx, "Using cached listing",
				log.FieldEndpoint, endpoint,
				log.FieldCacheKey, cacheKey,
				log.FieldCount, len(txs))
			return txs, nil
		}
	}
	if f.lister == nil {
		return nil, fmt.Errorf("fetch %s [%s]: %w", endpoint, cacheKey, ErrOffline)
	}

	start := time.Now()
	txs, pages, err := f.fetchAll(ctx, endpoint, f.withPageSize(params))
	if err != nil {
		return nil, fmt.Errorf("fetch %s [%s]: %w", endpoint, cacheKey, err)
	}

	if f.store != nil {
		if err := f.store.Put(ctx, endpoint, cacheKey, txs); err != nil {
			return nil, fmt.Errorf("store %s [%s]: %w", endpoint, cacheKey, err)
		}
	}

	f.logger.InfoContext(ctx, "Fetched listing",
		log.FieldEndpoint, endpoint,
		log.FieldCacheKey, cacheKey,
		log.FieldPages, pages,
		log.FieldCount, len(txs),
		log.FieldDuration, time.Since(start).Milliseconds())
	return txs, nil
}

// Transactions runs one Query.
func (f *Fetcher) Transactions(ctx context.Context, q Query, useCache bool) ([]core.Transaction, error) {
	return f.Fetch(ctx, q.Endpoint, q.Params, q.CacheKey, useCache)
}

func (f *Fetcher) withPageSize(params url.Values) url.Values {
	p := url.Values{}
	for k, v := range params {
		p[k] = append([]string(nil), v...)
	}
	if f.pageSize > 0 && p.Get("page[size]") == "" {
		p.Set("page[size]", strconv.Itoa(f.pageSize))
	}
	return p
}

func (f *Fetcher) fetchAll(ctx context.Context, endpoint string, params url.Values) ([]core.Transaction, int, error) {
	page, err := f.lister.ListTransactions(ctx, endpoint, params)
	if err != nil {
		return nil, 0, err
	}
	all := page.Transactions
	pages := 1
	skipped := page.Skipped
	seen := map[string]bool{}

	for page.Next != "" {
		if pages >= f.maxPages {
			return nil, pages, fmt.Errorf("%w: more than %d pages", ErrPaginationExceeded, f.maxPages)
		}
		if seen[page.Next] {
			return nil, pages, fmt.Errorf("%w: next link repeated after %d pages", ErrPaginationExceeded, pages)
		}
		seen[page.Next] = true
		if err := ctx.Err(); err != nil {
			return nil, pages, err
		}

		page, err = f.lister.NextPage(ctx, page.Next)
		if err != nil {
			return nil, pages, fmt.Errorf("page %d: %w", pages+1, err)
		}
		all = append(all, page.Transactions...)
		skipped += page.Skipped
		pages++
	}
	if skipped > 0 {
		return nil, pages, fmt.Errorf("%w: %d incomplete transaction records across %d pages", upbank.ErrMalformedResponse, skipped, pages)
	}
	if all == nil {
		all = []core.Transaction{}
	}
	return all, pages, nil
}

// PeriodResult is the outcome of fetching one period.
type PeriodResult struct {
	Query        Query
	Transactions []core.Transaction
	Err          error
}

// FetchPeriods fetches several queries with at most limit in flight. Each
// result carries its own error; a failed period never affects the others.
// Results are returned in query order.
func (f *Fetcher) FetchPeriods(ctx context.Context, queries []Query, useCache bool, limit int) []PeriodResult {
	if limit < 1 {
		limit = 1
	}
	results := make([]PeriodResult, len(queries))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, q := range queries {
		g.Go(func() error {
			txs, err := f.Transactions(ctx, q, useCache)
			results[i] = PeriodResult{Query: q, Transactions: txs, Err: err}
			if err != nil {
				f.logger.ErrorContext(ctx, "Period fetch failed",
					log.FieldPeriod, q.Name,
					log.FieldError, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
