package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"upspend/internal/cache"
	"upspend/internal/core"
	"upspend/internal/upbank"
)

// fakeLister serves pages keyed by "first" and by next link.
type fakeLister struct {
	mu         sync.Mutex
	pages      map[string]upbank.Page
	failOn     string
	calls      int
	lastParams url.Values
}

func (f *fakeLister) ListTransactions(_ context.Context, endpoint string, params url.Values) (upbank.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastParams = params
	key := endpoint + "?" + params.Get("filter[since]")
	if f.failOn == key || f.failOn == "first" {
		return upbank.Page{}, &upbank.APIError{Status: 500, Reason: "Internal Server Error", Body: "boom"}
	}
	if p, ok := f.pages[key]; ok {
		return p, nil
	}
	return f.pages["first"], nil
}

func (f *fakeLister) NextPage(_ context.Context, next string) (upbank.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failOn == next {
		return upbank.Page{}, &upbank.APIError{Status: 502, Reason: "Bad Gateway"}
	}
	p, ok := f.pages[next]
	if !ok {
		return upbank.Page{}, fmt.Errorf("unexpected link %s", next)
	}
	return p, nil
}

func txs(ids ...string) []core.Transaction {
	out := make([]core.Transaction, len(ids))
	for i, id := range ids {
		out[i] = core.Transaction{ID: id, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), AmountMinor: -100}
	}
	return out
}

func threePages() *fakeLister {
	return &fakeLister{pages: map[string]upbank.Page{
		"first":          {Transactions: txs("a", "b"), Next: "https://api/p2"},
		"https://api/p2": {Transactions: txs("c"), Next: "https://api/p3"},
		"https://api/p3": {Transactions: txs("d", "e")},
	}}
}

func ids(list []core.Transaction) string {
	parts := make([]string, len(list))
	for i, t := range list {
		parts[i] = t.ID
	}
	return strings.Join(parts, ",")
}

func TestFetch_FollowsPagesInOrder(t *testing.T) {
	lister := threePages()
	f := New(lister, cache.NewMemoryStore(8, 0), Options{PageSize: 50})

	got, err := f.Fetch(context.Background(), "/transactions", url.Values{"filter[since]": {"x"}}, "k", true)
	require.NoError(t, err)
	require.Equal(t, "a,b,c,d,e", ids(got))
	require.Equal(t, 3, lister.calls)
	require.Equal(t, "50", lister.lastParams.Get("page[size]"))
}

func TestFetch_IdempotentCache(t *testing.T) {
	lister := threePages()
	f := New(lister, cache.NewMemoryStore(8, 0), Options{})
	ctx := context.Background()

	first, err := f.Fetch(ctx, "/transactions", nil, "k", true)
	require.NoError(t, err)
	callsAfterFirst := lister.calls

	second, err := f.Fetch(ctx, "/transactions", nil, "k", true)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, callsAfterFirst, lister.calls, "second fetch must not hit the network")
}

func TestFetch_NoCacheForcesRefetchAndOverwrite(t *testing.T) {
	lister := threePages()
	store := cache.NewMemoryStore(8, 0)
	f := New(lister, store, Options{})
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "/transactions", "k", txs("stale")))

	got, err := f.Fetch(ctx, "/transactions", nil, "k", false)
	require.NoError(t, err)
	require.Equal(t, "a,b,c,d,e", ids(got))

	cached, ok, err := store.Get(ctx, "/transactions", "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a,b,c,d,e", ids(cached))
}

func TestFetch_ErrorWritesNoCache(t *testing.T) {
	lister := threePages()
	lister.failOn = "https://api/p3"
	store := cache.NewMemoryStore(8, 0)
	f := New(lister, store, Options{})

	_, err := f.Fetch(context.Background(), "/transactions", nil, "k", true)
	var apiErr *upbank.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 502, apiErr.Status)

	_, ok, _ := store.Get(context.Background(), "/transactions", "k")
	require.False(t, ok, "partial listings must not be cached")
}

func TestFetch_IncompleteRecordsFailWithoutCaching(t *testing.T) {
	lister := &fakeLister{pages: map[string]upbank.Page{
		"first":          {Transactions: txs("a"), Next: "https://api/p2"},
		"https://api/p2": {Transactions: txs("b"), Skipped: 1},
	}}
	store := cache.NewMemoryStore(8, 0)
	f := New(lister, store, Options{})

	got, err := f.Fetch(context.Background(), "/transactions", nil, "k", true)
	require.ErrorIs(t, err, upbank.ErrMalformedResponse)
	require.Nil(t, got)

	_, ok, _ := store.Get(context.Background(), "/transactions", "k")
	require.False(t, ok, "a listing with dropped records must not be cached")
}

func TestFetch_PaginationCap(t *testing.T) {
	lister := threePages()
	store := cache.NewMemoryStore(8, 0)
	f := New(lister, store, Options{MaxPages: 2})

	_, err := f.Fetch(context.Background(), "/transactions", nil, "k", true)
	require.ErrorIs(t, err, ErrPaginationExceeded)
	require.Equal(t, 2, lister.calls)

	_, ok, _ := store.Get(context.Background(), "/transactions", "k")
	require.False(t, ok)
}

func TestFetch_RepeatedLinkStops(t *testing.T) {
	lister := &fakeLister{pages: map[string]upbank.Page{
		"first":            {Transactions: txs("a"), Next: "https://api/loop"},
		"https://api/loop": {Transactions: txs("b"), Next: "https://api/loop"},
	}}
	f := New(lister, nil, Options{})

	_, err := f.Fetch(context.Background(), "/transactions", nil, "k", false)
	require.ErrorIs(t, err, ErrPaginationExceeded)
}

func TestFetch_Offline(t *testing.T) {
	store := cache.NewMemoryStore(8, 0)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "/transactions", "k", txs("a")))
	f := New(nil, store, Options{})

	got, err := f.Fetch(ctx, "/transactions", nil, "k", true)
	require.NoError(t, err)
	require.Equal(t, "a", ids(got))

	_, err = f.Fetch(ctx, "/transactions", nil, "missing", true)
	require.ErrorIs(t, err, ErrOffline)
}

func TestFetchPeriods_IsolatesFailures(t *testing.T) {
	lister := &fakeLister{
		pages: map[string]upbank.Page{
			"first": {Transactions: txs("x")},
		},
	}
	run := core.NewRunContext("r", time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	good := RollingQuery(run, 7)
	bad := YearQuery(2023, time.UTC)
	lister.failOn = "/transactions?" + bad.Params.Get("filter[since]")

	f := New(lister, cache.NewMemoryStore(8, 0), Options{})
	for _, limit := range []int{1, 4} {
		results := f.FetchPeriods(context.Background(), []Query{good, bad, RollingQuery(run, 28)}, false, limit)

		require.Len(t, results, 3)
		require.NoError(t, results[0].Err)
		require.Equal(t, "x", ids(results[0].Transactions))
		require.Error(t, results[1].Err)
		require.Nil(t, results[1].Transactions)
		require.NoError(t, results[2].Err)
		require.Equal(t, "28d", results[2].Query.Name)
	}
}

func TestQueries(t *testing.T) {
	loc := time.FixedZone("AEST", 10*3600)
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, loc)
	run := core.NewRunContext("r", now).WithWatermark(now.Add(-36 * time.Hour))

	y := YearQuery(2023, loc)
	require.Equal(t, "YR=2023", y.CacheKey)
	require.Equal(t, "2023-01-01T00:00:00+10:00", y.Params.Get("filter[since]"))
	require.Equal(t, "2023-12-31T23:59:00+10:00", y.Params.Get("filter[until]"))

	tests := []struct {
		mode    string
		key     string
		since   string
		wantErr bool
	}{
		{mode: "week", key: "2024-06-01-DAYS=7", since: "2024-05-25T12:00:00+10:00"},
		{mode: "month", key: "2024-06-01-DAYS=28", since: "2024-05-04T12:00:00+10:00"},
		{mode: "year", key: "2024-06-01-DAYS=365"},
		{mode: "all", key: "2024-06-01-DAYS=9999"},
		{mode: "recent", key: "2024-06-01-RECENT", since: "2024-05-31T00:00:00+10:00"},
		{mode: "2022", key: "YR=2022"},
		{mode: "fortnight", wantErr: true},
		{mode: "99", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			q, err := ModeQuery(run, tt.mode)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.key, q.CacheKey)
			require.Equal(t, TransactionsEndpoint, q.Endpoint)
			if tt.since != "" {
				require.Equal(t, tt.since, q.Params.Get("filter[since]"))
			}
		})
	}

	_, err := ModeQuery(core.NewRunContext("r", now), "recent")
	require.Error(t, err, "recent needs a watermark")
}

func TestFetch_CancelledContext(t *testing.T) {
	lister := threePages()
	f := New(lister, nil, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Fetch(ctx, "/transactions", nil, "k", false)
	require.True(t, errors.Is(err, context.Canceled))
}
