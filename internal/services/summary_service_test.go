package services

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"upspend/internal/cache"
	"upspend/internal/core"
	"upspend/internal/export"
	"upspend/internal/export/memory"
	"upspend/internal/fetch"
	"upspend/internal/fixer"
	"upspend/internal/summary"
	"upspend/internal/syncstate"
	"upspend/internal/upbank"
)

var runAt = time.Date(2024, 5, 28, 12, 0, 0, 0, time.UTC)

// fakeLister serves one page per filter[since] value.
type fakeLister struct {
	mu      sync.Mutex
	bySince map[string][]core.Transaction
	fail    map[string]bool
	since   []string
}

func (f *fakeLister) ListTransactions(_ context.Context, _ string, params url.Values) (upbank.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	since := params.Get("filter[since]")
	f.since = append(f.since, since)
	if f.fail[since] {
		return upbank.Page{}, &upbank.APIError{Status: 503, Reason: "Service Unavailable"}
	}
	return upbank.Page{Transactions: f.bySince[since]}, nil
}

func (f *fakeLister) NextPage(context.Context, string) (upbank.Page, error) {
	return upbank.Page{}, errors.New("unexpected next page")
}

type recordingCorrector struct {
	calls map[string]string
	err   error
}

func (r *recordingCorrector) Correct(_ context.Context, txID, categoryID string) error {
	if r.err != nil {
		return r.err
	}
	r.calls[txID] = categoryID
	return nil
}

type failingWriter struct{}

func (failingWriter) WriteSummary(context.Context, string, summary.Summary) error {
	return errors.New("disk full")
}

func since(t time.Time) string { return t.Format(time.RFC3339) }

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: "1", CreatedAt: runAt, Description: "Woolworths", AmountMinor: -50000, CategoryID: "groceries"},
		{ID: "2", CreatedAt: runAt, Description: "Cafe", AmountMinor: -5000, CategoryID: "coffee"},
		{ID: "3", CreatedAt: runAt, Description: "Salary", AmountMinor: 200000},
	}
}

func newService(lister *fakeLister, fix *fixer.Fixer, writers ...export.SummaryWriter) (*SummaryService, *syncstate.MemoryStore) {
	state := syncstate.NewMemoryStore()
	f := fetch.New(lister, cache.NewMemoryStore(16, 0), fetch.Options{})
	cfg := DefaultServiceConfig()
	cfg.Threshold = 0.1
	return NewSummaryService(f, state, fix, writers, cfg, nil), state
}

func TestSummarise_ExportsShortSummary(t *testing.T) {
	lister := &fakeLister{bySince: map[string][]core.Transaction{
		since(runAt.AddDate(0, 0, -28)): sample(),
	}}
	mem := memory.New()
	svc, _ := newService(lister, nil, mem)

	rep, err := svc.Summarise(context.Background(), core.NewRunContext("r", runAt), "month", true)
	require.NoError(t, err)

	require.Equal(t, "month", rep.Query.Name)
	require.Equal(t, []string{"groceries", core.CategoryOther, core.CategoryIncome}, rep.Short.Categories())
	require.Len(t, rep.Full.Rows, 3)

	tbl, ok := mem.Table("month")
	require.True(t, ok)
	require.Equal(t, [][]any{
		{"groceries", 1, int64(500)},
		{core.CategoryOther, 1, int64(50)},
		{core.CategoryIncome, 1, int64(2000)},
	}, tbl.Rows)

	// Served from cache the second time.
	_, err = svc.Summarise(context.Background(), core.NewRunContext("r", runAt), "month", true)
	require.NoError(t, err)
	require.Len(t, lister.since, 1)
}

func TestSummarise_ExportError(t *testing.T) {
	svc, _ := newService(&fakeLister{}, nil, failingWriter{})

	_, err := svc.Summarise(context.Background(), core.NewRunContext("r", runAt), "week", false)
	require.ErrorContains(t, err, "disk full")
}

func TestSummarise_UnknownMode(t *testing.T) {
	svc, _ := newService(&fakeLister{}, nil)

	_, err := svc.Summarise(context.Background(), core.NewRunContext("r", runAt), "fortnight", false)
	require.ErrorContains(t, err, "unknown mode")
}

func TestCompare_DropsFailedLaterPeriod(t *testing.T) {
	lister := &fakeLister{
		bySince: map[string][]core.Transaction{since(runAt.AddDate(0, 0, -7)): sample()},
		fail:    map[string]bool{since(runAt.AddDate(0, 0, -28)): true},
	}
	mem := memory.New()
	svc, _ := newService(lister, nil, mem)

	cmp, err := svc.Compare(context.Background(), core.NewRunContext("r", runAt), []string{"week", "month"}, false)
	require.NoError(t, err)
	require.Equal(t, []string{"week"}, cmp.Periods)

	_, ok := mem.Table("compare-week")
	require.True(t, ok)
}

func TestCompare_AnchorFailureAborts(t *testing.T) {
	lister := &fakeLister{fail: map[string]bool{since(runAt.AddDate(0, 0, -7)): true}}
	svc, _ := newService(lister, nil)

	_, err := svc.Compare(context.Background(), core.NewRunContext("r", runAt), []string{"week", "month"}, false)
	require.ErrorIs(t, err, ErrAnchorFailed)

	_, err = svc.Compare(context.Background(), core.NewRunContext("r", runAt), nil, false)
	require.ErrorIs(t, err, summary.ErrNoPeriods)
}

func TestFix_RequiresVendorMap(t *testing.T) {
	svc, _ := newService(&fakeLister{}, nil)

	_, err := svc.Fix(context.Background(), core.NewRunContext("r", runAt), "week", false)
	require.ErrorIs(t, err, ErrNoVendorMap)
}

func TestSync_AdvancesWatermarkOnSuccess(t *testing.T) {
	firstSince := runAt.Add(-syncstate.DefaultLookback)
	lister := &fakeLister{bySince: map[string][]core.Transaction{
		since(firstSince): {
			{ID: "a", CreatedAt: runAt, Description: "Coles", AmountMinor: -2000},
			{ID: "b", CreatedAt: runAt, Description: "Mystery", AmountMinor: -100},
		},
	}}
	corrector := &recordingCorrector{calls: map[string]string{}}
	fix := fixer.New(corrector, map[string][]string{"groceries": {"Coles"}}, nil)
	svc, state := newService(lister, fix)

	res, err := svc.Sync(context.Background(), core.NewRunContext("r", runAt))
	require.NoError(t, err)

	require.Equal(t, []string{since(firstSince)}, lister.since)
	require.Equal(t, map[string]string{"a": "groceries"}, corrector.calls)
	require.NotNil(t, res.Fix)
	require.Equal(t, 1, res.Fix.Issued)
	require.Len(t, res.Fix.Unmatched, 1)
	require.Equal(t, runAt, res.Watermark)

	st, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, st.LastRun.Equal(runAt))

	// The next run starts where this one ended.
	next := runAt.Add(24 * time.Hour)
	_, err = svc.Sync(context.Background(), core.NewRunContext("r2", next))
	require.NoError(t, err)
	require.Equal(t, since(runAt), lister.since[1])
}

func TestSync_KeepsWatermarkOnFailure(t *testing.T) {
	firstSince := runAt.Add(-syncstate.DefaultLookback)
	lister := &fakeLister{bySince: map[string][]core.Transaction{
		since(firstSince): {{ID: "a", CreatedAt: runAt, Description: "Coles", AmountMinor: -2000}},
	}}
	corrector := &recordingCorrector{err: &upbank.APIError{Status: 500}}
	fix := fixer.New(corrector, map[string][]string{"groceries": {"Coles"}}, nil)
	svc, state := newService(lister, fix)

	_, err := svc.Sync(context.Background(), core.NewRunContext("r", runAt))
	require.ErrorIs(t, err, ErrFixIncomplete)

	_, ok, err := state.Load(context.Background())
	require.NoError(t, err)
	require.False(t, ok)

	lister.fail = map[string]bool{since(firstSince): true}
	_, err = NewSummaryService(fetch.New(lister, nil, fetch.Options{}), state, nil, nil, DefaultServiceConfig(), nil).
		Sync(context.Background(), core.NewRunContext("r", runAt))
	require.Error(t, err)
	_, ok, _ = state.Load(context.Background())
	require.False(t, ok)
}
