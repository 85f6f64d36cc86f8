package fixer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"upspend/internal/core"
)

type recordingCorrector struct {
	calls [][2]string
	fail  map[string]error
}

func (r *recordingCorrector) Correct(_ context.Context, txID, categoryID string) error {
	r.calls = append(r.calls, [2]string{txID, categoryID})
	return r.fail[txID]
}

func newTx(id, desc string) core.Transaction {
	return core.Transaction{
		ID:            id,
		CreatedAt:     time.Date(2024, 4, 2, 12, 0, 0, 0, time.UTC),
		Description:   desc,
		AmountMinor:   -1500,
		AmountDisplay: "-15.00",
	}
}

func TestInvertVendorMap(t *testing.T) {
	byCategory := map[string][]string{
		"groceries":    {"Woolworths", "Coles"},
		"takeaway":     {"Uber Eats", "Coles"},
		"income":       {"ACME Payroll"},
		"empty-bucket": nil,
	}

	inv := InvertVendorMap(byCategory)
	require.Equal(t, map[string]string{
		"Woolworths":   "groceries",
		"Coles":        "takeaway",
		"Uber Eats":    "takeaway",
		"ACME Payroll": "income",
	}, inv)

	collisions := Collisions(byCategory)
	require.Equal(t, []Collision{{Vendor: "Coles", Categories: []string{"groceries", "takeaway"}, Winner: "takeaway"}}, collisions)
}

func TestFix(t *testing.T) {
	byCategory := map[string][]string{
		"groceries": {"Woolworths"},
		"takeaway":  {"Uber Eats"},
		"income":    {"ACME Payroll"},
	}

	alreadyCategorised := newTx("t2", "Woolworths")
	alreadyCategorised.ParentCategoryID = "home"
	alreadyCategorised.CategoryID = "groceries"
	transfer := newTx("t3", "Uber Eats")
	transfer.TransferAccountID = "saver"

	txs := []core.Transaction{
		newTx("t1", "Woolworths"),
		alreadyCategorised,
		transfer,
		newTx("t4", "ACME Payroll"),
		newTx("t5", "Corner Store"),
		newTx("t6", "Uber Eats"),
	}

	corrector := &recordingCorrector{}
	res, err := New(corrector, byCategory, nil).Fix(context.Background(), txs)
	require.NoError(t, err)

	require.Equal(t, 2, res.Issued)
	require.Equal(t, 3, res.Eligible)
	require.Len(t, res.Unmatched, 1)
	require.Equal(t, "t5", res.Unmatched[0].ID)
	require.Empty(t, res.Failed)
	require.Equal(t, [][2]string{{"t1", "groceries"}, {"t6", "takeaway"}}, corrector.calls)
}

func TestFix_FailuresAreReported(t *testing.T) {
	corrector := &recordingCorrector{fail: map[string]error{"t1": errors.New("503")}}
	f := New(corrector, map[string][]string{"groceries": {"Woolworths"}}, nil)

	res, err := f.Fix(context.Background(), []core.Transaction{newTx("t1", "Woolworths"), newTx("t2", "Woolworths")})
	require.NoError(t, err)
	require.Equal(t, 1, res.Issued)
	require.Equal(t, 2, res.Attempted())
	require.Contains(t, res.Failed, "t1")
	require.Len(t, corrector.calls, 2)
}

func TestFix_NothingEligible(t *testing.T) {
	tx := newTx("t1", "Woolworths")
	tx.ParentCategoryID = "home"

	res, err := New(&recordingCorrector{}, nil, nil).Fix(context.Background(), []core.Transaction{tx})
	require.NoError(t, err)
	require.Zero(t, res.Issued)
	require.Zero(t, res.Attempted())
	require.Zero(t, res.Eligible)
}

func TestFix_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	corrector := &recordingCorrector{}

	_, err := New(corrector, map[string][]string{"groceries": {"Woolworths"}}, nil).
		Fix(ctx, []core.Transaction{newTx("t1", "Woolworths")})
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, corrector.calls)
}

func TestLoadVendorMap(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"vendors.toml": `
[vendors]
groceries = ["Woolworths", "Coles"]
takeaway = ["Uber Eats"]
`,
		"vendors.yaml": `
groceries:
  - Woolworths
  - Coles
takeaway:
  - Uber Eats
`,
		"vendors.json": `{"groceries": ["Woolworths", "Coles"], "takeaway": ["Uber Eats"]}`,
	}

	for name, body := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

			got, err := LoadVendorMap(path)
			require.NoError(t, err)
			require.Equal(t, map[string][]string{
				"groceries": {"Woolworths", "Coles"},
				"takeaway":  {"Uber Eats"},
			}, got)
		})
	}

	_, err := LoadVendorMap(filepath.Join(dir, "missing.toml"))
	require.Error(t, err)

	empty := filepath.Join(dir, "empty.toml")
	require.NoError(t, os.WriteFile(empty, []byte("title = \"x\"\n"), 0o644))
	_, err = LoadVendorMap(empty)
	require.Error(t, err)
}
