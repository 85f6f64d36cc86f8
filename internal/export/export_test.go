package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"upspend/internal/summary"
)

func TestSummaryTable(t *testing.T) {
	s := summary.Summary{Rows: []summary.Row{
		{Category: "groceries", Total: -500, Count: 3},
		{Category: "", Total: -7, Count: 1},
		{Category: "other", Total: -50, Count: 2},
		{Category: "income", Total: 2000, Count: 1},
	}}

	tbl := SummaryTable(s)

	require.Equal(t, []string{"CATEGORY", "COUNT", "TOTAL"}, tbl.Header)
	require.Equal(t, [][]any{
		{"groceries", 3, int64(500)},
		{"other", 2, int64(50)},
		{"income", 1, int64(2000)},
	}, tbl.Rows)
	require.Equal(t, [][]string{
		{"CATEGORY", "COUNT", "TOTAL"},
		{"groceries", "3", "500"},
		{"other", "2", "50"},
		{"income", "1", "2000"},
	}, tbl.Strings())
}

func TestComparisonTable(t *testing.T) {
	cmp := summary.Comparison{
		Periods:    []string{"2024", "2023"},
		Categories: []string{"rent", "other"},
		Summaries: map[string]summary.Summary{
			"2024": {Rows: []summary.Row{{Category: "rent", Total: -1200, Count: 12}, {Category: "other", Total: -30, Count: 4}}},
			"2023": {Rows: []summary.Row{{Category: "rent", Total: 0, Count: 0}, {Category: "other", Total: -80, Count: 9}}},
		},
	}

	tbl := ComparisonTable(cmp)

	require.Equal(t, []string{"CATEGORY", "2024 COUNT", "2024 TOTAL", "2023 COUNT", "2023 TOTAL"}, tbl.Header)
	require.Equal(t, [][]any{
		{"rent", 12, int64(1200), 0, int64(0)},
		{"other", 4, int64(30), 9, int64(80)},
	}, tbl.Rows)
}
