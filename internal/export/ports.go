// Package export writes summaries and comparisons to external sinks.
package export

import (
	"context"
	"fmt"

	"upspend/internal/summary"
)

// Ports for outbound writers.
type (
	SummaryWriter interface {
		WriteSummary(ctx context.Context, name string, s summary.Summary) error
	}

	ComparisonWriter interface {
		WriteComparison(ctx context.Context, name string, c summary.Comparison) error
	}
)

// Table is a header plus rows of cells. Cells are strings or integers.
type Table struct {
	Header []string
	Rows   [][]any
}

// Strings renders every cell with fmt.Sprint.
func (t Table) Strings() [][]string {
	out := make([][]string, 0, len(t.Rows)+1)
	out = append(out, append([]string(nil), t.Header...))
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = fmt.Sprint(v)
		}
		out = append(out, rec)
	}
	return out
}

// SummaryTable lays a summary out as CATEGORY, COUNT, TOTAL. TOTAL is the
// absolute rounded subtotal. Rows without a category id are skipped.
func SummaryTable(s summary.Summary) Table {
	t := Table{Header: []string{"CATEGORY", "COUNT", "TOTAL"}}
	for _, r := range s.Rows {
		if r.Category == "" {
			continue
		}
		t.Rows = append(t.Rows, []any{r.Category, r.Count, abs(r.Total)})
	}
	return t
}

// ComparisonTable lays a comparison out with one COUNT and TOTAL column
// pair per period, in period order.
func ComparisonTable(c summary.Comparison) Table {
	t := Table{Header: []string{"CATEGORY"}}
	for _, p := range c.Periods {
		t.Header = append(t.Header, p+" COUNT", p+" TOTAL")
	}
	for _, category := range c.Categories {
		if category == "" {
			continue
		}
		row := []any{category}
		for _, p := range c.Periods {
			total, count := c.Cell(p, category)
			row = append(row, count, abs(total))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
