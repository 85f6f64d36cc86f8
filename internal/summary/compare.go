package summary

import (
	"errors"
	"fmt"

	"upspend/internal/core"
)

var (
	ErrNoPeriods       = errors.New("no periods to compare")
	ErrDuplicatePeriod = errors.New("duplicate period name")
)

// Period is a named transaction set. The first period passed to Compare is
// the anchor.
type Period struct {
	Name         string
	Transactions []core.Transaction
}

// Comparison holds aligned summaries: every period has a row, possibly zero,
// for every category in Categories.
type Comparison struct {
	Periods     []string
	Categories  []string
	Significant map[string]bool
	Summaries   map[string]Summary
}

// Compare summarises each period with the significance set of the anchor
// period, then zero-fills so all periods share the same categories.
// Categories are listed in the anchor's row order, followed by categories
// only seen in later periods.
func Compare(periods []Period, threshold float64) (Comparison, error) {
	if len(periods) == 0 {
		return Comparison{}, ErrNoPeriods
	}

	anchor := Aggregate(periods[0].Transactions)
	sig := FindSignificant(anchor, threshold)

	cmp := Comparison{
		Periods:     make([]string, 0, len(periods)),
		Significant: sig,
		Summaries:   make(map[string]Summary, len(periods)),
	}
	seen := make(map[string]bool)
	for i, p := range periods {
		if _, dup := cmp.Summaries[p.Name]; dup {
			return Comparison{}, fmt.Errorf("%w: %q", ErrDuplicatePeriod, p.Name)
		}
		full := anchor
		if i > 0 {
			full = Aggregate(p.Transactions)
		}
		short := Shorten(full, sig)
		cmp.Periods = append(cmp.Periods, p.Name)
		cmp.Summaries[p.Name] = short
		for _, r := range short.Rows {
			if !seen[r.Category] {
				seen[r.Category] = true
				cmp.Categories = append(cmp.Categories, r.Category)
			}
		}
	}

	for name, s := range cmp.Summaries {
		cmp.Summaries[name] = zeroFill(s, cmp.Categories)
	}
	return cmp, nil
}

func zeroFill(s Summary, categories []string) Summary {
	present := make(map[string]bool, len(s.Rows))
	for _, r := range s.Rows {
		present[r.Category] = true
	}
	rows := make([]Row, len(s.Rows), len(categories))
	copy(rows, s.Rows)
	for _, c := range categories {
		if !present[c] {
			rows = append(rows, Row{Category: c})
		}
	}
	sortRows(rows)
	s.Rows = rows
	return s
}

// Cell returns the total and count of one category in one period.
func (c Comparison) Cell(period, category string) (int64, int) {
	s, ok := c.Summaries[period]
	if !ok {
		return 0, 0
	}
	r, _ := s.Row(category)
	return r.Total, r.Count
}
