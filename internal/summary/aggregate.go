package summary

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"upspend/internal/core"
	"upspend/internal/log"
)

// Row is one category line of a summary. Total is in whole major units.
type Row struct {
	Category string
	Total    int64
	Count    int
}

// Summary is an immutable per-category snapshot of a transaction set.
// Rows are sorted ascending by Total; ties keep first-seen order.
type Summary struct {
	Rows          []Row
	SpendTotal    int64
	SpendSubtotal int64
	IncomeTotal   int64

	// Unresolved holds the transactions aggregated under "none".
	Unresolved []core.Transaction
}

// Aggregate sums transactions per effective category. Amounts are summed
// exactly and each category is rounded once, half to even.
func Aggregate(txs []core.Transaction) Summary {
	var (
		order  []string
		sums   = make(map[string]decimal.Decimal)
		counts = make(map[string]int)
		s      Summary
	)

	for _, tx := range txs {
		outcome := Resolve(tx)
		key, ok := outcome.Key()
		if !ok {
			continue
		}
		if outcome.Kind == core.OutcomeUncategorized {
			s.Unresolved = append(s.Unresolved, tx)
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
			sums[key] = decimal.Zero
		}
		sums[key] = sums[key].Add(core.MinorToMajor(tx.AmountMinor))
		counts[key]++
	}

	s.Rows = make([]Row, 0, len(order))
	for _, key := range order {
		s.Rows = append(s.Rows, Row{
			Category: key,
			Total:    core.RoundMajor(sums[key]),
			Count:    counts[key],
		})
	}
	sortRows(s.Rows)
	s.SpendTotal, s.SpendSubtotal, s.IncomeTotal = totals(s.Rows)
	return s
}

func sortRows(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total < rows[j].Total
	})
}

func totals(rows []Row) (spend, spendSub, income int64) {
	for _, r := range rows {
		switch {
		case r.Total < 0:
			spend += r.Total
			if r.Category != core.CategoryInvestments {
				spendSub += r.Total
			}
		case r.Total > 0:
			income += r.Total
		}
	}
	return spend, spendSub, income
}

// Row returns the row for a category.
func (s Summary) Row(category string) (Row, bool) {
	for _, r := range s.Rows {
		if r.Category == category {
			return r, true
		}
	}
	return Row{}, false
}

// Subtotal returns the rounded total of a category, zero when absent.
func (s Summary) Subtotal(category string) int64 {
	r, _ := s.Row(category)
	return r.Total
}

// Count returns the transaction count of a category, zero when absent.
func (s Summary) Count(category string) int {
	r, _ := s.Row(category)
	return r.Count
}

// Categories returns the category ids in row order.
func (s Summary) Categories() []string {
	ids := make([]string, len(s.Rows))
	for i, r := range s.Rows {
		ids[i] = r.Category
	}
	return ids
}

// Sum is the sum of all row totals.
func (s Summary) Sum() int64 {
	var sum int64
	for _, r := range s.Rows {
		sum += r.Total
	}
	return sum
}

// TotalCount is the number of aggregated transactions.
func (s Summary) TotalCount() int {
	var n int
	for _, r := range s.Rows {
		n += r.Count
	}
	return n
}

// Net is income plus (negative) spending.
func (s Summary) Net() int64 {
	return s.IncomeTotal + s.SpendTotal
}

// ReportUnresolved logs every uncategorized transaction so it can be fixed.
func ReportUnresolved(ctx context.Context, logger *log.Logger, s Summary) {
	for _, tx := range s.Unresolved {
		logger.WarnContext(ctx, "Uncategorized transaction",
			log.FieldDate, tx.Day(),
			log.FieldDescription, tx.Description,
			log.FieldAmount, tx.AmountDisplay)
	}
}
