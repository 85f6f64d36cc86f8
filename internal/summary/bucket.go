package summary

import (
	"math"

	"github.com/shopspring/decimal"

	"upspend/internal/core"
)

// DefaultThreshold is 1% of total spend.
const DefaultThreshold = 0.01

// FindSignificant returns the categories whose absolute total exceeds
// threshold * |SpendTotal|. A non-finite threshold falls back to
// DefaultThreshold.
func FindSignificant(s Summary, threshold float64) map[string]bool {
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		threshold = DefaultThreshold
	}
	limit := decimal.NewFromInt(s.SpendTotal).Mul(decimal.NewFromFloat(threshold)).Abs()
	sig := make(map[string]bool)
	for _, r := range s.Rows {
		if decimal.NewFromInt(r.Total).Abs().GreaterThan(limit) {
			sig[r.Category] = true
		}
	}
	return sig
}

// Shorten folds every category not in sig into "other". The "other" row is
// always present and the spend and income totals are carried over unchanged.
func Shorten(s Summary, sig map[string]bool) Summary {
	other := Row{Category: core.CategoryOther}
	rows := make([]Row, 0, len(s.Rows)+1)
	rows = append(rows, other)

	for _, r := range s.Rows {
		if sig[r.Category] && r.Category != core.CategoryOther {
			rows = append(rows, r)
			continue
		}
		rows[0].Total += r.Total
		rows[0].Count += r.Count
	}
	sortRows(rows)

	return Summary{
		Rows:          rows,
		SpendTotal:    s.SpendTotal,
		SpendSubtotal: s.SpendSubtotal,
		IncomeTotal:   s.IncomeTotal,
		Unresolved:    s.Unresolved,
	}
}

// Summarise aggregates txs and folds immaterial categories into "other".
func Summarise(txs []core.Transaction, threshold float64) Summary {
	full := Aggregate(txs)
	return Shorten(full, FindSignificant(full, threshold))
}
