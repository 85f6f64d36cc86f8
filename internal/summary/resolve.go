// Package summary turns transaction lists into per-category summaries.
//
// The pipeline is Resolve (per transaction) -> Aggregate -> FindSignificant
// -> Shorten. Compare runs the pipeline over several periods and aligns the
// resulting category sets.
package summary

import (
	"upspend/internal/core"
)

// Resolve computes the effective category of one transaction. It is a pure
// function of the transaction's fields.
//
// Rules, in order:
//  1. first tag "ignore": excluded
//  2. transfer: its direct category if present, otherwise excluded
//  3. direct category: that category
//  4. credit or "Withholding Tax": income
//  5. anything else: uncategorized, aggregated as "none"
func Resolve(tx core.Transaction) core.Outcome {
	if tx.Ignored() {
		return core.Excluded()
	}
	if tx.IsTransfer() {
		if tx.CategoryID != "" {
			return core.Category(tx.CategoryID)
		}
		return core.Excluded()
	}
	if tx.CategoryID != "" {
		return core.Category(tx.CategoryID)
	}
	if tx.AmountMinor > 0 || tx.Description == core.DescWithholdingTax {
		return core.Category(core.CategoryIncome)
	}
	return core.Uncategorized()
}
