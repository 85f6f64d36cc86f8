// Package fixer backfills missing categories from a vendor mapping.
package fixer

import (
	"context"
	"sort"

	"upspend/internal/core"
	"upspend/internal/log"
)

// Corrector sets the category of one transaction. The Up client applies it
// directly; the AMQP client queues it for the worker.
type Corrector interface {
	Correct(ctx context.Context, txID, categoryID string) error
}

// Collision is a vendor listed under more than one category.
type Collision struct {
	Vendor     string
	Categories []string
	Winner     string
}

// InvertVendorMap turns {category: [vendor...]} into vendor -> category.
// Categories are applied in sorted order, so when a vendor is listed twice
// the alphabetically last category wins.
func InvertVendorMap(byCategory map[string][]string) map[string]string {
	inv, _ := invert(byCategory)
	return inv
}

// Collisions lists every vendor that InvertVendorMap had to overwrite.
func Collisions(byCategory map[string][]string) []Collision {
	_, c := invert(byCategory)
	return c
}

func invert(byCategory map[string][]string) (map[string]string, []Collision) {
	cats := make([]string, 0, len(byCategory))
	for c := range byCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	inv := make(map[string]string)
	seen := make(map[string][]string)
	for _, cat := range cats {
		for _, vendor := range byCategory[cat] {
			inv[vendor] = cat
			seen[vendor] = append(seen[vendor], cat)
		}
	}

	var collisions []Collision
	for vendor, list := range seen {
		if len(list) > 1 {
			collisions = append(collisions, Collision{Vendor: vendor, Categories: list, Winner: inv[vendor]})
		}
	}
	sort.Slice(collisions, func(i, j int) bool { return collisions[i].Vendor < collisions[j].Vendor })
	return inv, collisions
}

// Result summarises one Fix pass. Issued counts corrections the collaborator
// accepted; Failed holds the rejected ones by transaction id.
type Result struct {
	Issued    int
	Eligible  int
	Unmatched []core.Transaction
	Failed    map[string]error
}

// Attempted is the number of correction requests sent, accepted or not.
func (r Result) Attempted() int {
	return r.Issued + len(r.Failed)
}

type Fixer struct {
	corrector Corrector
	vendors   map[string]string
	logger    *log.Logger
}

func New(corrector Corrector, byCategory map[string][]string, logger *log.Logger) *Fixer {
	if logger == nil {
		logger = log.Nop()
	}
	logger = logger.WithComponent(log.ComponentFixer)
	for _, c := range Collisions(byCategory) {
		logger.Warn("Vendor listed under several categories",
			"vendor", c.Vendor,
			"categories", c.Categories,
			"using", c.Winner)
	}
	return &Fixer{
		corrector: corrector,
		vendors:   InvertVendorMap(byCategory),
		logger:    logger,
	}
}

// Eligible reports whether tx may be corrected and the mapped category, if
// any. Transactions already in a category tree, transfers, and vendors
// mapped to income are never touched.
func (f *Fixer) Eligible(tx core.Transaction) (category string, eligible bool) {
	category = f.vendors[tx.Description]
	if tx.ParentCategoryID != "" || tx.IsTransfer() || category == core.CategoryIncome {
		return "", false
	}
	return category, true
}

// Fix issues one correction per eligible transaction with a vendor match
// and reports eligible transactions without one.
func (f *Fixer) Fix(ctx context.Context, txs []core.Transaction) (Result, error) {
	res := Result{Failed: map[string]error{}}

	for _, tx := range txs {
		category, ok := f.Eligible(tx)
		if !ok {
			continue
		}
		res.Eligible++

		fields := log.NewFields().
			WithOperation(log.OpFix).
			WithTransaction(tx.ID, tx.Day(), tx.Description, tx.AmountDisplay)

		if category == "" {
			res.Unmatched = append(res.Unmatched, tx)
			f.logger.WarnContext(ctx, "No vendor mapping for uncategorised transaction", fields.ToSlice()...)
			continue
		}

		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := f.corrector.Correct(ctx, tx.ID, category); err != nil {
			res.Failed[tx.ID] = err
			f.logger.ErrorContext(ctx, "Category correction failed",
				append(fields.WithError(err).ToSlice(), log.FieldCategory, category)...)
			continue
		}
		res.Issued++
		f.logger.InfoContext(ctx, "Category correction issued",
			append(fields.ToSlice(), log.FieldCategory, category)...)
	}

	if res.Eligible == 0 {
		f.logger.InfoContext(ctx, "All transactions categorised, nothing to do")
	}
	return res, nil
}
