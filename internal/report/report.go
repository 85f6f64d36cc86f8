// Package report renders summaries, comparisons and listings for the
// terminal.
package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"upspend/internal/core"
	"upspend/internal/summary"
	"upspend/internal/upbank"
)

// Line is one header line of a summary: a label, its share of income and
// its amount in whole major units.
type Line struct {
	Label   string
	Percent string
	Amount  int64
}

// HeaderLines returns Spending (without investments), Investments, Total,
// Income and Net, each as a percentage of income.
func HeaderLines(s summary.Summary) []Line {
	investments := s.Subtotal(core.CategoryInvestments)
	return []Line{
		{"Spending", core.FormatPercent(s.SpendSubtotal, s.IncomeTotal), s.SpendSubtotal},
		{"Investments", core.FormatPercent(investments, s.IncomeTotal), investments},
		{"Total", core.FormatPercent(s.SpendTotal, s.IncomeTotal), s.SpendTotal},
		{"Income", core.FormatPercent(s.IncomeTotal, s.IncomeTotal), s.IncomeTotal},
		{"Net", core.FormatPercent(s.Net(), s.IncomeTotal), s.Net()},
	}
}

type Reporter struct {
	out    io.Writer
	dir    core.CategoryDirectory
	styles styles
}

// New creates a reporter writing to out. Colours are only emitted when out
// is a terminal.
func New(out io.Writer, dir core.CategoryDirectory) *Reporter {
	return &Reporter{
		out:    out,
		dir:    dir,
		styles: newStyles(lipgloss.NewRenderer(out)),
	}
}

func (r *Reporter) println(s string) {
	fmt.Fprintln(r.out, s)
}

func (r *Reporter) amount(v int64) string {
	s := strconv.FormatInt(v, 10)
	switch {
	case v < 0:
		return r.styles.negative.Render(s)
	case v > 0:
		return r.styles.positive.Render(s)
	}
	return r.styles.muted.Render(s)
}

func (r *Reporter) newTable(headers ...string) *table.Table {
	st := r.styles
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(st.border).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return st.header
			case col == 0:
				return st.cell
			}
			return st.number
		})
}

// Summary prints the header lines followed by one row per category.
func (r *Reporter) Summary(heading string, s summary.Summary) {
	for _, l := range HeaderLines(s) {
		r.println(fmt.Sprintf("%s  %6s  %s", r.styles.label.Render(l.Label), l.Percent, r.amount(l.Amount)))
	}
	r.println("")
	r.println(r.styles.heading.Render(heading))

	t := r.newTable("Category", "Count", "Total")
	for _, row := range s.Rows {
		if row.Category == "" {
			continue
		}
		t.Row(r.dir.Name(row.Category), strconv.Itoa(row.Count), r.amount(row.Total))
	}
	r.println(t.String())
}

// Comparison prints one row per category in the anchor period's order with
// a count and total column per period.
func (r *Reporter) Comparison(c summary.Comparison) {
	headers := []string{"Category"}
	for _, p := range c.Periods {
		headers = append(headers, p+" #", p)
	}
	t := r.newTable(headers...)
	for _, category := range c.Categories {
		row := []string{r.dir.Name(category)}
		for _, p := range c.Periods {
			total, count := c.Cell(p, category)
			row = append(row, strconv.Itoa(count), r.amount(total))
		}
		t.Row(row...)
	}
	r.println(r.styles.heading.Render("ALL CATEGORIES"))
	r.println(t.String())
}

// Transactions lists date, description, amount, parent category and
// category of each transaction.
func (r *Reporter) Transactions(txs []core.Transaction) {
	t := r.newTable("Date", "Description", "Amount", "Parent", "Category")
	for _, tx := range txs {
		t.Row(tx.Day(), tx.Description, tx.AmountDisplay, r.dir.Name(tx.ParentCategoryID), r.dir.Name(tx.CategoryID))
	}
	r.println(r.styles.heading.Render("TRANSACTIONS"))
	r.println(t.String())
	r.println(fmt.Sprintf("#: %d", len(txs)))
}

// Accounts lists balances and display names.
func (r *Reporter) Accounts(accounts []upbank.Account) {
	t := r.newTable("Balance", "Account")
	for _, a := range accounts {
		t.Row(a.Balance, a.DisplayName)
	}
	r.println(r.styles.heading.Render("ACCOUNTS"))
	r.println(t.String())
}

// Categories lists the category directory, sorted by id.
func (r *Reporter) Categories() {
	t := r.newTable("ID", "Name")
	for _, id := range r.dir.IDs() {
		t.Row(id, r.dir.Name(id))
	}
	r.println(r.styles.heading.Render("CATEGORIES"))
	r.println(t.String())
}
