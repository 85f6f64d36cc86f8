package core

import (
	"errors"
	"sort"
	"strings"
	"time"
)

// Well-known category identifiers.
const (
	CategoryIncome      = "income"
	CategoryNone        = "none"
	CategoryOther       = "other"
	CategoryInvestments = "investments"

	TagIgnore          = "ignore"
	DescWithholdingTax = "Withholding Tax"
)

// OutcomeKind is the result class of resolving a transaction's category.
type OutcomeKind int

const (
	OutcomeCategory OutcomeKind = iota
	OutcomeExcluded
	OutcomeUncategorized
)

type (
	// Transaction is a read-only bank transaction. Optional relationships are
	// empty strings when absent.
	Transaction struct {
		ID                string    `json:"id"`
		CreatedAt         time.Time `json:"created_at"`
		Description       string    `json:"description"`
		AmountMinor       int64     `json:"amount_minor"`
		AmountDisplay     string    `json:"amount_display"`
		CategoryID        string    `json:"category_id,omitempty"`
		ParentCategoryID  string    `json:"parent_category_id,omitempty"`
		TransferAccountID string    `json:"transfer_account_id,omitempty"`
		Tags              []string  `json:"tags,omitempty"`
	}

	// Outcome is the effective category of a transaction.
	Outcome struct {
		Kind       OutcomeKind
		CategoryID string
	}

	// RunContext carries the time snapshot of one invocation. It is built once
	// at startup and passed to every component that needs "now".
	RunContext struct {
		RunID     string
		Now       time.Time
		Watermark time.Time
	}

	// CategoryDirectory maps category ids to display names.
	CategoryDirectory struct {
		names map[string]string
	}
)

var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrMissingID          = errors.New("transaction id is empty")
	ErrMissingCreatedAt   = errors.New("transaction createdAt is zero")
)

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.Join(ErrInvalidTransaction, ErrMissingID)
	}
	if t.CreatedAt.IsZero() {
		return errors.Join(ErrInvalidTransaction, ErrMissingCreatedAt)
	}
	return nil
}

// IsTransfer reports whether the transaction moves money between own accounts.
func (t Transaction) IsTransfer() bool {
	return t.TransferAccountID != ""
}

// Ignored reports whether the first tag is "ignore".
func (t Transaction) Ignored() bool {
	return len(t.Tags) > 0 && t.Tags[0] == TagIgnore
}

// Day returns the YYYY-MM-DD prefix of the creation timestamp.
func (t Transaction) Day() string {
	return t.CreatedAt.Format("2006-01-02")
}

func Category(id string) Outcome { return Outcome{Kind: OutcomeCategory, CategoryID: id} }

func Excluded() Outcome { return Outcome{Kind: OutcomeExcluded} }

func Uncategorized() Outcome { return Outcome{Kind: OutcomeUncategorized} }

// Key returns the aggregation key of the outcome. Excluded outcomes have no key.
func (o Outcome) Key() (string, bool) {
	switch o.Kind {
	case OutcomeCategory:
		return o.CategoryID, true
	case OutcomeUncategorized:
		return CategoryNone, true
	default:
		return "", false
	}
}

// NewRunContext snapshots now once; the watermark is filled in after sync
// state has been loaded.
func NewRunContext(runID string, now time.Time) RunContext {
	return RunContext{RunID: runID, Now: now}
}

// WithWatermark returns a copy with the given watermark.
func (r RunContext) WithWatermark(w time.Time) RunContext {
	r.Watermark = w
	return r
}

// Today is the local calendar date of Now, used in cache keys.
func (r RunContext) Today() string {
	return r.Now.Format("2006-01-02")
}

// NewCategoryDirectory copies names and always adds other -> Other.
func NewCategoryDirectory(names map[string]string) CategoryDirectory {
	m := make(map[string]string, len(names)+1)
	m[CategoryOther] = "Other"
	for id, name := range names {
		m[id] = name
	}
	return CategoryDirectory{names: m}
}

// Name returns the display name, falling back to the id.
func (d CategoryDirectory) Name(id string) string {
	if n, ok := d.names[id]; ok {
		return n
	}
	return id
}

func (d CategoryDirectory) Has(id string) bool {
	_, ok := d.names[id]
	return ok
}

func (d CategoryDirectory) Len() int { return len(d.names) }

// IDs returns the category ids sorted alphabetically.
func (d CategoryDirectory) IDs() []string {
	ids := make([]string, 0, len(d.names))
	for id := range d.names {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
