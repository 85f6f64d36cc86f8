package fetch

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"upspend/internal/core"
)

const TransactionsEndpoint = "/transactions"

// Named rolling windows, in days.
var modeDays = map[string]int{
	"week":  7,
	"month": 28,
	"year":  365,
	"all":   9999,
}

// Query is one cacheable listing request.
type Query struct {
	Name     string
	Endpoint string
	Params   url.Values
	CacheKey string
}

func sinceUntil(since, until time.Time) url.Values {
	v := url.Values{}
	v.Set("filter[since]", since.Format(time.RFC3339))
	if !until.IsZero() {
		v.Set("filter[until]", until.Format(time.RFC3339))
	}
	return v
}

// YearQuery covers a calendar year in loc, keyed YR=<year>.
func YearQuery(year int, loc *time.Location) Query {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, loc)
	last := time.Date(year, time.December, 31, 23, 59, 0, 0, loc)
	return Query{
		Name:     strconv.Itoa(year),
		Endpoint: TransactionsEndpoint,
		Params:   sinceUntil(first, last),
		CacheKey: "YR=" + strconv.Itoa(year),
	}
}

// RollingQuery covers the last days days before run.Now, keyed
// <today>-DAYS=<days>.
func RollingQuery(run core.RunContext, days int) Query {
	return Query{
		Name:     fmt.Sprintf("%dd", days),
		Endpoint: TransactionsEndpoint,
		Params:   sinceUntil(run.Now.AddDate(0, 0, -days), time.Time{}),
		CacheKey: fmt.Sprintf("%s-DAYS=%d", run.Today(), days),
	}
}

// RecentQuery covers everything since the sync watermark, keyed
// <today>-RECENT.
func RecentQuery(run core.RunContext) Query {
	return Query{
		Name:     "recent",
		Endpoint: TransactionsEndpoint,
		Params:   sinceUntil(run.Watermark, time.Time{}),
		CacheKey: run.Today() + "-RECENT",
	}
}

// ModeQuery maps a command-line mode to a query: week, month, year, all,
// recent, or a four digit calendar year.
func ModeQuery(run core.RunContext, mode string) (Query, error) {
	if days, ok := modeDays[mode]; ok {
		q := RollingQuery(run, days)
		q.Name = mode
		return q, nil
	}
	if mode == "recent" {
		if run.Watermark.IsZero() {
			return Query{}, fmt.Errorf("mode recent: watermark not loaded")
		}
		return RecentQuery(run), nil
	}
	if len(mode) == 4 {
		if year, err := strconv.Atoi(mode); err == nil && year >= 2000 && year <= 9999 {
			return YearQuery(year, run.Now.Location()), nil
		}
	}
	return Query{}, fmt.Errorf("unknown mode %q: want week, month, year, all, recent or a year such as 2024", mode)
}
