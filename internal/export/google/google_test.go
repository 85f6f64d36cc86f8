package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"upspend/internal/summary"
)

type fakeSheets struct {
	mu      sync.Mutex
	titles  []string
	added   []string
	cleared int
	updated []*gsheet.ValueRange
}

func (f *fakeSheets) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		assert.True(t, strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/sheet-id"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet:
			ss := gsheet.Spreadsheet{}
			for _, title := range f.titles {
				ss.Sheets = append(ss.Sheets, &gsheet.Sheet{Properties: &gsheet.SheetProperties{Title: title}})
			}
			assert.NoError(t, json.NewEncoder(w).Encode(ss))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":batchUpdate"):
			var req gsheet.BatchUpdateSpreadsheetRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			for _, rq := range req.Requests {
				if rq.AddSheet != nil {
					f.added = append(f.added, rq.AddSheet.Properties.Title)
					f.titles = append(f.titles, rq.AddSheet.Properties.Title)
				}
			}
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
			f.cleared++
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
		case r.Method == http.MethodPut:
			assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
			var vr gsheet.ValueRange
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&vr))
			f.updated = append(f.updated, &vr)
			_, _ = w.Write([]byte(`{"spreadsheetId":"sheet-id"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestClient(t *testing.T, fake *fakeSheets) *Client {
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), "sheet-id", "Summary", nil,
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return c
}

func TestWriteSummary_CreatesTabAndWritesRows(t *testing.T) {
	fake := &fakeSheets{titles: []string{"Sheet1"}}
	c := newTestClient(t, fake)

	s := summary.Summary{Rows: []summary.Row{
		{Category: "groceries", Total: -500, Count: 1},
		{Category: "income", Total: 2000, Count: 1},
	}}
	require.NoError(t, c.WriteSummary(context.Background(), "2024", s))

	require.Equal(t, []string{"Summary 2024"}, fake.added)
	require.Equal(t, 1, fake.cleared)
	require.Len(t, fake.updated, 1)
	require.Equal(t, [][]any{
		{"CATEGORY", "COUNT", "TOTAL"},
		{"groceries", float64(1), float64(500)},
		{"income", float64(1), float64(2000)},
	}, fake.updated[0].Values)

	// Second write reuses the tab.
	require.NoError(t, c.WriteSummary(context.Background(), "2024", s))
	require.Len(t, fake.added, 1)
	require.Equal(t, 2, fake.cleared)
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), " ", "Summary", nil)
	require.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", "")
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := New(context.Background(), "sheet-id", "Summary", nil)
	require.ErrorContains(t, err, "missing service account credentials")
}

func TestTabName(t *testing.T) {
	require.Equal(t, "Summary week", (&Client{sheetBase: "Summary"}).TabName("week"))
	require.Equal(t, "week", (&Client{}).TabName(" week "))
}

func TestWrite_NilService(t *testing.T) {
	err := (&Client{}).WriteSummary(context.Background(), "2024", summary.Summary{})
	require.ErrorContains(t, err, "not initialized")
}
