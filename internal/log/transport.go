package log

import (
	"log/slog"
	"net/http"
	"time"
)

// Transport wraps an http.RoundTripper and logs every outbound request with
// its status and duration. Request URLs are logged without query strings.
func Transport(logger *Logger, next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &loggingTransport{logger: logger, next: next}
}

type loggingTransport struct {
	logger *Logger
	next   http.RoundTripper
}

func (t *loggingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(r)
	elapsed := time.Since(start).Milliseconds()

	u := *r.URL
	u.RawQuery = ""

	if err != nil {
		fields := NewFields().WithHTTPResponse(r.Method, u.String(), 0, elapsed).WithError(err)
		t.logger.WarnContext(r.Context(), "HTTP request failed", fields.ToSlice()...)
		return nil, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	fields := NewFields().WithHTTPResponse(r.Method, u.String(), resp.StatusCode, elapsed)
	t.logger.Logger.Log(r.Context(), level, "HTTP request completed",
		append([]any{FieldComponent, t.logger.component}, fields.ToSlice()...)...)
	return resp, nil
}
