// Package csvfile writes summaries as CSV files, one per summary name.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"upspend/internal/export"
	"upspend/internal/summary"
)

var (
	_ export.SummaryWriter    = (*Writer)(nil)
	_ export.ComparisonWriter = (*Writer)(nil)
)

type Writer struct {
	dir string
}

func New(dir string) *Writer {
	return &Writer{dir: dir}
}

// Path returns the file a summary name is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, fileName(name)+".csv")
}

func (w *Writer) WriteSummary(ctx context.Context, name string, s summary.Summary) error {
	return w.write(ctx, name, export.SummaryTable(s))
}

func (w *Writer) WriteComparison(ctx context.Context, name string, c summary.Comparison) error {
	return w.write(ctx, name, export.ComparisonTable(c))
}

func (w *Writer) write(ctx context.Context, name string, t export.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errors.New("csv export: empty name")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create csv dir: %w", err)
	}

	path := w.Path(name)
	tmp, err := os.CreateTemp(w.dir, ".export-*.csv")
	if err != nil {
		return fmt.Errorf("create temp csv: %w", err)
	}
	defer os.Remove(tmp.Name())

	cw := csv.NewWriter(tmp)
	if err := cw.WriteAll(t.Strings()); err != nil {
		tmp.Close()
		return fmt.Errorf("write csv %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close csv %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename csv %s: %w", path, err)
	}
	return nil
}

// fileName keeps names like "2024" or "2024-05-01-DAYS=28" readable while
// dropping path separators.
func fileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', ' ':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
}
