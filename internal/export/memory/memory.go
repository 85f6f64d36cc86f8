// Package memory keeps exported tables in memory, for tests and dry runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"upspend/internal/export"
	"upspend/internal/summary"
)

var (
	_ export.SummaryWriter    = (*Store)(nil)
	_ export.ComparisonWriter = (*Store)(nil)
)

type Store struct {
	mu     sync.Mutex
	tables map[string]export.Table
}

func New() *Store {
	return &Store{tables: make(map[string]export.Table)}
}

func (s *Store) WriteSummary(_ context.Context, name string, sum summary.Summary) error {
	s.put(name, export.SummaryTable(sum))
	return nil
}

func (s *Store) WriteComparison(_ context.Context, name string, c summary.Comparison) error {
	s.put(name, export.ComparisonTable(c))
	return nil
}

func (s *Store) put(name string, t export.Table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables[name] = t
}

// Table returns the last table written under name.
func (s *Store) Table(name string) (export.Table, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	return t, ok
}

// Names returns the written names, sorted.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tables))
	for n := range s.tables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
