// Package results persists result rows and per-step artifacts.
package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/alexisbeaulieu97/flowcheck/internal/domain/result"
)

// CSVSink keeps a CSV table of one row kind, keyed by the table's leading
// key columns. Writing a row whose key exists replaces it in place, so reruns
// never duplicate. The file is rewritten atomically after each write.
type CSVSink struct {
	path  string
	table result.Table

	mu    sync.Mutex
	order []string
	rows  map[string][]string
}

// OpenCSV opens the table of kind at path, loading any rows a previous run
// left there. A file whose header differs is an error rather than being
// overwritten.
func OpenCSV(path string, kind result.Kind) (*CSVSink, error) {
	table, err := result.TableOf(kind)
	if err != nil {
		return nil, err
	}
	s := &CSVSink{
		path:  path,
		table: table,
		rows:  make(map[string][]string),
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *CSVSink) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open results %s: %w", s.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("read results %s: %w", s.path, err)
	}
	if !slices.Equal(header, s.table.Columns) {
		return fmt.Errorf("results %s has columns %v, want %v", s.path, header, s.table.Columns)
	}
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read results %s: %w", s.path, err)
		}
		s.put(record)
	}
}

func (s *CSVSink) put(values []string) {
	id := strings.Join(values[:s.table.KeyWidth], "\x1f")
	if _, ok := s.rows[id]; !ok {
		s.order = append(s.order, id)
	}
	s.rows[id] = values
}

// Write implements ports.ResultSink.
func (s *CSVSink) Write(ctx context.Context, row result.Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !slices.Equal(row.Columns(), s.table.Columns) {
		return fmt.Errorf("row %s does not fit %s", row.Identity(), filepath.Base(s.path))
	}
	values := row.Values()
	if len(values) != len(s.table.Columns) {
		return fmt.Errorf("row %s has %d values for %d columns", row.Identity(), len(values), len(s.table.Columns))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(values)
	return s.flush()
}

// Len is the number of distinct rows held.
func (s *CSVSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Path is the file the sink writes.
func (s *CSVSink) Path() string {
	return s.path
}

// Close implements ports.ResultSink.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *CSVSink) flush() error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(s.table.Columns); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	for _, id := range s.order {
		if err := w.Write(s.rows[id]); err != nil {
			tmp.Close()
			return fmt.Errorf("write results: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("write results: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	return nil
}
