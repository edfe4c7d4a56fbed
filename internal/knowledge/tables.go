package knowledge

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nid-27/regnex/internal/processing"
	"github.com/nid-27/regnex/pkg/interfaces"
)

// ErrTableNotFound is returned when a table name does not match a loaded file
var ErrTableNotFound = errors.New("table not found")

// ErrColumnNotFound is returned when a column is not in the header
var ErrColumnNotFound = errors.New("column not found")

// Table is a parsed CSV file. The first row is the header.
type Table struct {
	Name     string     `json:"name"`
	Path     string     `json:"path"`
	Encoding string     `json:"encoding"`
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"-"`
}

// TableInfo is the listing view of a table
type TableInfo struct {
	Name    string   `json:"name"`
	Rows    int      `json:"rows"`
	Columns []string `json:"columns"`
}

// Record is a row keyed by column name
type Record map[string]string

// ParseTable reads CSV text into a table. Rows shorter or longer than the
// header are padded or trimmed.
func ParseTable(name, text string) (*Table, error) {
	r := csv.NewReader(strings.NewReader(text))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: file has no header row", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read header: %w", name, err)
	}

	t := &Table{Name: name}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		t.Columns = append(t.Columns, h)
	}

	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read row %d: %w", name, len(t.Rows)+2, err)
		}
		if isBlankRow(row) {
			continue
		}
		fixed := make([]string, len(t.Columns))
		for i := range fixed {
			if i < len(row) {
				fixed[i] = strings.TrimSpace(row[i])
			}
		}
		t.Rows = append(t.Rows, fixed)
	}
	return t, nil
}

func isBlankRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// ColumnIndex returns the position of a column, matched case-insensitively
func (t *Table) ColumnIndex(column string) (int, error) {
	for i, c := range t.Columns {
		if strings.EqualFold(c, strings.TrimSpace(column)) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q in %s (columns: %s)", ErrColumnNotFound, column, t.Name, strings.Join(t.Columns, ", "))
}

func (t *Table) record(row []string) Record {
	rec := make(Record, len(t.Columns))
	for i, c := range t.Columns {
		rec[c] = row[i]
	}
	return rec
}

// Head returns the first n rows
func (t *Table) Head(n int) []Record {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]Record, 0, n)
	for _, row := range t.Rows[:n] {
		out = append(out, t.record(row))
	}
	return out
}

// Tail returns the last n rows
func (t *Table) Tail(n int) []Record {
	if n <= 0 || n > len(t.Rows) {
		n = len(t.Rows)
	}
	out := make([]Record, 0, n)
	for _, row := range t.Rows[len(t.Rows)-n:] {
		out = append(out, t.record(row))
	}
	return out
}

// Lookup returns up to limit rows whose column equals value, ignoring case.
// When nothing matches exactly, values starting with value are accepted so a
// date like 2005-03-11 finds 2005-03-11 00:00:00. An empty column searches
// every column.
func (t *Table) Lookup(column, value string, limit int) ([]Record, error) {
	cols := make([]int, 0, len(t.Columns))
	if strings.TrimSpace(column) == "" {
		for i := range t.Columns {
			cols = append(cols, i)
		}
	} else {
		idx, err := t.ColumnIndex(column)
		if err != nil {
			return nil, err
		}
		cols = append(cols, idx)
	}

	value = strings.ToLower(strings.TrimSpace(value))
	match := func(prefix bool) []Record {
		var out []Record
		for _, row := range t.Rows {
			for _, i := range cols {
				cell := strings.ToLower(row[i])
				if cell == value || (prefix && strings.HasPrefix(cell, value)) {
					out = append(out, t.record(row))
					break
				}
			}
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return out
	}

	if out := match(false); len(out) > 0 {
		return out, nil
	}
	return match(true), nil
}

// TableStore holds the CSV tables
type TableStore struct {
	logger *zerolog.Logger

	mu     sync.RWMutex
	tables map[string]*Table
	order  []string
}

// NewTableStore creates an empty table store
func NewTableStore(logger *zerolog.Logger) *TableStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &TableStore{
		logger: logger,
		tables: make(map[string]*Table),
	}
}

// Load reads every *.csv file in dir, replacing the current contents
func (s *TableStore) Load(ctx context.Context, dir string) (*interfaces.LoadStats, error) {
	start := time.Now()

	files, err := listFiles(dir, ".csv")
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("dir", dir).Int("files", len(files)).Msg("loading csv tables")

	stats := &interfaces.LoadStats{Found: len(files)}
	tables := make(map[string]*Table)
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		name := filepath.Base(path)
		res := interfaces.FileResult{Name: name, Path: path}

		text, enc, err := processing.ReadTextFile(path)
		if err == nil {
			res.Encoding = enc
			var t *Table
			if t, err = ParseTable(name, text); err == nil {
				t.Path = path
				t.Encoding = enc
				tables[name] = t
				res.Rows = len(t.Rows)
			}
		}

		if err != nil {
			res.Error = err.Error()
			stats.Failed++
			s.logger.Warn().Str("file", name).Err(err).Msg("skipped csv")
		} else {
			stats.Loaded++
			s.logger.Debug().Str("file", name).Int("rows", res.Rows).Msg("loaded csv")
		}
		stats.Files = append(stats.Files, res)
	}

	order := make([]string, 0, len(tables))
	for name := range tables {
		order = append(order, name)
	}
	sort.Strings(order)

	s.mu.Lock()
	s.tables = tables
	s.order = order
	s.mu.Unlock()

	stats.Duration = time.Since(start)
	return stats, nil
}

// Get returns a table by file name, with or without the .csv extension
func (s *TableStore) Get(name string) (*Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	if t, ok := s.tables[name]; ok {
		return t, nil
	}
	for _, n := range s.order {
		if strings.EqualFold(n, name) || strings.EqualFold(strings.TrimSuffix(n, filepath.Ext(n)), name) {
			return s.tables[n], nil
		}
	}
	return nil, fmt.Errorf("%w: %s (available: %s)", ErrTableNotFound, name, strings.Join(s.order, ", "))
}

// List returns the loaded tables ordered by name
func (s *TableStore) List() []TableInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TableInfo, 0, len(s.order))
	for _, name := range s.order {
		t := s.tables[name]
		out = append(out, TableInfo{Name: t.Name, Rows: len(t.Rows), Columns: t.Columns})
	}
	return out
}

// Len returns the number of loaded tables
func (s *TableStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables)
}
