// Package dataset reads, reshapes and writes the CSV datasets behind model
// training: the event dataset and its cleaned form, the per-student export,
// and the student feature table.
package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/kasakmasrani/CampusSync-AI/internal/ml/artifact"
)

var (
	ErrMissingColumn = errors.New("dataset: missing column")
	ErrEmpty         = errors.New("dataset: no rows")
)

// Table is an in-memory CSV: a header and string rows padded to its width.
type Table struct {
	Header []string
	Rows   [][]string
	index  map[string]int
}

// NewTable creates an empty table with the given header.
func NewTable(header ...string) *Table {
	t := &Table{Header: append([]string(nil), header...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Header))
	for i, h := range t.Header {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

// Index returns the position of column name, or -1.
func (t *Table) Index(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Has reports whether column name exists.
func (t *Table) Has(name string) bool { return t.Index(name) >= 0 }

// Value returns row's cell for column name, or "" when the column is absent.
func (t *Table) Value(row []string, name string) string {
	i := t.Index(name)
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// Require fails with ErrMissingColumn unless every name is present.
func (t *Table) Require(names ...string) error {
	for _, n := range names {
		if !t.Has(n) {
			return fmt.Errorf("%w: %s", ErrMissingColumn, n)
		}
	}
	return nil
}

// AppendRecord adds a row given as column -> value. Unknown columns are ignored.
func (t *Table) AppendRecord(rec map[string]string) {
	row := make([]string, len(t.Header))
	for k, v := range rec {
		if i := t.Index(k); i >= 0 {
			row[i] = v
		}
	}
	t.Rows = append(t.Rows, row)
}

// Concat stacks b under a. The header is a's columns followed by b's new ones;
// cells a table lacks stay empty.
func Concat(a, b *Table) *Table {
	out := NewTable(a.Header...)
	for _, h := range b.Header {
		if !out.Has(h) {
			out.Header = append(out.Header, h)
		}
	}
	out.reindex()
	for _, src := range []*Table{a, b} {
		for _, row := range src.Rows {
			rec := make(map[string]string, len(src.Header))
			for i, h := range src.Header {
				if i < len(row) {
					rec[h] = row[i]
				}
			}
			out.AppendRecord(rec)
		}
	}
	return out
}

// ReadCSV loads a headed CSV file.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	t, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: read %s: %w", path, err)
	}
	return t, nil
}

// Decode parses a headed CSV stream.
func Decode(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return NewTable(), nil
	}
	t := NewTable(records[0]...)
	for _, rec := range records[1:] {
		row := make([]string, len(t.Header))
		copy(row, rec)
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// Encode renders the table as CSV.
func (t *Table) Encode() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteCSV atomically replaces path with the table.
func (t *Table) WriteCSV(path string) error {
	data, err := t.Encode()
	if err != nil {
		return fmt.Errorf("dataset: encode %s: %w", path, err)
	}
	return artifact.WriteFileAtomic(path, data)
}
