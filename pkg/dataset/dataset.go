// Package dataset provides the tabular data layer for rowforge.
//
// A dataset is an ordered header list plus a lazy, finite, non-restartable
// sequence of rows. Each row is an ordered column-to-value mapping; the
// column order is the header order and matters for diff display alignment.
package dataset

import (
	"io"

	"github.com/rowforge/rowforge/pkg/errors"
)

// Row is one tabular record, as an ordered column-to-value mapping.
// Rows are immutable once read.
type Row struct {
	// Number is the 1-based data row number within the dataset
	Number  int
	columns []string
	values  map[string]string
}

// NewRow builds a row from parallel column/value slices. Extra values past
// the column list are dropped; missing values read as empty strings.
func NewRow(number int, columns, values []string) *Row {
	m := make(map[string]string, len(columns))
	for i, col := range columns {
		if i < len(values) {
			m[col] = values[i]
		} else {
			m[col] = ""
		}
	}
	return &Row{Number: number, columns: columns, values: m}
}

// Columns returns the ordered column names. Callers must not mutate the
// returned slice.
func (r *Row) Columns() []string {
	return r.columns
}

// Get returns the raw cell value for a column and whether the column exists
func (r *Row) Get(column string) (string, bool) {
	v, ok := r.values[column]
	return v, ok
}

// Value returns the raw cell value for a column, or "" if absent
func (r *Row) Value(column string) string {
	return r.values[column]
}

// Has reports whether the row carries the given column
func (r *Row) Has(column string) bool {
	_, ok := r.values[column]
	return ok
}

// Values returns the cell values in column order
func (r *Row) Values() []string {
	out := make([]string, len(r.columns))
	for i, col := range r.columns {
		out[i] = r.values[col]
	}
	return out
}

// Reader produces rows from a tabular source. Next returns io.EOF after the
// final row; readers are not restartable.
type Reader interface {
	// Headers returns the ordered header list
	Headers() []string
	// Next returns the next row or io.EOF
	Next() (*Row, error)
	// Close releases the underlying source
	Close() error
}

// Writer writes rows to a tabular destination
type Writer interface {
	// WriteHeader writes the header record; call once, first
	WriteHeader(columns []string) error
	// WriteRow writes one data record
	WriteRow(values []string) error
	// Flush flushes buffered output and reports any write error
	Flush() error
}

// Dataset is an in-memory tabular dataset. The engine uses it for the
// failed-rows side dataset; tests use it as a convenient Reader source.
type Dataset struct {
	headers []string
	rows    [][]string
}

// New creates an in-memory dataset with the given headers
func New(headers ...string) *Dataset {
	return &Dataset{headers: headers}
}

// Headers returns the ordered header list
func (d *Dataset) Headers() []string {
	return d.headers
}

// Append adds one data row
func (d *Dataset) Append(values ...string) {
	d.rows = append(d.rows, values)
}

// Len returns the number of data rows
func (d *Dataset) Len() int {
	return len(d.rows)
}

// Rows returns the underlying data rows
func (d *Dataset) Rows() [][]string {
	return d.rows
}

// Read returns a Reader over the dataset contents
func (d *Dataset) Read() Reader {
	return &memoryReader{ds: d}
}

// WriteTo streams the dataset through a Writer
func (d *Dataset) WriteTo(w Writer) error {
	if err := w.WriteHeader(d.headers); err != nil {
		return errors.Wrap(err, errors.ErrorTypeStore, "failed to write dataset header")
	}
	for _, row := range d.rows {
		if err := w.WriteRow(row); err != nil {
			return errors.Wrap(err, errors.ErrorTypeStore, "failed to write dataset row")
		}
	}
	return w.Flush()
}

type memoryReader struct {
	ds  *Dataset
	pos int
}

func (m *memoryReader) Headers() []string {
	return m.ds.headers
}

func (m *memoryReader) Next() (*Row, error) {
	if m.pos >= len(m.ds.rows) {
		return nil, io.EOF
	}
	m.pos++
	return NewRow(m.pos, m.ds.headers, m.ds.rows[m.pos-1]), nil
}

func (m *memoryReader) Close() error {
	return nil
}
