// Package dataset provides the tabular core of the pipeline: CSV-backed
// tables with typed accessors, data quality reporting, and preparation
// steps (date coercion, duplicate removal).
package dataset

import (
	"encoding/csv"
	"io"
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rainierlab/crimecensus/pkg/errors"
)

// timeLayouts are tried in order when parsing date cells. Socrata exports
// ISO timestamps; census and hand-edited files tend to use plain dates.
var timeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
	"01/02/2006 03:04:05 PM",
	"01/02/2006",
}

// CanonicalTimeLayout is the layout Prepare normalizes date columns to.
const CanonicalTimeLayout = "2006-01-02 15:04:05"

// Table is an in-memory tabular dataset with named columns and string
// cells. Typed access goes through Float and Time.
type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int
}

// NewTable creates a table with the given header and no rows.
func NewTable(columns []string) *Table {
	t := &Table{Columns: columns}
	t.buildIndex()
	return t
}

func (t *Table) buildIndex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Columns) }

// HasColumn reports whether the table has a column with the given name.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Append adds a row. Short rows are padded with empty cells so every row
// has one cell per column.
func (t *Table) Append(row []string) {
	if len(row) < len(t.Columns) {
		padded := make([]string, len(t.Columns))
		copy(padded, row)
		row = padded
	}
	t.Rows = append(t.Rows, row)
}

// Get returns the raw cell value at (row, column name).
func (t *Table) Get(row int, col string) (string, bool) {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return "", false
	}
	return t.Rows[row][i], true
}

// Set overwrites the cell at (row, column name).
func (t *Table) Set(row int, col, value string) bool {
	i, ok := t.index[col]
	if !ok || row < 0 || row >= len(t.Rows) || i >= len(t.Rows[row]) {
		return false
	}
	t.Rows[row][i] = value
	return true
}

// IsMissing reports whether a cell value counts as missing data.
// Empty cells and the usual NA spellings are missing.
func IsMissing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "na", "nan", "null", "none":
		return true
	}
	return false
}

// Float parses the cell as a float64. Missing cells return NaN with no
// error; malformed cells return an error.
func (t *Table) Float(row int, col string) (float64, error) {
	v, ok := t.Get(row, col)
	if !ok {
		return math.NaN(), errors.Newf("dataset: no cell at row %d column %q", row, col)
	}
	if IsMissing(v) {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return math.NaN(), errors.Wrapf(err, "dataset: row %d column %q", row, col)
	}
	return f, nil
}

// Time parses the cell as a timestamp, trying each known layout.
func (t *Table) Time(row int, col string) (time.Time, error) {
	v, ok := t.Get(row, col)
	if !ok {
		return time.Time{}, errors.Newf("dataset: no cell at row %d column %q", row, col)
	}
	return ParseTime(v)
}

// ParseTime parses a date cell using the layout fallback chain.
func ParseTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if IsMissing(v) {
		return time.Time{}, errors.Newf("dataset: missing date value")
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, v); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, errors.Newf("dataset: unparseable date %q", v)
}

// AddColumn appends a new column. values must either be empty (cells
// default to "") or have one entry per existing row.
func (t *Table) AddColumn(name string, values []string) error {
	if t.HasColumn(name) {
		return errors.Newf("dataset: column %q already exists", name)
	}
	if len(values) != 0 && len(values) != len(t.Rows) {
		return errors.Newf("dataset: column %q has %d values for %d rows", name, len(values), len(t.Rows))
	}
	t.Columns = append(t.Columns, name)
	t.buildIndex()
	for i := range t.Rows {
		cell := ""
		if len(values) > 0 {
			cell = values[i]
		}
		t.Rows[i] = append(t.Rows[i], cell)
	}
	return nil
}

// ReadCSV loads a whole CSV file into a Table. The first record is the
// header and is required.
func ReadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()
	return ReadCSVFrom(f)
}

// ReadCSVFrom loads CSV data from a reader into a Table.
func ReadCSVFrom(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.ErrNoHeader
	}
	if err != nil {
		return nil, errors.Wrap(err, "dataset: read header")
	}

	t := NewTable(header)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "dataset: read row")
		}
		t.Append(rec)
	}
	return t, nil
}

// WriteCSV writes the table to path, header first.
func (t *Table) WriteCSV(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "dataset: create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		return errors.Wrap(err, "dataset: write header")
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "dataset: write row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "dataset: flush")
}

// ForEachCSV streams a CSV file through a pool of workers, calling fn
// once per record with cells keyed by header name. fn runs concurrently
// and must be safe for parallel calls. Reading is sequential (csv.Reader
// is stateful); only the per-record work fans out.
func ForEachCSV(path string, fn func(record map[string]string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return errors.ErrNoHeader
	}
	if err != nil {
		return errors.Wrap(err, "dataset: read header")
	}

	rowsCh := make(chan []string, 4096)

	workers := runtime.NumCPU()
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for cols := range rowsCh {
				rec := make(map[string]string, len(header))
				for j, h := range header {
					if j < len(cols) {
						rec[h] = strings.TrimSpace(cols[j])
					}
				}
				fn(rec)
			}
		}()
	}

	var readErr error
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			readErr = errors.Wrap(err, "dataset: read row")
			break
		}
		rowsCh <- rec
	}
	close(rowsCh)
	wg.Wait()

	return readErr
}
