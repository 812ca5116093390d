package dataset

import (
	"sort"
	"strings"
)

// topValueCount caps how many frequent values a column profile keeps.
const topValueCount = 5

// categoricalCardinalityMax is the distinct-value ceiling above which a
// column is treated as free text rather than categorical.
const categoricalCardinalityMax = 50

// ValueCount is a value and how often it occurs in a column.
type ValueCount struct {
	Value string
	Count int
}

// ColumnQuality profiles a single column.
type ColumnQuality struct {
	Name       string
	Missing    int
	MissingPct float64
	Distinct   int

	// Categorical is set when the column's cardinality is low enough to
	// be useful as a grouping key; TopValues is populated only then.
	Categorical bool
	TopValues   []ValueCount
}

// QualityReport summarizes the shape and health of a table.
type QualityReport struct {
	Rows          int
	Cols          int
	DuplicateRows int

	Columns []ColumnQuality

	// Column-name heuristics, used by Prepare and the join step.
	DateColumns       []string
	CoordinateColumns []string
}

// IsDateColumn reports whether a column name looks like a timestamp
// column.
func IsDateColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "_at") ||
		strings.HasSuffix(lower, "time") || strings.HasSuffix(lower, "datetime")
}

// IsCoordinateColumn reports whether a column name looks like a
// latitude or longitude column.
func IsCoordinateColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "latitude") || strings.Contains(lower, "longitude") ||
		lower == "lat" || lower == "lon" || lower == "lng"
}

// Quality profiles the table: shape, duplicate rows, per-column missing
// counts, categorical cardinality with top values, and date/coordinate
// column detection.
func (t *Table) Quality() *QualityReport {
	report := &QualityReport{
		Rows: t.NumRows(),
		Cols: t.NumCols(),
	}

	seen := make(map[string]int, t.NumRows())
	for _, row := range t.Rows {
		key := strings.Join(row, "\x1f")
		seen[key]++
	}
	for _, n := range seen {
		if n > 1 {
			report.DuplicateRows += n - 1
		}
	}

	for j, name := range t.Columns {
		cq := ColumnQuality{Name: name}
		counts := make(map[string]int)

		for _, row := range t.Rows {
			v := ""
			if j < len(row) {
				v = row[j]
			}
			if IsMissing(v) {
				cq.Missing++
				continue
			}
			counts[v]++
		}

		cq.Distinct = len(counts)
		if t.NumRows() > 0 {
			cq.MissingPct = 100 * float64(cq.Missing) / float64(t.NumRows())
		}

		if cq.Distinct > 0 && cq.Distinct <= categoricalCardinalityMax {
			cq.Categorical = true
			values := make([]ValueCount, 0, len(counts))
			for v, n := range counts {
				values = append(values, ValueCount{Value: v, Count: n})
			}
			sort.Slice(values, func(a, b int) bool {
				if values[a].Count != values[b].Count {
					return values[a].Count > values[b].Count
				}
				return values[a].Value < values[b].Value
			})
			if len(values) > topValueCount {
				values = values[:topValueCount]
			}
			cq.TopValues = values
		}

		report.Columns = append(report.Columns, cq)

		if IsDateColumn(name) {
			report.DateColumns = append(report.DateColumns, name)
		}
		if IsCoordinateColumn(name) {
			report.CoordinateColumns = append(report.CoordinateColumns, name)
		}
	}

	return report
}

// PrepareResult records what Prepare changed.
type PrepareResult struct {
	RowsIn            int
	RowsOut           int
	DuplicatesDropped int
	DatesCoerced      int
	DatesUnparseable  int
}

// Prepare returns a cleaned copy of the table: exact duplicate rows are
// dropped and detected date columns are rewritten in the canonical
// layout. Cells that fail to parse as dates are left unchanged.
func (t *Table) Prepare() (*Table, PrepareResult) {
	result := PrepareResult{RowsIn: t.NumRows()}

	var dateCols []int
	for j, name := range t.Columns {
		if IsDateColumn(name) {
			dateCols = append(dateCols, j)
		}
	}

	out := NewTable(append([]string(nil), t.Columns...))
	seen := make(map[string]struct{}, t.NumRows())

	for _, row := range t.Rows {
		key := strings.Join(row, "\x1f")
		if _, dup := seen[key]; dup {
			result.DuplicatesDropped++
			continue
		}
		seen[key] = struct{}{}

		copied := make([]string, len(row))
		copy(copied, row)
		for _, j := range dateCols {
			if j >= len(copied) || IsMissing(copied[j]) {
				continue
			}
			ts, err := ParseTime(copied[j])
			if err != nil {
				result.DatesUnparseable++
				continue
			}
			copied[j] = ts.Format(CanonicalTimeLayout)
			result.DatesCoerced++
		}
		out.Append(copied)
	}

	result.RowsOut = out.NumRows()
	return out, result
}
