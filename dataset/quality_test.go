package dataset

import (
	"math"
	"testing"
)

func qualityFixture() *Table {
	tbl := NewTable([]string{"Report Number", "Offense", "Latitude", "Offense Start DateTime"})
	tbl.Append([]string{"1", "THEFT", "47.61", "2020-03-15T10:30:00"})
	tbl.Append([]string{"2", "THEFT", "", "2020-03-16T11:00:00"})
	tbl.Append([]string{"3", "ASSAULT", "47.62", "03/17/2020"})
	tbl.Append([]string{"3", "ASSAULT", "47.62", "03/17/2020"}) // exact duplicate
	return tbl
}

func TestQualityReport(t *testing.T) {
	report := qualityFixture().Quality()

	if report.Rows != 4 || report.Cols != 4 {
		t.Errorf("shape = (%d, %d), want (4, 4)", report.Rows, report.Cols)
	}
	if report.DuplicateRows != 1 {
		t.Errorf("DuplicateRows = %d, want 1", report.DuplicateRows)
	}

	var latQuality *ColumnQuality
	var offenseQuality *ColumnQuality
	for i := range report.Columns {
		switch report.Columns[i].Name {
		case "Latitude":
			latQuality = &report.Columns[i]
		case "Offense":
			offenseQuality = &report.Columns[i]
		}
	}
	if latQuality == nil || offenseQuality == nil {
		t.Fatal("expected quality entries for Latitude and Offense")
	}

	if latQuality.Missing != 1 {
		t.Errorf("Latitude missing = %d, want 1", latQuality.Missing)
	}
	if math.Abs(latQuality.MissingPct-25) > 1e-9 {
		t.Errorf("Latitude missing pct = %v, want 25", latQuality.MissingPct)
	}

	if !offenseQuality.Categorical {
		t.Error("Offense should be detected as categorical")
	}
	if offenseQuality.Distinct != 2 {
		t.Errorf("Offense distinct = %d, want 2", offenseQuality.Distinct)
	}
	if len(offenseQuality.TopValues) == 0 || offenseQuality.TopValues[0].Value != "ASSAULT" && offenseQuality.TopValues[0].Value != "THEFT" {
		t.Errorf("unexpected top values: %+v", offenseQuality.TopValues)
	}

	if len(report.DateColumns) != 1 || report.DateColumns[0] != "Offense Start DateTime" {
		t.Errorf("DateColumns = %v, want [Offense Start DateTime]", report.DateColumns)
	}
	if len(report.CoordinateColumns) != 1 || report.CoordinateColumns[0] != "Latitude" {
		t.Errorf("CoordinateColumns = %v, want [Latitude]", report.CoordinateColumns)
	}
}

func TestColumnNameHeuristics(t *testing.T) {
	tests := []struct {
		name       string
		isDate     bool
		isCoord    bool
	}{
		{name: "Offense Start DateTime", isDate: true},
		{name: "Report Date", isDate: true},
		{name: "created_at", isDate: true},
		{name: "Latitude", isCoord: true},
		{name: "Longitude", isCoord: true},
		{name: "lat", isCoord: true},
		{name: "Offense", isDate: false, isCoord: false},
	}

	for _, tt := range tests {
		if got := IsDateColumn(tt.name); got != tt.isDate {
			t.Errorf("IsDateColumn(%q) = %v, want %v", tt.name, got, tt.isDate)
		}
		if got := IsCoordinateColumn(tt.name); got != tt.isCoord {
			t.Errorf("IsCoordinateColumn(%q) = %v, want %v", tt.name, got, tt.isCoord)
		}
	}
}

func TestPrepare(t *testing.T) {
	cleaned, result := qualityFixture().Prepare()

	if result.RowsIn != 4 {
		t.Errorf("RowsIn = %d, want 4", result.RowsIn)
	}
	if result.DuplicatesDropped != 1 {
		t.Errorf("DuplicatesDropped = %d, want 1", result.DuplicatesDropped)
	}
	if cleaned.NumRows() != 3 || result.RowsOut != 3 {
		t.Errorf("RowsOut = %d (table %d), want 3", result.RowsOut, cleaned.NumRows())
	}

	// Date column rewritten in the canonical layout.
	if got, _ := cleaned.Get(0, "Offense Start DateTime"); got != "2020-03-15 10:30:00" {
		t.Errorf("canonical date = %q, want 2020-03-15 10:30:00", got)
	}
	if got, _ := cleaned.Get(2, "Offense Start DateTime"); got != "2020-03-17 00:00:00" {
		t.Errorf("us-format date = %q, want 2020-03-17 00:00:00", got)
	}
	if result.DatesCoerced != 3 {
		t.Errorf("DatesCoerced = %d, want 3", result.DatesCoerced)
	}

	// Original table is untouched.
	original := qualityFixture()
	if got, _ := original.Get(0, "Offense Start DateTime"); got != "2020-03-15T10:30:00" {
		t.Errorf("original mutated: %q", got)
	}
}
