package dataset

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

const sampleCSV = `Report Number,Offense,Latitude,Longitude,Offense Start DateTime
2020-001,THEFT,47.6097,-122.3331,2020-03-15T10:30:00
2020-002,ASSAULT,47.6205,-122.3493,2020-03-16T22:15:00
2020-003,BURGLARY,,,2020-03-17T08:00:00
`

func writeTempCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp csv: %v", err)
	}
	return path
}

func TestReadCSV(t *testing.T) {
	tbl, err := ReadCSV(writeTempCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	if tbl.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", tbl.NumRows())
	}
	if tbl.NumCols() != 5 {
		t.Errorf("NumCols() = %d, want 5", tbl.NumCols())
	}

	got, ok := tbl.Get(1, "Offense")
	if !ok || got != "ASSAULT" {
		t.Errorf("Get(1, Offense) = %q, %v; want ASSAULT, true", got, ok)
	}

	if _, ok := tbl.Get(0, "NoSuchColumn"); ok {
		t.Error("Get() on unknown column should report false")
	}
}

func TestReadCSVEmptyFile(t *testing.T) {
	_, err := ReadCSVFrom(strings.NewReader(""))
	if err == nil {
		t.Error("ReadCSVFrom() on empty input should return error")
	}
}

func TestTableFloat(t *testing.T) {
	tbl, err := ReadCSV(writeTempCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	lat, err := tbl.Float(0, "Latitude")
	if err != nil {
		t.Fatalf("Float() error = %v", err)
	}
	if math.Abs(lat-47.6097) > 1e-9 {
		t.Errorf("Float(0, Latitude) = %v, want 47.6097", lat)
	}

	// Empty cell parses as NaN without error.
	missing, err := tbl.Float(2, "Latitude")
	if err != nil {
		t.Fatalf("Float() on missing cell error = %v", err)
	}
	if !math.IsNaN(missing) {
		t.Errorf("Float(2, Latitude) = %v, want NaN", missing)
	}

	// Non-numeric cell is an error.
	if _, err := tbl.Float(0, "Offense"); err == nil {
		t.Error("Float() on non-numeric cell should return error")
	}
}

func TestTableTime(t *testing.T) {
	tbl, err := ReadCSV(writeTempCSV(t, sampleCSV))
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}

	ts, err := tbl.Time(0, "Offense Start DateTime")
	if err != nil {
		t.Fatalf("Time() error = %v", err)
	}
	want := time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("Time() = %v, want %v", ts, want)
	}
}

func TestParseTimeLayouts(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Time
	}{
		{name: "iso datetime", value: "2020-03-15T10:30:00", want: time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)},
		{name: "space datetime", value: "2020-03-15 10:30:00", want: time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)},
		{name: "plain date", value: "2020-03-15", want: time.Date(2020, 3, 15, 0, 0, 0, 0, time.UTC)},
		{name: "us datetime", value: "03/15/2020 10:30:00 AM", want: time.Date(2020, 3, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTime(tt.value)
			if err != nil {
				t.Fatalf("ParseTime(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTime(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}

	if _, err := ParseTime("not a date"); err == nil {
		t.Error("ParseTime() on garbage should return error")
	}
}

func TestAddColumn(t *testing.T) {
	tbl := NewTable([]string{"A"})
	tbl.Append([]string{"1"})
	tbl.Append([]string{"2"})

	if err := tbl.AddColumn("B", []string{"x", "y"}); err != nil {
		t.Fatalf("AddColumn() error = %v", err)
	}
	if got, _ := tbl.Get(1, "B"); got != "y" {
		t.Errorf("Get(1, B) = %q, want y", got)
	}

	if err := tbl.AddColumn("A", nil); err == nil {
		t.Error("AddColumn() with duplicate name should return error")
	}
	if err := tbl.AddColumn("C", []string{"only one"}); err == nil {
		t.Error("AddColumn() with wrong value count should return error")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	tbl := NewTable([]string{"GEOID", "TotalPopulation"})
	tbl.Append([]string{"53033000100", "5213"})
	tbl.Append([]string{"53033000200", "4120"})

	path := filepath.Join(t.TempDir(), "out.csv")
	if err := tbl.WriteCSV(path); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	loaded, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV() error = %v", err)
	}
	if loaded.NumRows() != 2 {
		t.Errorf("NumRows() = %d, want 2", loaded.NumRows())
	}
	if got, _ := loaded.Get(0, "GEOID"); got != "53033000100" {
		t.Errorf("Get(0, GEOID) = %q, want 53033000100", got)
	}
}

func TestForEachCSV(t *testing.T) {
	path := writeTempCSV(t, sampleCSV)

	var mu sync.Mutex
	offenses := make(map[string]int)

	err := ForEachCSV(path, func(record map[string]string) {
		mu.Lock()
		offenses[record["Offense"]]++
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("ForEachCSV() error = %v", err)
	}

	if len(offenses) != 3 {
		t.Errorf("distinct offenses = %d, want 3", len(offenses))
	}
	if offenses["THEFT"] != 1 {
		t.Errorf("THEFT count = %d, want 1", offenses["THEFT"])
	}
}
