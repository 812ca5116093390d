package census

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainierlab/crimecensus/config"
	"github.com/rainierlab/crimecensus/dataset"
)

var testVars = []config.Variable{
	{Code: "B01003_001E", Name: "TotalPopulation"},
	{Code: "B19013_001E", Name: "MedianHouseholdIncome"},
}

// acsResponse mimics the array-of-arrays JSON the ACS API returns.
// Tract 000200's income carries the -666666666 suppression sentinel.
const acsResponse = `[
	["NAME","B01003_001E","B19013_001E","state","county","tract"],
	["Census Tract 1, King County, Washington","5213","85000","53","033","000100"],
	["Census Tract 2, King County, Washington","4120","-666666666","53","033","000200"]
]`

func newACSStub(t *testing.T, failYears map[int]bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for _, year := range []int{2019, 2020} {
		year := year
		mux.HandleFunc(fmt.Sprintf("/%d/acs/acs5", year), func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "tract:*", r.URL.Query().Get("for"))
			assert.Equal(t, "state:53 county:033", r.URL.Query().Get("in"))
			assert.Equal(t, "test-key", r.URL.Query().Get("key"))
			if failYears[year] {
				http.Error(w, "no data", http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(acsResponse))
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchYear(t *testing.T) {
	srv := newACSStub(t, nil)
	client := NewClient(srv.URL, "test-key")

	tbl, err := client.FetchYear(context.Background(), 2020, "53", "033", testVars)
	require.NoError(t, err)

	assert.Equal(t, 2, tbl.NumRows())
	assert.Equal(t, []string{"GEOID", "NAME", "state", "county", "tract", "TotalPopulation", "MedianHouseholdIncome"}, tbl.Columns)

	geoid, _ := tbl.Get(0, "GEOID")
	assert.Equal(t, "53033000100", geoid)

	pop, _ := tbl.Get(0, "TotalPopulation")
	assert.Equal(t, "5213", pop)

	// Sentinel income normalized to missing.
	income, _ := tbl.Get(1, "MedianHouseholdIncome")
	assert.Empty(t, income)
	assert.True(t, dataset.IsMissing(income))
}

func TestFetchYearHTTPError(t *testing.T) {
	srv := newACSStub(t, map[int]bool{2020: true})
	client := NewClient(srv.URL, "test-key")

	_, err := client.FetchYear(context.Background(), 2020, "53", "033", testVars)
	assert.Error(t, err)
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "5213", want: "5213"},
		{in: "0", want: "0"},
		{in: "-666666666", want: ""},
		{in: "-1", want: ""},
		{in: "", want: ""},
		{in: "Census Tract 1", want: "Census Tract 1"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeValue(tt.in), "normalizeValue(%q)", tt.in)
	}
}

func TestFetchAll(t *testing.T) {
	srv := newACSStub(t, nil)
	client := NewClient(srv.URL, "test-key")

	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()
	cfg.CensusYears = []int{2019, 2020}
	cfg.Variables = testVars

	result, err := client.FetchAll(context.Background(), cfg)
	require.NoError(t, err)

	assert.Len(t, result.YearPaths, 2)
	assert.Equal(t, 4, result.Rows)

	combined, err := dataset.ReadCSV(result.CombinedPath)
	require.NoError(t, err)
	assert.True(t, combined.HasColumn("census_year"))

	year, _ := combined.Get(0, "census_year")
	assert.Equal(t, "2019", year)
	year, _ = combined.Get(2, "census_year")
	assert.Equal(t, "2020", year)
}

func TestFetchAllSkipsFailedYears(t *testing.T) {
	srv := newACSStub(t, map[int]bool{2019: true})
	client := NewClient(srv.URL, "test-key")

	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()
	cfg.CensusYears = []int{2019, 2020}
	cfg.Variables = testVars

	result, err := client.FetchAll(context.Background(), cfg)
	require.NoError(t, err)

	assert.Len(t, result.YearPaths, 1)
	assert.Contains(t, result.YearPaths, 2020)
	assert.Equal(t, 2, result.Rows)
}

func TestFetchAllAllYearsFail(t *testing.T) {
	srv := newACSStub(t, map[int]bool{2019: true, 2020: true})
	client := NewClient(srv.URL, "test-key")

	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()
	cfg.CensusYears = []int{2019, 2020}
	cfg.Variables = testVars

	_, err := client.FetchAll(context.Background(), cfg)
	assert.Error(t, err)
}
