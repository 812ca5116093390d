// Package join performs the spatial join of crime reports to census
// tracts and the demographic merge against ACS data, then exports the
// combined dataset.
package join

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rainierlab/crimecensus/config"
	"github.com/rainierlab/crimecensus/dataset"
	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
	"github.com/rainierlab/crimecensus/spatial"
)

// coordSentinel marks records the source system geocoded to a dummy
// location.
const coordSentinel = -1.0

// Stats summarizes a join run. TotalRows counts every input row;
// the remaining counts cover the exported dataset (rows at or above
// the minimum crime year), so MatchRate is Matched over RowsExported.
type Stats struct {
	TotalRows    int
	ValidCoords  int
	Matched      int
	MatchRate    float64
	TractsHit    int
	RowsExported int
}

// ValidCoordinate reports whether a lat/lon pair is usable: parseable
// (non-NaN), not the -1.0 sentinel, and inside the configured study
// area.
func ValidCoordinate(lat, lon float64, cfg *config.Config) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	if lat == coordSentinel || lon == coordSentinel {
		return false
	}
	return lat > cfg.MinLatitude && lat < cfg.MaxLatitude &&
		lon > cfg.MinLongitude && lon < cfg.MaxLongitude
}

// CensusYearFor maps a crime year onto the nearest available census
// year: at or below the earliest year clamps down, at or above the
// latest clamps up, otherwise the closest configured year wins (earlier
// year on a tie).
func CensusYearFor(crimeYear int, censusYears []int) int {
	best := censusYears[0]
	bestDist := math.MaxInt
	for _, y := range censusYears {
		dist := crimeYear - y
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist || (dist == bestDist && y < best) {
			best = y
			bestDist = dist
		}
	}
	return best
}

// Run joins the crime CSV to tracts and census demographics and writes
// the result to outPath.
func Run(ctx context.Context, crimePath, censusPath, outPath string, index *spatial.Index, cfg *config.Config) (*Stats, error) {
	logger := log.GetLogger().With(log.StepKey, "join")

	crimes, err := dataset.ReadCSV(crimePath)
	if err != nil {
		return nil, err
	}
	crimes, prep := crimes.Prepare()
	logger.Info("crime data loaded",
		log.RowsKey, crimes.NumRows(),
		log.DuplicatesKey, prep.DuplicatesDropped)

	census, err := dataset.ReadCSV(censusPath)
	if err != nil {
		return nil, err
	}
	demo, err := indexDemographics(census)
	if err != nil {
		return nil, err
	}

	latCol, lonCol, dateCol, err := locateColumns(crimes)
	if err != nil {
		return nil, err
	}

	out := dataset.NewTable(outputColumns(crimes, demo))
	stats := &Stats{}
	tractsHit := make(map[string]struct{})

	for i := 0; i < crimes.NumRows(); i++ {
		if i%50000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, errors.Wrap(err, "join: canceled")
			}
		}
		stats.TotalRows++

		crimeYear := crimeYearOf(crimes, i, dateCol, cfg.DefaultCensusYear)
		if crimeYear < cfg.MinCrimeYear {
			continue
		}

		geoid := ""
		lat, latErr := crimes.Float(i, latCol)
		lon, lonErr := crimes.Float(i, lonCol)
		if latErr == nil && lonErr == nil && ValidCoordinate(lat, lon, cfg) {
			stats.ValidCoords++
			if g, ok := index.Locate(lat, lon); ok {
				geoid = g
				stats.Matched++
				tractsHit[g] = struct{}{}
			}
		}

		censusYear := CensusYearFor(crimeYear, cfg.CensusYears)

		row := append([]string(nil), crimes.Rows[i]...)
		row = append(row, geoid, strconv.Itoa(crimeYear), strconv.Itoa(censusYear))

		if geoid != "" {
			if demoRow, ok := demo.lookup[geoid+"|"+strconv.Itoa(censusYear)]; ok {
				row = append(row, demoRow...)
			} else {
				row = append(row, emptyCells(len(demo.columns))...)
			}
		} else {
			row = append(row, emptyCells(len(demo.columns))...)
		}

		out.Append(row)
		stats.RowsExported++
	}

	stats.TractsHit = len(tractsHit)
	if stats.RowsExported > 0 {
		stats.MatchRate = float64(stats.Matched) / float64(stats.RowsExported)
	}

	if err := out.WriteCSV(outPath); err != nil {
		return nil, err
	}

	logger.Info("join completed",
		log.RowsKey, stats.RowsExported,
		log.MatchedKey, stats.Matched,
		log.MatchRateKey, stats.MatchRate,
		log.TractsKey, stats.TractsHit,
		log.PathKey, outPath)

	return stats, nil
}

// demographics is the combined census table keyed for merge lookups.
type demographics struct {
	// columns are the demographic columns appended to each output row.
	columns []string
	// lookup maps "GEOID|census_year" to the demographic cells.
	lookup map[string][]string
}

// mergeSkipColumns are census columns not repeated in the joined output:
// the merge keys and the geography already implied by GEOID.
var mergeSkipColumns = map[string]struct{}{
	"GEOID":       {},
	"state":       {},
	"county":      {},
	"census_year": {},
}

func indexDemographics(census *dataset.Table) (*demographics, error) {
	for _, required := range []string{"GEOID", "census_year"} {
		if !census.HasColumn(required) {
			return nil, errors.NewSchemaError("census", required, "merge key column missing")
		}
	}

	d := &demographics{lookup: make(map[string][]string, census.NumRows())}
	var keep []int
	for j, name := range census.Columns {
		if _, skip := mergeSkipColumns[name]; skip {
			continue
		}
		keep = append(keep, j)
		d.columns = append(d.columns, name)
	}

	for i := 0; i < census.NumRows(); i++ {
		geoid, _ := census.Get(i, "GEOID")
		year, _ := census.Get(i, "census_year")
		cells := make([]string, 0, len(keep))
		for _, j := range keep {
			cells = append(cells, census.Rows[i][j])
		}
		d.lookup[geoid+"|"+year] = cells
	}

	return d, nil
}

func locateColumns(crimes *dataset.Table) (latCol, lonCol, dateCol string, err error) {
	report := crimes.Quality()
	for _, name := range report.CoordinateColumns {
		lower := strings.ToLower(name)
		switch {
		case strings.Contains(lower, "lat") && latCol == "":
			latCol = name
		case lonCol == "":
			lonCol = name
		}
	}
	if len(report.DateColumns) > 0 {
		dateCol = report.DateColumns[0]
	}

	if latCol == "" || lonCol == "" {
		return "", "", "", errors.NewSchemaError("crime", "Latitude/Longitude", "coordinate columns not found")
	}
	return latCol, lonCol, dateCol, nil
}

// crimeYearOf extracts the year of the offense date; rows with a
// missing or unparseable date fall back to the default census year.
func crimeYearOf(crimes *dataset.Table, row int, dateCol string, defaultYear int) int {
	if dateCol == "" {
		return defaultYear
	}
	ts, err := crimes.Time(row, dateCol)
	if err != nil {
		return defaultYear
	}
	return ts.Year()
}

func outputColumns(crimes *dataset.Table, demo *demographics) []string {
	cols := append([]string(nil), crimes.Columns...)
	cols = append(cols, "tract_geoid", "crime_year", "census_year")
	cols = append(cols, demo.columns...)
	return cols
}

func emptyCells(n int) []string {
	return make([]string, n)
}
