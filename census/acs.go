// Package census fetches American Community Survey 5-year estimates for
// census tracts and the matching TIGER/Line tract boundaries.
package census

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rainierlab/crimecensus/config"
	"github.com/rainierlab/crimecensus/dataset"
	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// Client queries the Census Bureau ACS 5-year Detailed Tables API.
type Client struct {
	BaseURL string
	APIKey  string

	HTTPClient *http.Client
}

// NewClient creates an ACS client. The API key comes from the
// CENSUS_API_KEY environment variable via config.CensusAPIKey.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 2 * time.Minute},
	}
}

// FetchYear retrieves tract-level estimates for one year and returns a
// table with GEOID, geography columns and friendly variable names.
//
// ACS responses are JSON arrays of string arrays; the first row is the
// header, trailing columns are the geography (state, county, tract).
func (c *Client) FetchYear(ctx context.Context, year int, stateFIPS, countyFIPS string, vars []config.Variable) (*dataset.Table, error) {
	codes := make([]string, len(vars))
	for i, v := range vars {
		codes[i] = v.Code
	}

	q := url.Values{}
	q.Set("get", "NAME,"+strings.Join(codes, ","))
	q.Set("for", "tract:*")
	q.Set("in", fmt.Sprintf("state:%s county:%s", stateFIPS, countyFIPS))
	q.Set("key", c.APIKey)

	endpoint := fmt.Sprintf("%s/%d/acs/acs5?%s", c.BaseURL, year, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "census: build request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.NewDownloadError(endpoint, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewDownloadError(endpoint, resp.StatusCode, nil)
	}

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "census: decode year %d response", year)
	}
	if len(rows) < 2 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "census: year %d", year)
	}

	tbl, err := buildYearTable(rows, vars)
	if err != nil {
		return nil, errors.Wrapf(err, "census: year %d", year)
	}

	log.GetLogger().Info("census year fetched",
		log.YearKey, year,
		log.RowsKey, tbl.NumRows())

	return tbl, nil
}

// buildYearTable renames variable columns, assembles GEOID and
// normalizes sentinel values.
func buildYearTable(rows [][]string, vars []config.Variable) (*dataset.Table, error) {
	header := rows[0]

	rename := make(map[string]string, len(vars))
	for _, v := range vars {
		rename[v.Code] = v.Name
	}

	colIdx := make(map[string]int, len(header))
	for i, h := range header {
		colIdx[h] = i
	}
	for _, geo := range []string{"state", "county", "tract"} {
		if _, ok := colIdx[geo]; !ok {
			return nil, errors.NewSchemaError("acs5", geo, "geography column missing from response")
		}
	}

	outCols := []string{"GEOID", "NAME", "state", "county", "tract"}
	for _, v := range vars {
		outCols = append(outCols, v.Name)
	}
	out := dataset.NewTable(outCols)

	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, errors.NewSchemaError("acs5", "", "row width does not match header")
		}

		state := row[colIdx["state"]]
		county := row[colIdx["county"]]
		tract := row[colIdx["tract"]]

		rec := []string{state + county + tract, cell(row, colIdx, "NAME"), state, county, tract}
		for _, v := range vars {
			rec = append(rec, normalizeValue(cell(row, colIdx, v.Code)))
		}
		out.Append(rec)
	}

	return out, nil
}

func cell(row []string, colIdx map[string]int, name string) string {
	if i, ok := colIdx[name]; ok && i < len(row) {
		return row[i]
	}
	return ""
}

// normalizeValue blanks the Census sentinel codes. The API reports
// suppressed or unavailable estimates as large negative numbers
// (-666666666 and friends); none of our variables can legitimately be
// negative.
func normalizeValue(v string) string {
	if v == "" {
		return ""
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	if f < 0 {
		return ""
	}
	return v
}

// FetchResult reports what FetchAll produced.
type FetchResult struct {
	YearPaths    map[int]string
	CombinedPath string
	Rows         int
}

// FetchAll downloads every configured year, writes one CSV per year and
// a combined CSV with an extra census_year column. Years that fail are
// logged and skipped; at least one year must succeed.
func (c *Client) FetchAll(ctx context.Context, cfg *config.Config) (*FetchResult, error) {
	if err := os.MkdirAll(cfg.DownloadDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "census: create %s", cfg.DownloadDir)
	}

	result := &FetchResult{YearPaths: make(map[int]string, len(cfg.CensusYears))}
	var combined *dataset.Table

	for _, year := range cfg.CensusYears {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "census: fetch canceled")
		}

		tbl, err := c.FetchYear(ctx, year, cfg.StateFIPS, cfg.CountyFIPS, cfg.Variables)
		if err != nil {
			log.GetLogger().Warn("census year failed, skipping",
				log.YearKey, year,
				log.ErrAttrKey, err)
			continue
		}

		path := filepath.Join(cfg.DownloadDir, fmt.Sprintf("census_%d.csv", year))
		if err := tbl.WriteCSV(path); err != nil {
			return nil, err
		}
		result.YearPaths[year] = path

		if combined == nil {
			combined = dataset.NewTable(append(append([]string(nil), tbl.Columns...), "census_year"))
		}
		yearStr := strconv.Itoa(year)
		for _, row := range tbl.Rows {
			combined.Append(append(append([]string(nil), row...), yearStr))
		}
	}

	if combined == nil {
		return nil, errors.Newf("census: no years fetched successfully")
	}

	combinedPath := filepath.Join(cfg.DownloadDir, "census_combined.csv")
	if err := combined.WriteCSV(combinedPath); err != nil {
		return nil, err
	}
	result.CombinedPath = combinedPath
	result.Rows = combined.NumRows()

	log.GetLogger().Info("census data combined",
		log.PathKey, combinedPath,
		log.RowsKey, result.Rows)

	return result, nil
}
