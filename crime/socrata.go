// Package crime downloads the Seattle Police Department report dataset
// from the city's Socrata open data portal and runs basic validation
// and profiling over the downloaded file.
package crime

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// progressInterval is how many bytes pass between download progress
// log lines.
const progressInterval = 10 * 1024 * 1024

// Metadata describes a Socrata dataset, from /api/views/<id>.json.
type Metadata struct {
	ID          string
	Name        string
	Category    string
	RowsUpdated time.Time
	Columns     []string
}

// Client talks to a Socrata instance.
type Client struct {
	BaseURL string
	Dataset string

	// HTTPClient defaults to a client with a generous timeout; tests
	// substitute their own.
	HTTPClient *http.Client
}

// NewClient creates a Socrata client for one dataset.
func NewClient(baseURL, dataset string) *Client {
	return &Client{
		BaseURL:    baseURL,
		Dataset:    dataset,
		HTTPClient: &http.Client{Timeout: 10 * time.Minute},
	}
}

// socrataView is the subset of the Socrata view document we care about.
type socrataView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	RowsUpdatedAt int64  `json:"rowsUpdatedAt"`
	Columns       []struct {
		Name string `json:"name"`
	} `json:"columns"`
}

// FetchMetadata retrieves the dataset's view document.
func (c *Client) FetchMetadata(ctx context.Context) (*Metadata, error) {
	url := fmt.Sprintf("%s/api/views/%s.json", c.BaseURL, c.Dataset)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "crime: build metadata request")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.NewDownloadError(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewDownloadError(url, resp.StatusCode, nil)
	}

	var view socrataView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		return nil, errors.Wrap(err, "crime: decode metadata")
	}

	meta := &Metadata{
		ID:       view.ID,
		Name:     view.Name,
		Category: view.Category,
	}
	if view.RowsUpdatedAt > 0 {
		meta.RowsUpdated = time.Unix(view.RowsUpdatedAt, 0).UTC()
	}
	for _, col := range view.Columns {
		meta.Columns = append(meta.Columns, col.Name)
	}

	log.GetLogger().Info("dataset metadata fetched",
		log.URLKey, url,
		"dataset.name", meta.Name,
		log.ColumnsKey, len(meta.Columns))

	return meta, nil
}

// Download streams the full dataset as CSV into destDir under a
// timestamped filename and returns the path.
func (c *Client) Download(ctx context.Context, destDir string) (string, error) {
	url := fmt.Sprintf("%s/api/views/%s/rows.csv?accessType=DOWNLOAD", c.BaseURL, c.Dataset)

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "crime: create %s", destDir)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "crime: build download request")
	}

	logger := log.GetLogger().With(log.OperationKey, log.OperationDownload, log.URLKey, url)
	logger.Info("crime data download started")
	start := time.Now()

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", errors.NewDownloadError(url, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewDownloadError(url, resp.StatusCode, nil)
	}

	path := filepath.Join(destDir, fmt.Sprintf("crime_data_%s.csv", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrapf(err, "crime: create %s", path)
	}
	defer f.Close()

	var written int64
	var nextReport int64 = progressInterval
	buf := make([]byte, 256*1024)
	for {
		if err := ctx.Err(); err != nil {
			os.Remove(path)
			return "", errors.Wrap(err, "crime: download canceled")
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return "", errors.Wrapf(err, "crime: write %s", path)
			}
			written += int64(n)
			if written >= nextReport {
				logger.Info("download progress", log.BytesKey, written)
				nextReport += progressInterval
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", errors.NewDownloadError(url, resp.StatusCode, readErr)
		}
	}

	logger.Info("crime data download finished",
		log.PathKey, path,
		log.BytesKey, written,
		log.DurationSecondsKey, time.Since(start).Seconds())

	return path, nil
}

// Validation is the result of a post-download sanity check.
type Validation struct {
	Path        string
	SizeBytes   int64
	Columns     []string
	SampledRows int
}

// Validate checks the downloaded file: it must exist, be non-empty and
// have a parseable header, and a bounded sample of rows must parse.
func Validate(path string, sampleRows int) (*Validation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "crime: stat %s", path)
	}
	if info.Size() == 0 {
		return nil, errors.Newf("crime: downloaded file %s is empty", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "crime: open %s", path)
	}
	defer f.Close()

	cr := csv.NewReader(f)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, errors.ErrNoHeader
	}

	v := &Validation{
		Path:      path,
		SizeBytes: info.Size(),
		Columns:   header,
	}

	for v.SampledRows < sampleRows {
		_, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.NewSchemaError(path, "", fmt.Sprintf("row %d failed to parse: %v", v.SampledRows+2, err))
		}
		v.SampledRows++
	}

	log.GetLogger().Info("crime file validated",
		log.PathKey, path,
		log.BytesKey, v.SizeBytes,
		log.ColumnsKey, len(v.Columns),
		log.RowsKey, v.SampledRows)

	return v, nil
}
