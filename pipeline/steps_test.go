package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainierlab/crimecensus/config"
)

func TestStepDownloadCrimeSkipReusesLatest(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()

	older := filepath.Join(cfg.DownloadDir, "crime_data_20240101_000000.csv")
	newer := filepath.Join(cfg.DownloadDir, "crime_data_20250101_000000.csv")
	require.NoError(t, os.WriteFile(older, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("x"), 0o644))

	p := New(cfg, Options{SkipDownloads: true})
	require.NoError(t, p.stepDownloadCrime(context.Background()))
	assert.Equal(t, newer, p.crimePath)
}

func TestStepDownloadCrimeSkipWithoutFiles(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()

	p := New(cfg, Options{SkipDownloads: true})
	assert.Error(t, p.stepDownloadCrime(context.Background()))
}

func TestStepDownloadCensusSkipRequiresCombined(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()

	p := New(cfg, Options{SkipDownloads: true})
	assert.Error(t, p.stepDownloadCensus(context.Background()))

	combined := filepath.Join(cfg.DownloadDir, "census_combined.csv")
	require.NoError(t, os.WriteFile(combined, []byte("GEOID\n"), 0o644))
	require.NoError(t, p.stepDownloadCensus(context.Background()))
	assert.Equal(t, combined, p.censusPath)
}

// With every declared output already on disk, the census, tract and
// join steps are skipped and the run never touches the network.
func TestRunSkipsStepsWithExistingOutputs(t *testing.T) {
	cfg := config.Default()
	cfg.DownloadDir = t.TempDir()
	cfg.OutputDir = t.TempDir()

	crimeCSV := "Report Number,Offense,Latitude,Longitude,Offense Start DateTime\n" +
		"2020-001,THEFT,47.6097,-122.3331,2020-03-15T10:30:00\n"
	crimePath := filepath.Join(cfg.DownloadDir, "crime_data_20240101_000000.csv")
	require.NoError(t, os.WriteFile(crimePath, []byte(crimeCSV), 0o644))

	p := New(cfg, Options{SkipDownloads: true})
	require.NoError(t, os.WriteFile(p.censusPath, []byte("GEOID,census_year\n"), 0o644))
	require.NoError(t, os.WriteFile(p.shapefile, []byte("placeholder"), 0o644))
	require.NoError(t, os.WriteFile(p.joinedPath, []byte("tract_geoid\n"), 0o644))

	result, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, result.OK())

	skipped := make(map[string]bool)
	for _, s := range result.Steps {
		skipped[s.Name] = s.Skipped
	}
	assert.False(t, skipped["download_crime"])
	assert.False(t, skipped["validate_crime"])
	assert.True(t, skipped["download_census"])
	assert.True(t, skipped["fetch_tracts"])
	assert.True(t, skipped["spatial_join"])
}

func TestStepJoinRequiresInputs(t *testing.T) {
	cfg := config.Default()
	p := New(cfg, Options{})
	assert.Error(t, p.stepJoin(context.Background()))
}

func TestJoinedPath(t *testing.T) {
	cfg := config.Default()
	cfg.OutputDir = "/tmp/out"
	p := New(cfg, Options{})
	assert.Equal(t, filepath.Join("/tmp/out", "crime_census_joined.csv"), p.JoinedPath())
}
