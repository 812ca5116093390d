package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "tazs-3rd5", cfg.SocrataDataset)
	assert.Equal(t, "53", cfg.StateFIPS)
	assert.Equal(t, "033", cfg.CountyFIPS)
	assert.Equal(t, 2015, cfg.MinCrimeYear)
	assert.Equal(t, 2020, cfg.DefaultCensusYear)
	assert.Len(t, cfg.Variables, 13)
	assert.Equal(t, 2010, cfg.EarliestCensusYear())
	assert.Equal(t, 2023, cfg.LatestCensusYear())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
download_dir: /tmp/dl
census_years: [2019, 2020]
county_fips: "061"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/dl", cfg.DownloadDir)
	assert.Equal(t, []int{2019, 2020}, cfg.CensusYears)
	assert.Equal(t, "061", cfg.CountyFIPS)
	// Untouched fields keep defaults.
	assert.Equal(t, "tazs-3rd5", cfg.SocrataDataset)
	assert.Equal(t, "53", cfg.StateFIPS)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "bad state fips", mutate: func(c *Config) { c.StateFIPS = "5" }},
		{name: "bad county fips", mutate: func(c *Config) { c.CountyFIPS = "33" }},
		{name: "no census years", mutate: func(c *Config) { c.CensusYears = nil }},
		{name: "year before acs5", mutate: func(c *Config) { c.CensusYears = []int{2005} }},
		{name: "inverted latitude bounds", mutate: func(c *Config) { c.MinLatitude, c.MaxLatitude = 48, 47 }},
		{name: "inverted longitude bounds", mutate: func(c *Config) { c.MinLongitude, c.MaxLongitude = -121, -123 }},
		{name: "empty output dir", mutate: func(c *Config) { c.OutputDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCensusAPIKey(t *testing.T) {
	t.Setenv(CensusAPIKeyEnv, "")
	_, err := CensusAPIKey()
	assert.Error(t, err)

	t.Setenv(CensusAPIKeyEnv, "test-key")
	key, err := CensusAPIKey()
	require.NoError(t, err)
	assert.Equal(t, "test-key", key)
}
