// Package config defines the pipeline configuration: data locations,
// Socrata and Census API parameters, and join thresholds. Defaults match
// the Seattle crime / King County setup; a YAML file can override any of
// them.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rainierlab/crimecensus/pkg/errors"
)

// CensusAPIKeyEnv is the environment variable the census client reads
// its API key from.
const CensusAPIKeyEnv = "CENSUS_API_KEY"

// Variable maps an ACS variable code to the column name used in output
// files.
type Variable struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

// Config is the full pipeline configuration.
type Config struct {
	// Data directories.
	DownloadDir string `yaml:"download_dir"`
	OutputDir   string `yaml:"output_dir"`

	// Socrata crime dataset.
	SocrataBaseURL string `yaml:"socrata_base_url"`
	SocrataDataset string `yaml:"socrata_dataset"`

	// ACS census parameters.
	CensusBaseURL string     `yaml:"census_base_url"`
	CensusYears   []int      `yaml:"census_years"`
	StateFIPS     string     `yaml:"state_fips"`
	CountyFIPS    string     `yaml:"county_fips"`
	Variables     []Variable `yaml:"variables"`

	// TIGER/Line tract shapefile.
	TigerYear int    `yaml:"tiger_year"`
	TigerURL  string `yaml:"tiger_url"`

	// Coordinate validity bounds for the study area.
	MinLatitude  float64 `yaml:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude"`
	MinLongitude float64 `yaml:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude"`

	// Join parameters.
	MinCrimeYear      int `yaml:"min_crime_year"`
	DefaultCensusYear int `yaml:"default_census_year"`
}

// Default returns the configuration the original study used: Seattle PD
// report data joined to King County ACS 5-year demographics.
func Default() *Config {
	return &Config{
		DownloadDir: "data/downloads/seattle",
		OutputDir:   "data/joined",

		SocrataBaseURL: "https://data.seattle.gov",
		SocrataDataset: "tazs-3rd5",

		CensusBaseURL: "https://api.census.gov/data",
		CensusYears:   []int{2010, 2015, 2016, 2017, 2018, 2019, 2020, 2021, 2022, 2023},
		StateFIPS:     "53",
		CountyFIPS:    "033",
		Variables: []Variable{
			{Code: "B01003_001E", Name: "TotalPopulation"},
			{Code: "B19013_001E", Name: "MedianHouseholdIncome"},
			{Code: "B25077_001E", Name: "MedianHomeValue"},
			{Code: "B03002_001E", Name: "RaceEthnicityTotal"},
			{Code: "B03002_002E", Name: "NotHispanicTotal"},
			{Code: "B03002_003E", Name: "WhiteAlone"},
			{Code: "B03002_004E", Name: "BlackAlone"},
			{Code: "B03002_005E", Name: "AmericanIndianAlone"},
			{Code: "B03002_006E", Name: "AsianAlone"},
			{Code: "B03002_007E", Name: "PacificIslanderAlone"},
			{Code: "B03002_008E", Name: "OtherRaceAlone"},
			{Code: "B03002_009E", Name: "TwoOrMoreRaces"},
			{Code: "B03002_012E", Name: "HispanicTotal"},
		},

		TigerYear: 2020,
		TigerURL:  "https://www2.census.gov/geo/tiger/TIGER2020/TRACT/tl_2020_53_tract.zip",

		MinLatitude:  47.0,
		MaxLatitude:  48.0,
		MinLongitude: -123.0,
		MaxLongitude: -121.0,

		MinCrimeYear:      2015,
		DefaultCensusYear: 2020,
	}
}

// Load reads a YAML config file over the defaults. Fields absent from
// the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "config: read %s", path)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "config: parse %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks FIPS codes, years and coordinate bounds.
func (c *Config) Validate() error {
	if len(c.StateFIPS) != 2 {
		return errors.NewValidationError("state_fips", "must be a 2-digit FIPS code", c.StateFIPS)
	}
	if len(c.CountyFIPS) != 3 {
		return errors.NewValidationError("county_fips", "must be a 3-digit FIPS code", c.CountyFIPS)
	}
	if len(c.CensusYears) == 0 {
		return errors.NewValidationError("census_years", "at least one year required", "")
	}
	for _, y := range c.CensusYears {
		if y < 2009 || y > 2100 {
			return errors.NewValidationError("census_years", "year outside ACS5 availability", "")
		}
	}
	if c.MinLatitude >= c.MaxLatitude {
		return errors.NewValidationError("latitude bounds", "min must be below max", "")
	}
	if c.MinLongitude >= c.MaxLongitude {
		return errors.NewValidationError("longitude bounds", "min must be below max", "")
	}
	if c.DownloadDir == "" || c.OutputDir == "" {
		return errors.NewValidationError("directories", "download_dir and output_dir required", "")
	}
	return nil
}

// LatestCensusYear returns the newest configured ACS year.
func (c *Config) LatestCensusYear() int {
	latest := c.CensusYears[0]
	for _, y := range c.CensusYears[1:] {
		if y > latest {
			latest = y
		}
	}
	return latest
}

// EarliestCensusYear returns the oldest configured ACS year.
func (c *Config) EarliestCensusYear() int {
	earliest := c.CensusYears[0]
	for _, y := range c.CensusYears[1:] {
		if y < earliest {
			earliest = y
		}
	}
	return earliest
}

// CensusAPIKey reads the API key from the environment.
func CensusAPIKey() (string, error) {
	key := os.Getenv(CensusAPIKeyEnv)
	if key == "" {
		return "", errors.ErrMissingAPIKey
	}
	return key, nil
}
