// crimecensus downloads Seattle Police Department crime reports and
// King County ACS demographics, joins crimes to census tracts, and
// exports the merged dataset.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rainierlab/crimecensus/census"
	"github.com/rainierlab/crimecensus/config"
	"github.com/rainierlab/crimecensus/crime"
	"github.com/rainierlab/crimecensus/join"
	"github.com/rainierlab/crimecensus/pipeline"
	"github.com/rainierlab/crimecensus/pkg/log"
	"github.com/rainierlab/crimecensus/spatial"
)

var (
	configPath string
	logLevel   string

	skipDownloads bool
	cleanup       bool
	sqlitePath    string
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "crimecensus",
	Short: "Join Seattle crime reports to census tract demographics",
	Long: `crimecensus builds a crime/demographics research dataset:

1. Downloads SPD crime report data from the Seattle open data portal.
2. Downloads ACS 5-year tract demographics from the Census Bureau
   (requires the CENSUS_API_KEY environment variable).
3. Downloads TIGER/Line tract boundaries and spatially joins each crime
   to its census tract.
4. Exports the merged dataset as CSV (and optionally SQLite).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		switch logLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid log level %q", logLevel)
		}
		log.SetLogger(log.NewZerologLogger(os.Stderr, log.ToLogLevel(logLevel)))
		return nil
	},
}

// runCmd executes the full pipeline.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full download + join pipeline",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		p := pipeline.New(cfg, pipeline.Options{
			SkipDownloads: skipDownloads,
			Cleanup:       cleanup,
			SQLitePath:    sqlitePath,
		})

		result, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		if !result.OK() {
			return fmt.Errorf("pipeline finished with %d failed step(s)", result.Failed())
		}
		return nil
	},
}

// downloadCmd groups the individual download steps.
var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Run individual download steps",
}

var downloadCrimeCmd = &cobra.Command{
	Use:   "crime",
	Short: "Download the SPD crime dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		client := crime.NewClient(cfg.SocrataBaseURL, cfg.SocrataDataset)
		if _, err := client.FetchMetadata(cmd.Context()); err != nil {
			return err
		}
		path, err := client.Download(cmd.Context(), cfg.DownloadDir)
		if err != nil {
			return err
		}
		_, err = crime.Validate(path, 1000)
		return err
	},
}

var downloadCensusCmd = &cobra.Command{
	Use:   "census",
	Short: "Download ACS demographics and TIGER tract boundaries",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		key, err := config.CensusAPIKey()
		if err != nil {
			return err
		}

		client := census.NewClient(cfg.CensusBaseURL, key)
		if _, err := client.FetchAll(cmd.Context(), cfg); err != nil {
			return err
		}
		_, err = census.FetchTracts(cmd.Context(), cfg.TigerURL, cfg.DownloadDir)
		return err
	},
}

// joinCmd joins already-downloaded data without re-fetching.
var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Spatially join downloaded crime data to census tracts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		crimePath, err := pipeline.LatestCrimeFile(cfg.DownloadDir)
		if err != nil {
			return err
		}

		shpPath, err := census.FetchTracts(cmd.Context(), cfg.TigerURL, cfg.DownloadDir)
		if err != nil {
			return err
		}
		index, err := spatial.LoadTracts(shpPath, cfg.CountyFIPS)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return err
		}

		censusPath := filepath.Join(cfg.DownloadDir, "census_combined.csv")
		outPath := pipeline.New(cfg, pipeline.Options{}).JoinedPath()
		stats, err := join.Run(cmd.Context(), crimePath, censusPath, outPath, index, cfg)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "joined %d rows (%.1f%% matched, %d tracts) -> %s\n",
			stats.RowsExported, stats.MatchRate*100, stats.TractsHit, outPath)
		return nil
	},
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults built in)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug|info|warn|error)")

	runCmd.Flags().BoolVar(&skipDownloads, "skip-downloads", false, "reuse existing downloaded files")
	runCmd.Flags().BoolVar(&cleanup, "cleanup", false, "remove the downloads directory after a successful run")
	runCmd.Flags().StringVar(&sqlitePath, "sqlite", "", "additionally export the joined dataset to this SQLite file")

	downloadCmd.AddCommand(downloadCrimeCmd)
	downloadCmd.AddCommand(downloadCensusCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(joinCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
