package pipeline

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rainierlab/crimecensus/census"
	"github.com/rainierlab/crimecensus/config"
	"github.com/rainierlab/crimecensus/crime"
	"github.com/rainierlab/crimecensus/join"
	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
	"github.com/rainierlab/crimecensus/spatial"
	"github.com/rainierlab/crimecensus/store"
)

// validationSampleRows bounds how many rows the post-download check
// parses.
const validationSampleRows = 1000

// Options control a full pipeline run.
type Options struct {
	// SkipDownloads reuses existing downloaded files instead of hitting
	// the Socrata and Census APIs.
	SkipDownloads bool

	// Cleanup removes the downloads directory after a fully successful
	// run.
	Cleanup bool

	// SQLitePath, when set, additionally exports the joined dataset to
	// a SQLite database at this path.
	SQLitePath string
}

// Pipeline is the assembled Seattle crime / census flow.
type Pipeline struct {
	cfg  *config.Config
	opts Options

	// crimePath is resolved when the download step runs (filenames are
	// timestamped); the other paths are fixed up front so steps can
	// declare them as outputs.
	crimePath  string
	censusPath string
	shapefile  string
	joinedPath string
}

// New assembles a pipeline for the given configuration.
func New(cfg *config.Config, opts Options) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		opts:       opts,
		censusPath: filepath.Join(cfg.DownloadDir, "census_combined.csv"),
		shapefile: filepath.Join(cfg.DownloadDir,
			strings.TrimSuffix(filepath.Base(cfg.TigerURL), ".zip")+".shp"),
		joinedPath: filepath.Join(cfg.OutputDir, "crime_census_joined.csv"),
	}
}

// JoinedPath returns where the joined CSV is written.
func (p *Pipeline) JoinedPath() string { return p.joinedPath }

// LatestCrimeFile finds the newest crime_data_*.csv in dir. Download
// filenames embed a sortable timestamp.
func LatestCrimeFile(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "crime_data_*.csv"))
	if err != nil {
		return "", errors.Wrap(err, "pipeline: glob crime files")
	}
	if len(matches) == 0 {
		return "", errors.Newf("pipeline: no crime data files in %s", dir)
	}
	sort.Strings(matches)
	return matches[len(matches)-1], nil
}

// Run executes the full flow and returns the per-step results.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	var runner Runner

	runner.Add(Step{Name: "download_crime", Run: p.stepDownloadCrime})
	runner.Add(Step{Name: "validate_crime", Run: p.stepValidateCrime})
	runner.Add(Step{Name: "download_census", Outputs: []string{p.censusPath}, Run: p.stepDownloadCensus})
	runner.Add(Step{Name: "fetch_tracts", Outputs: []string{p.shapefile}, Run: p.stepFetchTracts})
	runner.Add(Step{Name: "spatial_join", Outputs: []string{p.joinedPath}, Run: p.stepJoin})
	if p.opts.SQLitePath != "" {
		runner.Add(Step{Name: "sqlite_export", Run: p.stepSQLiteExport})
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return nil, err
	}

	if p.opts.Cleanup {
		if result.OK() {
			if err := Cleanup(p.cfg.DownloadDir); err != nil {
				return result, err
			}
		} else {
			log.GetLogger().Warn("skipping cleanup, pipeline had failures")
		}
	}

	for _, f := range Inventory(p.cfg.OutputDir) {
		log.GetLogger().Info("output file",
			log.PathKey, f.Path,
			log.BytesKey, f.SizeBytes)
	}

	return result, nil
}

func (p *Pipeline) stepDownloadCrime(ctx context.Context) error {
	if p.opts.SkipDownloads {
		path, err := LatestCrimeFile(p.cfg.DownloadDir)
		if err != nil {
			return err
		}
		p.crimePath = path
		log.GetLogger().Info("reusing existing crime file", log.PathKey, path)
		return nil
	}

	client := crime.NewClient(p.cfg.SocrataBaseURL, p.cfg.SocrataDataset)
	if _, err := client.FetchMetadata(ctx); err != nil {
		// Metadata is informational; the download itself decides.
		log.GetLogger().Warn("metadata fetch failed", log.ErrAttrKey, err)
	}

	path, err := client.Download(ctx, p.cfg.DownloadDir)
	if err != nil {
		return err
	}
	p.crimePath = path
	return nil
}

func (p *Pipeline) stepValidateCrime(ctx context.Context) error {
	if p.crimePath == "" {
		return errors.Newf("pipeline: no crime file to validate")
	}
	if _, err := crime.Validate(p.crimePath, validationSampleRows); err != nil {
		return err
	}
	_, err := crime.Summarize(p.crimePath, validationSampleRows)
	return err
}

func (p *Pipeline) stepDownloadCensus(ctx context.Context) error {
	if p.opts.SkipDownloads {
		if !allExist([]string{p.censusPath}) {
			return errors.Newf("pipeline: %s missing; run without --skip-downloads first", p.censusPath)
		}
		return nil
	}

	key, err := config.CensusAPIKey()
	if err != nil {
		return err
	}

	client := census.NewClient(p.cfg.CensusBaseURL, key)
	result, err := client.FetchAll(ctx, p.cfg)
	if err != nil {
		return err
	}
	p.censusPath = result.CombinedPath
	return nil
}

func (p *Pipeline) stepFetchTracts(ctx context.Context) error {
	shp, err := census.FetchTracts(ctx, p.cfg.TigerURL, p.cfg.DownloadDir)
	if err != nil {
		return err
	}
	p.shapefile = shp
	return nil
}

func (p *Pipeline) stepJoin(ctx context.Context) error {
	if p.crimePath == "" || p.censusPath == "" || p.shapefile == "" {
		return errors.Newf("pipeline: join inputs missing (crime=%q census=%q tracts=%q)",
			p.crimePath, p.censusPath, p.shapefile)
	}

	index, err := spatial.LoadTracts(p.shapefile, p.cfg.CountyFIPS)
	if err != nil {
		return err
	}

	if err := ensureDir(p.cfg.OutputDir); err != nil {
		return err
	}

	_, err = join.Run(ctx, p.crimePath, p.censusPath, p.joinedPath, index, p.cfg)
	return err
}

func (p *Pipeline) stepSQLiteExport(ctx context.Context) error {
	sink, err := store.NewSQLiteSink(p.opts.SQLitePath)
	if err != nil {
		return err
	}
	defer sink.Close()

	_, err = sink.ExportCSV(ctx, p.joinedPath)
	return err
}
