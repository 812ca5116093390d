// Package pipeline orchestrates the download, join and export steps.
// Steps run in order; a failing step is recorded and later steps still
// run, matching how the original batch scripts behaved.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// Step is one named unit of pipeline work.
type Step struct {
	Name string

	// Outputs are files this step produces. When every listed file
	// already exists the step is skipped.
	Outputs []string

	Run func(ctx context.Context) error
}

// StepResult records how one step went.
type StepResult struct {
	Name     string
	Skipped  bool
	Err      error
	Duration time.Duration
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Steps    []StepResult
	Duration time.Duration
}

// Failed returns the number of failed steps.
func (r *Result) Failed() int {
	n := 0
	for _, s := range r.Steps {
		if s.Err != nil {
			n++
		}
	}
	return n
}

// OK reports whether every step succeeded or was skipped.
func (r *Result) OK() bool { return r.Failed() == 0 }

// Runner executes steps in order.
type Runner struct {
	steps []Step
}

// Add appends a step.
func (r *Runner) Add(step Step) {
	r.steps = append(r.steps, step)
}

// Run executes every step. Step failures are recorded in the result,
// not returned; the only error case is context cancellation.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	logger := log.GetLogger()
	result := &Result{}
	start := time.Now()

	for _, step := range r.steps {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "pipeline: canceled")
		}

		stepLogger := logger.With(log.StepKey, step.Name)

		if len(step.Outputs) > 0 && allExist(step.Outputs) {
			stepLogger.Info("step skipped, outputs already exist")
			result.Steps = append(result.Steps, StepResult{Name: step.Name, Skipped: true})
			continue
		}

		stepLogger.Info("step started")
		stepStart := time.Now()
		err := step.Run(ctx)
		elapsed := time.Since(stepStart)

		if err != nil {
			if ctx.Err() != nil {
				return nil, errors.Wrap(ctx.Err(), "pipeline: canceled")
			}
			stepLogger.Error("step failed",
				log.ErrAttrKey, err,
				log.DurationSecondsKey, elapsed.Seconds())
		} else {
			stepLogger.Info("step finished",
				log.DurationSecondsKey, elapsed.Seconds())
		}

		result.Steps = append(result.Steps, StepResult{Name: step.Name, Err: err, Duration: elapsed})
	}

	result.Duration = time.Since(start)
	logger.Info("pipeline finished",
		log.DurationSecondsKey, result.Duration.Seconds(),
		"pipeline.failed_steps", result.Failed())

	return result, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "pipeline: create %s", dir)
	}
	return nil
}

func allExist(paths []string) bool {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			return false
		}
	}
	return true
}

// OutputFile is one entry in the final output inventory.
type OutputFile struct {
	Path      string
	SizeBytes int64
}

// Inventory lists the files under each directory, sorted by path.
func Inventory(dirs ...string) []OutputFile {
	var files []OutputFile
	for _, dir := range dirs {
		_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files = append(files, OutputFile{Path: path, SizeBytes: info.Size()})
			return nil
		})
	}
	sort.Slice(files, func(a, b int) bool { return files[a].Path < files[b].Path })
	return files
}

// Cleanup removes the downloads directory tree.
func Cleanup(downloadDir string) error {
	if downloadDir == "" || downloadDir == "/" {
		return errors.Newf("pipeline: refusing to clean %q", downloadDir)
	}
	if err := os.RemoveAll(downloadDir); err != nil {
		return errors.Wrapf(err, "pipeline: cleanup %s", downloadDir)
	}
	log.GetLogger().Info("downloads cleaned up",
		log.OperationKey, log.OperationCleanup,
		log.PathKey, downloadDir)
	return nil
}
