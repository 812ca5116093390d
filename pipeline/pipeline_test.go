package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rainierlab/crimecensus/pkg/errors"
)

func TestRunnerContinuesAfterFailure(t *testing.T) {
	var order []string
	var runner Runner

	runner.Add(Step{Name: "first", Run: func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	}})
	runner.Add(Step{Name: "second", Run: func(ctx context.Context) error {
		order = append(order, "second")
		return errors.New("boom")
	}})
	runner.Add(Step{Name: "third", Run: func(ctx context.Context) error {
		order = append(order, "third")
		return nil
	}})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 1, result.Failed())
	assert.False(t, result.OK())
	assert.Len(t, result.Steps, 3)
	assert.Error(t, result.Steps[1].Err)
	assert.NoError(t, result.Steps[2].Err)
}

func TestRunnerSkipsWhenOutputsExist(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "done.csv")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	ran := false
	var runner Runner
	runner.Add(Step{
		Name:    "download",
		Outputs: []string{existing},
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})

	result, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, ran)
	assert.True(t, result.Steps[0].Skipped)
	assert.True(t, result.OK())
}

func TestRunnerRunsWhenOutputMissing(t *testing.T) {
	ran := false
	var runner Runner
	runner.Add(Step{
		Name:    "download",
		Outputs: []string{filepath.Join(t.TempDir(), "missing.csv")},
		Run: func(ctx context.Context) error {
			ran = true
			return nil
		},
	})

	_, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunnerCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var runner Runner
	runner.Add(Step{Name: "never", Run: func(ctx context.Context) error {
		t.Fatal("step should not run after cancellation")
		return nil
	}})

	_, err := runner.Run(ctx)
	assert.Error(t, err)
}

func TestLatestCrimeFile(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"crime_data_20240101_000000.csv",
		"crime_data_20250615_120000.csv",
		"crime_data_20230301_090000.csv",
		"census_2020.csv",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}

	latest, err := LatestCrimeFile(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "crime_data_20250615_120000.csv"), latest)
}

func TestLatestCrimeFileEmpty(t *testing.T) {
	_, err := LatestCrimeFile(t.TempDir())
	assert.Error(t, err)
}

func TestInventory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.csv"), []byte("bb"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte("a"), 0o644))

	files := Inventory(dir)
	require.Len(t, files, 2)
	assert.Equal(t, filepath.Join(dir, "a.csv"), files[0].Path)
	assert.Equal(t, int64(1), files[0].SizeBytes)
	assert.Equal(t, int64(2), files[1].SizeBytes)
}

func TestCleanup(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "crime.csv"), []byte("x"), 0o644))

	require.NoError(t, Cleanup(dir))
	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestCleanupRefusesEmptyPath(t *testing.T) {
	assert.Error(t, Cleanup(""))
	assert.Error(t, Cleanup("/"))
}
