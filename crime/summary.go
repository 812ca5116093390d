package crime

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rainierlab/crimecensus/dataset"
	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// offenseColumn is the SPD report column holding the offense
// description.
const offenseColumn = "Offense"

// Summary profiles a downloaded crime file over a bounded sample.
type Summary struct {
	Rows int

	// NullCounts is missing cells per column over the sample.
	NullCounts map[string]int

	// Offense date range across the sampled rows, taken over the
	// offense date columns.
	EarliestOffense time.Time
	LatestOffense   time.Time

	// TopOffenses are the most frequent offense descriptions.
	TopOffenses []dataset.ValueCount
}

// Summarize streams up to sampleRows data rows from the crime CSV
// through the dataset worker pool and profiles them. sampleRows <= 0
// means the whole file.
func Summarize(path string, sampleRows int) (*Summary, error) {
	s := &Summary{NullCounts: make(map[string]int)}
	offenseCounts := make(map[string]int)

	var mu sync.Mutex
	err := dataset.ForEachCSV(path, func(rec map[string]string) {
		// Date parsing stays outside the lock.
		var stamps []time.Time
		for col, v := range rec {
			if !dataset.IsDateColumn(col) || !strings.Contains(strings.ToLower(col), "offense") {
				continue
			}
			if ts, perr := dataset.ParseTime(v); perr == nil {
				stamps = append(stamps, ts)
			}
		}

		mu.Lock()
		defer mu.Unlock()

		if sampleRows > 0 && s.Rows >= sampleRows {
			return
		}
		s.Rows++

		for col, v := range rec {
			if dataset.IsMissing(v) {
				s.NullCounts[col]++
			}
		}

		for _, ts := range stamps {
			if s.EarliestOffense.IsZero() || ts.Before(s.EarliestOffense) {
				s.EarliestOffense = ts
			}
			if ts.After(s.LatestOffense) {
				s.LatestOffense = ts
			}
		}

		if v, ok := rec[offenseColumn]; ok && !dataset.IsMissing(v) {
			offenseCounts[v]++
		}
	})
	if err != nil {
		return nil, err
	}
	if s.Rows == 0 {
		return nil, errors.ErrEmptyData
	}

	for v, n := range offenseCounts {
		s.TopOffenses = append(s.TopOffenses, dataset.ValueCount{Value: v, Count: n})
	}
	sort.Slice(s.TopOffenses, func(a, b int) bool {
		if s.TopOffenses[a].Count != s.TopOffenses[b].Count {
			return s.TopOffenses[a].Count > s.TopOffenses[b].Count
		}
		return s.TopOffenses[a].Value < s.TopOffenses[b].Value
	})
	if len(s.TopOffenses) > 10 {
		s.TopOffenses = s.TopOffenses[:10]
	}

	log.GetLogger().Info("crime file summarized",
		log.PathKey, path,
		log.RowsKey, s.Rows)

	return s, nil
}
