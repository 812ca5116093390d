// Package store persists the joined crime/census dataset into a
// single-file SQLite database for downstream querying.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/rainierlab/crimecensus/dataset"
	"github.com/rainierlab/crimecensus/pkg/errors"
	"github.com/rainierlab/crimecensus/pkg/log"
)

// tableName is the destination table for the joined dataset.
const tableName = "joined_crime"

// insertBatchSize bounds how many rows go into one transaction.
const insertBatchSize = 500

// SQLiteSink writes joined records to a SQLite file.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// NewSQLiteSink opens (or creates) the database at path. Use ":memory:"
// for tests.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, "store: open %s", path)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "store: %s", pragma)
		}
	}

	return &SQLiteSink{db: db, path: path}, nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error {
	return errors.Wrap(s.db.Close(), "store: close")
}

// sanitizeColumn turns a CSV header into a SQLite identifier.
func sanitizeColumn(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || (out[0] >= '0' && out[0] <= '9') {
		out = "c_" + out
	}
	return out
}

// ExportTable replaces the joined_crime table with the given dataset.
// Columns come from the table header; crime_year and census_year are
// stored as INTEGER, everything else as TEXT. tract_geoid and
// crime_year are indexed.
func (s *SQLiteSink) ExportTable(ctx context.Context, tbl *dataset.Table) (int, error) {
	if tbl.NumCols() == 0 {
		return 0, errors.ErrEmptyData
	}

	cols := make([]string, tbl.NumCols())
	defs := make([]string, tbl.NumCols())
	for i, name := range tbl.Columns {
		col := sanitizeColumn(name)
		cols[i] = col
		colType := "TEXT"
		if col == "crime_year" || col == "census_year" {
			colType = "INTEGER"
		}
		defs[i] = fmt.Sprintf("%q %s", col, colType)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName)); err != nil {
		return 0, errors.Wrap(err, "store: drop table")
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", tableName, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return 0, errors.Wrap(err, "store: create table")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(cols)), ",")
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(quoted, ", "), placeholders)

	inserted := 0
	for start := 0; start < tbl.NumRows(); start += insertBatchSize {
		end := start + insertBatchSize
		if end > tbl.NumRows() {
			end = tbl.NumRows()
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return inserted, errors.Wrap(err, "store: begin batch")
		}

		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			_ = tx.Rollback()
			return inserted, errors.Wrap(err, "store: prepare insert")
		}

		for i := start; i < end; i++ {
			args := make([]any, len(cols))
			for j := range cols {
				var v any
				if j < len(tbl.Rows[i]) {
					cell := tbl.Rows[i][j]
					if cell == "" {
						v = nil
					} else {
						v = cell
					}
				}
				args[j] = v
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				_ = stmt.Close()
				_ = tx.Rollback()
				return inserted, errors.Wrapf(err, "store: insert row %d", i)
			}
		}

		_ = stmt.Close()
		if err := tx.Commit(); err != nil {
			return inserted, errors.Wrap(err, "store: commit batch")
		}
		inserted = end
	}

	haveCols := make(map[string]struct{}, len(cols))
	for _, c := range cols {
		haveCols[c] = struct{}{}
	}
	for _, col := range []string{"tract_geoid", "crime_year"} {
		if _, ok := haveCols[col]; !ok {
			continue
		}
		idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%q)", tableName, col, tableName, col)
		if _, err := s.db.ExecContext(ctx, idx); err != nil {
			return inserted, errors.Wrap(err, "store: create index")
		}
	}

	log.GetLogger().Info("joined dataset exported to sqlite",
		log.PathKey, s.path,
		log.RowsKey, inserted)

	return inserted, nil
}

// ExportCSV loads a joined CSV and exports it.
func (s *SQLiteSink) ExportCSV(ctx context.Context, csvPath string) (int, error) {
	tbl, err := dataset.ReadCSV(csvPath)
	if err != nil {
		return 0, err
	}
	return s.ExportTable(ctx, tbl)
}

// CountRows returns the number of rows in the joined table.
func (s *SQLiteSink) CountRows(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName)).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "store: count rows")
	}
	return n, nil
}
