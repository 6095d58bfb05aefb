// Package query answers summary questions over exported derived series.
// It points DuckDB at the parquet files the export layer wrote, so cross-run
// questions (final loss per run, worst-case cache occupancy) are one SQL
// statement instead of another ad-hoc comparison script.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/xtxerr/snapmetrics/internal/config"
)

// Service provides query capabilities over exported derived series.
type Service struct {
	mu sync.RWMutex

	config *config.Config
	db     *sql.DB
	dir    string

	stats Stats
}

// Stats holds query statistics.
type Stats struct {
	QueriesExecuted int64
	RowsReturned    int64
	Errors          int64
}

// RunValue is one per-run scalar result.
type RunValue struct {
	Source string
	Value  float64
}

// New creates a new query service over the parquet files under dir.
func New(cfg *config.Config, dir string) (*Service, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	// In-memory DuckDB; the parquet files are the durable state.
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	if cfg.Query.MemoryLimit != "" {
		_, err = db.Exec(fmt.Sprintf("SET memory_limit='%s'", cfg.Query.MemoryLimit))
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("set memory limit: %w", err)
		}
	}

	return &Service{
		config: cfg,
		db:     db,
		dir:    dir,
	}, nil
}

// Close closes the query service.
func (s *Service) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Service) pattern() string {
	return filepath.Join(s.dir, "*.parquet")
}

// FinalValues returns, per source file, the last value of the named derived
// column (the value at the largest row index).
func (s *Service) FinalValues(ctx context.Context, column string) ([]RunValue, error) {
	query := `
		SELECT source, arg_max(value, row_index) AS final
		FROM read_parquet($1)
		WHERE "column" = $2
		GROUP BY source
		ORDER BY source
	`
	return s.runValues(ctx, query, column)
}

// MaxValues returns, per source file, the largest value of the named derived
// column.
func (s *Service) MaxValues(ctx context.Context, column string) ([]RunValue, error) {
	query := `
		SELECT source, max(value) AS peak
		FROM read_parquet($1)
		WHERE "column" = $2
		GROUP BY source
		ORDER BY source
	`
	return s.runValues(ctx, query, column)
}

func (s *Service) runValues(ctx context.Context, query, column string) ([]RunValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query, s.pattern(), column)
	if err != nil {
		s.stats.Errors++
		return nil, fmt.Errorf("query parquet: %w", err)
	}
	defer rows.Close()

	var results []RunValue
	for rows.Next() {
		var rv RunValue
		if err := rows.Scan(&rv.Source, &rv.Value); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		results = append(results, rv)
		if s.config.Query.MaxRows > 0 && len(results) >= s.config.Query.MaxRows {
			break
		}
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))
	return results, rows.Err()
}

// ExecuteSQL executes a raw SQL query using DuckDB. Useful for ad-hoc
// questions the canned queries do not cover; the exported files are
// reachable via read_parquet over Dir().
func (s *Service) ExecuteSQL(ctx context.Context, query string) ([]map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		s.stats.Errors++
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var results []map[string]interface{}

	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{})
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)

		if s.config.Query.MaxRows > 0 && len(results) >= s.config.Query.MaxRows {
			break
		}
	}

	s.stats.QueriesExecuted++
	s.stats.RowsReturned += int64(len(results))

	return results, rows.Err()
}

// Dir returns the export directory this service reads.
func (s *Service) Dir() string {
	return s.dir
}

// Stats returns query statistics.
func (s *Service) ServiceStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Query.Timeout > 0 {
		return context.WithTimeout(ctx, s.config.Query.Timeout)
	}
	return context.WithCancel(ctx)
}
