package batch

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/xtxerr/snapmetrics/internal/config"
	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
)

// writeSnaps writes a pairwise-format snapshot fixture with a short-form
// parameter preamble and one data row per (time, lost) pair.
func writeSnaps(t *testing.T, path string, rows [][2]float64) {
	t.Helper()

	lines := []string{",1000,3650"}
	for _, row := range rows {
		fields := make([]string, 18)
		for i := range fields {
			fields[i] = "0"
		}
		fields[0] = strconv.FormatFloat(row[0], 'g', -1, 64)
		fields[8] = strconv.FormatFloat(row[1], 'g', -1, 64)
		lines = append(lines, strings.Join(fields, ","))
	}
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func constantRefConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Reference.Source = "constant"
	cfg.Reference.Value = 1000
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config invalid: %v", err)
	}
	return cfg
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps_run.txt")
	writeSnaps(t, path, [][2]float64{{365, 10}, {730, 5}, {1095, 0}})

	series, err := NewRunner(constantRefConfig(t)).Analyze(path)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	if series.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", series.Len())
	}
	if got := series.Final(derive.ColCumulativeLost); got != 15 {
		t.Errorf("final cumulative = %v, want 15", got)
	}
	if got := series.Final(derive.ColLostPercent); got != 1.5 {
		t.Errorf("final percent = %v, want 1.5", got)
	}
}

func TestAnalyzeFilenameRateWins(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps_accessRate_100_run.txt")
	writeSnaps(t, path, [][2]float64{{365, 1}})

	cfg := constantRefConfig(t)
	cfg.Rescale.Policy = "fixed-rate"
	cfg.Rescale.AccessesPerDay = 999999

	series, err := NewRunner(cfg).Analyze(path)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	// 365 accesses at 100/day is 0.01 years; the configured rate would give
	// effectively zero.
	if got := series.TimeYears[0]; got < 0.009 || got > 0.011 {
		t.Errorf("TimeYears[0] = %v, want 0.01 from the filename rate", got)
	}
}

func TestAnalyzeNoReferenceIsPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps_run.txt")
	writeSnaps(t, path, [][2]float64{{365, 10}})

	cfg := config.DefaultConfig() // auto reference; pairwise has no totals

	series, err := NewRunner(cfg).Analyze(path)
	if !errors.Is(err, errors.ErrNoReferenceTotal) {
		t.Fatalf("Analyze() error = %v, want ErrNoReferenceTotal", err)
	}
	if series == nil || !series.Has(derive.ColCumulativeLost) {
		t.Error("partial series missing absolute columns")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "snaps_good.txt")
	writeSnaps(t, good, [][2]float64{{365, 3}, {730, 2}})

	bad := filepath.Join(dir, "snaps_bad.txt")
	if err := os.WriteFile(bad, []byte("1,2,3,4\n"), 0644); err != nil {
		t.Fatalf("write bad fixture: %v", err)
	}

	partial := filepath.Join(dir, "snaps_partial.txt")
	writeSnaps(t, partial, [][2]float64{{365, 1}})

	cfg := constantRefConfig(t)
	results := NewRunner(cfg).Run(context.Background(), []string{good, bad, partial})

	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	// Results come back in input order.
	if results[0].Path != good || results[1].Path != bad || results[2].Path != partial {
		t.Fatalf("result order = %v", []string{results[0].Path, results[1].Path, results[2].Path})
	}

	if results[0].Failed() || results[0].Series == nil {
		t.Errorf("good file failed: %v", results[0].Err)
	}
	if !results[1].Failed() {
		t.Error("unparseable file did not fail")
	}
	if !errors.Is(results[1].Err, errors.ErrFormatUnrecognized) {
		t.Errorf("bad file error = %v, want ErrFormatUnrecognized", results[1].Err)
	}
	if results[2].Failed() {
		t.Errorf("sibling of a failed file also failed: %v", results[2].Err)
	}
}

func TestRunPartialWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snaps_run.txt")
	writeSnaps(t, path, [][2]float64{{365, 1}})

	cfg := config.DefaultConfig() // auto reference fails on pairwise
	results := NewRunner(cfg).Run(context.Background(), []string{path})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.Failed() {
		t.Fatalf("partial result reported as failure: %v", res.Err)
	}
	if res.Warning == nil || !errors.Is(res.Warning, errors.ErrNoReferenceTotal) {
		t.Errorf("Warning = %v, want ErrNoReferenceTotal", res.Warning)
	}
	if res.Series == nil {
		t.Error("partial result carries no series")
	}
}
