// snapmetrics analyzes storage-durability simulation snapshot files:
// it parses the snapshot formats, derives loss/expiry/cache time series,
// exports them as CSV or parquet, and answers summary queries over past
// exports.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xtxerr/snapmetrics/internal/batch"
	"github.com/xtxerr/snapmetrics/internal/compare"
	"github.com/xtxerr/snapmetrics/internal/config"
	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
	"github.com/xtxerr/snapmetrics/internal/export"
	exportparquet "github.com/xtxerr/snapmetrics/internal/export/parquet"
	"github.com/xtxerr/snapmetrics/internal/logging"
	"github.com/xtxerr/snapmetrics/internal/query"
	"github.com/xtxerr/snapmetrics/internal/repl"
)

// Version is set at build time via ldflags
var Version = "dev"

func usage() {
	fmt.Fprintf(os.Stderr, `snapmetrics %s — snapshot analysis toolkit

Usage:
  snapmetrics analyze [flags] <file>          analyze one snapshot file
  snapmetrics batch   [flags] <dir>           analyze a folder in parallel
  snapmetrics compare [flags] <file>...       compare 2-4 snapshot files
  snapmetrics query   [flags]                 query exported parquet series
  snapmetrics explore [flags] <file>          interactive explorer

Run 'snapmetrics <command> -h' for command flags.
`, Version)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "analyze":
		err = cmdAnalyze(os.Args[2:])
	case "batch":
		err = cmdBatch(os.Args[2:])
	case "compare":
		err = cmdCompare(os.Args[2:])
	case "query":
		err = cmdQuery(os.Args[2:])
	case "explore":
		err = cmdExplore(os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}

	if err != nil {
		logging.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// commonFlags registers the flags shared by every command and returns the
// config loader.
func commonFlags(fs *flag.FlagSet) (cfgPath *string, verbose *bool, jsonLog *bool) {
	cfgPath = fs.String("config", "", "config file path (YAML)")
	verbose = fs.Bool("v", false, "debug logging")
	jsonLog = fs.Bool("log-json", false, "JSON log output")
	return
}

func loadConfig(path string, verbose, jsonLog bool) (*config.Config, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logging.Init(level, jsonLog)

	if path == "" {
		return config.DefaultConfig(), nil
	}
	return config.Load(path)
}

// applyOverrides maps per-command flags onto the configuration.
func applyOverrides(cfg *config.Config, variant, policy string, rate, refTotal float64, refSource string) {
	if variant != "" {
		cfg.Input.Variant = variant
	}
	if policy != "" {
		cfg.Rescale.Policy = policy
	}
	if rate > 0 {
		cfg.Rescale.AccessesPerDay = rate
	}
	if refTotal > 0 {
		cfg.Reference.Source = "constant"
		cfg.Reference.Value = refTotal
	} else if refSource != "" {
		cfg.Reference.Source = refSource
	}
}

func cmdAnalyze(args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	cfgPath, verbose, jsonLog := commonFlags(fs)
	variant := fs.String("variant", "", "force format variant (pairwise, triplets, copysets, copysets-3, wide)")
	policy := fs.String("policy", "", "rescale policy (fixed-rate, header-relative, max-normalized)")
	rate := fs.Float64("rate", 0, "accesses per day for fixed-rate rescaling")
	refTotal := fs.Float64("reference-total", 0, "constant reference total for percentages")
	refSource := fs.String("reference", "", "reference source (auto, header-tubes)")
	outDir := fs.String("out", "", "output directory (overrides config)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: snapmetrics analyze [flags] <file>")
		os.Exit(2)
	}
	path := fs.Arg(0)

	cfg, err := loadConfig(*cfgPath, *verbose, *jsonLog)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *variant, *policy, *rate, *refTotal, *refSource)
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner := batch.NewRunner(cfg)
	series, err := runner.Analyze(path)
	if err != nil {
		if series == nil || !errors.Is(err, errors.ErrNoReferenceTotal) {
			return err
		}
		logging.ForFile(path).Warn("percentage columns skipped", "reason", err)
	}

	if err := exportSeries(cfg, series); err != nil {
		return err
	}
	printFileReport(cfg, series)
	return nil
}

func cmdBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	cfgPath, verbose, jsonLog := commonFlags(fs)
	variant := fs.String("variant", "", "force format variant")
	policy := fs.String("policy", "", "rescale policy")
	rate := fs.Float64("rate", 0, "accesses per day for fixed-rate rescaling")
	refTotal := fs.Float64("reference-total", 0, "constant reference total")
	refSource := fs.String("reference", "", "reference source (auto, header-tubes)")
	pattern := fs.String("pattern", "", "filename glob (overrides config)")
	workers := fs.Int("workers", 0, "parallel workers (overrides config)")
	outDir := fs.String("out", "", "output directory (overrides config)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: snapmetrics batch [flags] <dir>")
		os.Exit(2)
	}
	dir := fs.Arg(0)

	cfg, err := loadConfig(*cfgPath, *verbose, *jsonLog)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *variant, *policy, *rate, *refTotal, *refSource)
	if *pattern != "" {
		cfg.Batch.Pattern = *pattern
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *outDir != "" {
		cfg.Export.Dir = *outDir
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	paths, err := batch.Discover(dir, cfg.Batch.Pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.Wrapf(errors.ErrNothingToDo, "no files match %s in %s", cfg.Batch.Pattern, dir)
	}

	results := batch.NewRunner(cfg).Run(context.Background(), paths)

	failed := 0
	for i := range results {
		res := &results[i]
		if res.Failed() {
			failed++
			continue
		}
		if err := exportSeries(cfg, res.Series); err != nil {
			logging.ForFile(res.Path).Error("export failed", "error", err)
			failed++
		}
	}

	if failed > 0 {
		return errors.Wrapf(errors.ErrNothingToDo, "%d of %d files failed", failed, len(paths))
	}
	return nil
}

func cmdCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	cfgPath, verbose, jsonLog := commonFlags(fs)
	variant := fs.String("variant", "", "force format variant")
	policy := fs.String("policy", "", "rescale policy")
	rate := fs.Float64("rate", 0, "accesses per day for fixed-rate rescaling")
	refTotal := fs.Float64("reference-total", 0, "constant reference total")
	refSource := fs.String("reference", "", "reference source (auto, header-tubes)")
	fs.Parse(args)

	if fs.NArg() < 2 || fs.NArg() > compare.MaxEntries {
		fmt.Fprintf(os.Stderr, "usage: snapmetrics compare [flags] <file> <file> [file [file]]\n")
		os.Exit(2)
	}

	cfg, err := loadConfig(*cfgPath, *verbose, *jsonLog)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *variant, *policy, *rate, *refTotal, *refSource)
	if err := cfg.Validate(); err != nil {
		return err
	}

	runner := batch.NewRunner(cfg)
	var entries []compare.Entry
	for _, path := range fs.Args() {
		series, err := runner.Analyze(path)
		if err != nil && (series == nil || !errors.Is(err, errors.ErrNoReferenceTotal)) {
			return errors.Wrapf(err, "%s", path)
		}
		entries = append(entries, compare.Entry{
			Label:  batch.ConfigKey(path),
			Series: series,
		})
	}

	comparison, err := compare.Compare(entries)
	if err != nil {
		return err
	}

	fmt.Printf("%-40s", "column")
	for _, label := range comparison.Labels {
		fmt.Printf(" %20s", truncate(label, 20))
	}
	fmt.Printf(" %12s\n", "final spread")
	for _, d := range comparison.Columns {
		fmt.Printf("%-40s", d.Column)
		for _, v := range d.Final {
			fmt.Printf(" %20.4f", v)
		}
		fmt.Printf(" %12.4f\n", d.FinalSpread)
	}
	return nil
}

func cmdQuery(args []string) error {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	cfgPath, verbose, jsonLog := commonFlags(fs)
	dir := fs.String("dir", "", "directory of exported parquet files (default config export dir)")
	column := fs.String("column", derive.ColLostPercent, "derived column for canned queries")
	peak := fs.Bool("max", false, "report per-run peak instead of final value")
	rawSQL := fs.String("sql", "", "raw SQL to execute instead of a canned query")
	fs.Parse(args)

	cfg, err := loadConfig(*cfgPath, *verbose, *jsonLog)
	if err != nil {
		return err
	}
	queryDir := cfg.Export.Dir
	if *dir != "" {
		queryDir = *dir
	}

	svc, err := query.New(cfg, queryDir)
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := context.Background()

	if *rawSQL != "" {
		rows, err := svc.ExecuteSQL(ctx, *rawSQL)
		if err != nil {
			return err
		}
		for _, row := range rows {
			fmt.Println(row)
		}
		return nil
	}

	var results []query.RunValue
	if *peak {
		results, err = svc.MaxValues(ctx, *column)
	} else {
		results, err = svc.FinalValues(ctx, *column)
	}
	if err != nil {
		return err
	}
	for _, rv := range results {
		fmt.Printf("%-60s %14.4f\n", rv.Source, rv.Value)
	}
	return nil
}

func cmdExplore(args []string) error {
	fs := flag.NewFlagSet("explore", flag.ExitOnError)
	cfgPath, verbose, jsonLog := commonFlags(fs)
	variant := fs.String("variant", "", "force format variant")
	policy := fs.String("policy", "", "rescale policy")
	rate := fs.Float64("rate", 0, "accesses per day for fixed-rate rescaling")
	refTotal := fs.Float64("reference-total", 0, "constant reference total")
	refSource := fs.String("reference", "", "reference source (auto, header-tubes)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: snapmetrics explore [flags] <file>")
		os.Exit(2)
	}

	cfg, err := loadConfig(*cfgPath, *verbose, *jsonLog)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *variant, *policy, *rate, *refTotal, *refSource)
	if err := cfg.Validate(); err != nil {
		return err
	}

	series, err := batch.NewRunner(cfg).Analyze(fs.Arg(0))
	if err != nil {
		if series == nil || !errors.Is(err, errors.ErrNoReferenceTotal) {
			return err
		}
		logging.ForFile(fs.Arg(0)).Warn("percentage columns skipped", "reason", err)
	}

	return repl.New(series, cfg.Summary.Accuracy).Run()
}

// exportSeries writes a derived series per the export configuration.
func exportSeries(cfg *config.Config, s *derive.Series) error {
	if err := os.MkdirAll(cfg.Export.Dir, 0755); err != nil {
		return errors.Wrapf(err, "create %s", cfg.Export.Dir)
	}

	stem := strings.TrimSuffix(filepath.Base(s.Source), filepath.Ext(s.Source))

	if cfg.Export.CSV {
		path := filepath.Join(cfg.Export.Dir, stem+"_derived.csv")
		if err := export.WriteCSVFile(path, s); err != nil {
			return err
		}
		logging.ForFile(s.Source).Info("wrote derived csv", "path", path)
	}

	if cfg.Export.Parquet {
		path := filepath.Join(cfg.Export.Dir, stem+"_derived.parquet")
		opts := exportparquet.DefaultOptions()
		opts.Compression = exportparquet.ParseCompressionType(cfg.Export.Compression.Algorithm)
		opts.CompressionLevel = cfg.Export.Compression.Level

		w, err := exportparquet.NewSeriesWriter(path, opts)
		if err != nil {
			return err
		}
		if err := w.WriteSeries(s); err != nil {
			w.Close()
			return err
		}
		if err := w.Close(); err != nil {
			return err
		}
		logging.ForFile(s.Source).Info("wrote derived parquet", "path", path, "rows", w.RowCount())
	}

	return nil
}

// printFileReport prints the per-column summary for one analyzed file.
func printFileReport(cfg *config.Config, s *derive.Series) {
	fmt.Printf("%s: variant=%s snapshots=%d skipped=%d", s.Source, s.Variant, s.Len(), s.Skipped)
	if s.HasPercentages() {
		fmt.Printf(" reference_total=%.0f", s.ReferenceTotal)
	} else {
		fmt.Printf(" reference_total=none")
	}
	if s.OverflowCount > 0 {
		fmt.Printf(" overflow_values=%d", s.OverflowCount)
	}
	fmt.Println()

	if !cfg.Summary.Enabled {
		return
	}
	fmt.Printf("  %-40s %10s %10s %10s %10s\n", "column", "final", "max", "avg", "p99")
	for _, cs := range derive.Summarize(s, cfg.Summary.Accuracy) {
		fmt.Printf("  %-40s %10.4f %10.4f %10.4f %10.4f\n",
			cs.Column, cs.Final, cs.Max, cs.Avg, cs.P99)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
