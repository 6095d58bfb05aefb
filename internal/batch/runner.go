// Package batch analyzes many snapshot files in parallel. Each file's parse
// and derivation is independent and side-effect-free, so a bounded worker
// pool runs them concurrently; a failure in one file never aborts its
// siblings.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/xtxerr/snapmetrics/internal/config"
	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
	"github.com/xtxerr/snapmetrics/internal/logging"
	"github.com/xtxerr/snapmetrics/internal/snapshot"
)

// Result is the outcome of analyzing one file.
type Result struct {
	Path   string
	Series *derive.Series

	// Err is set when the file could not be analyzed at all (unreadable,
	// unrecognized format, no records).
	Err error

	// Warning is set when the analysis succeeded partially: percentage
	// output was wanted but no reference total existed. Series then carries
	// the absolute columns only.
	Warning error
}

// Failed reports whether the file produced no series at all.
func (r *Result) Failed() bool {
	return r.Err != nil
}

// Runner analyzes files under one configuration.
type Runner struct {
	cfg *config.Config
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg *config.Config) *Runner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Runner{cfg: cfg}
}

// Analyze parses and derives one file. The returned series may be non-nil
// even when an error is returned: a missing reference total aborts only the
// percentage columns.
func (r *Runner) Analyze(path string) (*derive.Series, error) {
	data, err := snapshot.ReadFile(path, snapshot.WithVariant(r.cfg.Variant()))
	if err != nil {
		return nil, err
	}

	// A rate embedded in the filename wins over the configured one.
	rate, _ := ExtractAccessRate(path)
	rescaler := r.cfg.Rescaler(rate)

	source, value := r.cfg.ReferenceOptions()
	return derive.Derive(data, derive.Options{
		Rescale:        rescaler,
		Reference:      source,
		ReferenceValue: value,
	})
}

// Run analyzes all paths with the configured number of workers and returns
// one result per path, in input order.
func (r *Runner) Run(ctx context.Context, paths []string) []Result {
	log := logging.Component("batch")
	results := make([]Result, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Batch.Workers)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Path: path, Err: err}
				return nil
			}

			series, err := r.Analyze(path)
			res := Result{Path: path, Series: series}

			switch {
			case err == nil:
			case series != nil && errors.Is(err, errors.ErrNoReferenceTotal):
				// Partial result: absolute columns only.
				res.Warning = err
			default:
				res.Series = nil
				res.Err = err
			}
			results[i] = res

			flog := logging.ForFile(path)
			switch {
			case res.Err != nil:
				flog.Error("analysis failed", "error", res.Err)
			case res.Warning != nil:
				flog.Warn("percentage columns skipped", "reason", res.Warning)
			default:
				flog.Debug("analyzed",
					"variant", series.Variant.String(),
					"records", series.Len(),
					"skipped", series.Skipped)
			}

			// Per-file failures are isolated; never abort the group.
			return nil
		})
	}

	g.Wait()

	failed := 0
	skipped := 0
	for i := range results {
		if results[i].Failed() {
			failed++
		} else if results[i].Series != nil {
			skipped += results[i].Series.Skipped
		}
	}
	log.Info("batch complete",
		"files", len(paths),
		"failed", failed,
		"skipped_lines", skipped)

	return results
}
