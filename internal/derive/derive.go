// Package derive turns parsed snapshot records into derived time series:
// cumulative counters for since-last-snapshot increments, percentage columns
// against an explicit reference total, composite expiry metrics, and a time
// axis rescaled to years under a caller-selected policy.
//
// Each file is an independent unit of work with its own reference total and
// its own rescaling; nothing is shared across calls.
package derive

import (
	"github.com/xtxerr/snapmetrics/internal/errors"
	"github.com/xtxerr/snapmetrics/internal/snapshot"
)

// overflowEpsilon is the slack above 100 before a percentage value counts as
// an overflow. Some source data double-counts synthesized objects and lands
// slightly above 100; anything past the epsilon is flagged on the series.
const overflowEpsilon = 1e-6

// ReferenceSource selects how the percentage denominator is established.
type ReferenceSource int

const (
	// ReferenceAuto uses the first positive total-objects-in-system value.
	// If the variant lacks that field, or every total is zero, no reference
	// exists and percentage columns are not produced.
	ReferenceAuto ReferenceSource = iota

	// ReferenceConstant uses Options.ReferenceValue for every record.
	ReferenceConstant

	// ReferenceHeaderTubes uses the initial tube count captured from the
	// file preamble.
	ReferenceHeaderTubes
)

// Options configures one derivation.
type Options struct {
	// Rescale is the mandatory time rescaling policy.
	Rescale Rescaler

	// Reference selects the percentage denominator policy.
	Reference ReferenceSource

	// ReferenceValue is the denominator for ReferenceConstant.
	ReferenceValue float64

	// SkipPercent suppresses percentage columns entirely. With it set, a
	// missing reference total is not an error.
	SkipPercent bool
}

// Derive computes the derived series for one parsed file.
//
// If percentage output is wanted but no reference total can be established,
// Derive returns the series holding every absolute column together with
// ErrNoReferenceTotal: percentage output is fatal, count output is not.
func Derive(data *snapshot.FileData, opts Options) (*Series, error) {
	if data == nil || len(data.Records) == 0 {
		return nil, errors.ErrNoRecords
	}

	rescaler := opts.Rescale
	if rescaler.Kind == RescaleHeaderRelative && rescaler.MaxTime == 0 {
		rescaler.MaxTime = data.Header.MaxTime
	}

	years, err := rescaler.Apply(data.RawTimes())
	if err != nil {
		return nil, err
	}

	s := &Series{
		Source:       data.Path,
		Variant:      data.Variant,
		TimeYears:    years,
		Skipped:      data.Skipped,
		SkippedLines: data.SkippedLines,
	}

	ref, refErr := resolveReference(data, opts)

	// Cumulative counters for since-last-snapshot increments. Absolute
	// fields are never summed.
	cumulativeLost := addCumulative(s, data, snapshot.FieldLostSinceSnap, ColCumulativeLost)
	addCumulative(s, data, snapshot.FieldTubesDestroyed, ColCumulativeDestroyed)
	addCumulative(s, data, snapshot.FieldTubesFromCache, ColCumulativeFromCache)

	// Passthrough columns the file already carries as percentages.
	addPassthrough(s, data, snapshot.FieldLostPercent, ColReportedLostPct)
	addPassthrough(s, data, snapshot.FieldWetTubesPct, ColWetTubesPercent)
	addPassthrough(s, data, snapshot.FieldAvailableTubes, string(snapshot.FieldAvailableTubes))
	addPassthrough(s, data, snapshot.FieldExhaustedPct, string(snapshot.FieldExhaustedPct))
	addPassthrough(s, data, snapshot.FieldCachePct, string(snapshot.FieldCachePct))
	for _, f := range []snapshot.Field{
		snapshot.FieldReplicas3Pct, snapshot.FieldReplicas2Pct,
		snapshot.FieldReplicas1Pct, snapshot.FieldReplicas0Pct,
		snapshot.FieldCopysets3Pct, snapshot.FieldCopysets2Pct,
		snapshot.FieldCopysets1Pct, snapshot.FieldCopysets0Pct,
	} {
		addPassthrough(s, data, f, string(f))
	}

	deriveExpiry(s, data)

	if ref > 0 && !opts.SkipPercent {
		s.ReferenceTotal = ref

		if cumulativeLost != nil {
			s.add(ColLostPercent, percentOf(cumulativeLost, ref))
		}
		if cache, ok := data.Column(snapshot.FieldObjectsInCache); ok {
			s.add(ColObjectsInCachePct, percentOf(cache, ref))
		}
		if totals, ok := data.Column(snapshot.FieldTotalObjects); ok {
			departed := make([]float64, len(totals))
			for i, t := range totals {
				departed[i] = ref - t
			}
			s.add(ColObjectsDeparted, departed)
			s.add(ColDeparturePercent, percentOf(departed, ref))
		}

		s.OverflowCount = countOverflow(s)
	}

	if refErr != nil && !opts.SkipPercent {
		return s, refErr
	}
	return s, nil
}

// resolveReference establishes the percentage denominator per the selected
// policy. Returns zero plus ErrNoReferenceTotal when none exists; it never
// falls back to an implicit constant.
func resolveReference(data *snapshot.FileData, opts Options) (float64, error) {
	switch opts.Reference {
	case ReferenceConstant:
		if opts.ReferenceValue <= 0 {
			return 0, errors.Wrap(errors.ErrNoReferenceTotal, "constant reference not positive")
		}
		return opts.ReferenceValue, nil

	case ReferenceHeaderTubes:
		if !data.Header.HasInitialTubes() {
			return 0, errors.Wrap(errors.ErrNoReferenceTotal, "header carries no initial tube count")
		}
		return float64(data.Header.InitialTubes), nil

	default: // ReferenceAuto
		totals, ok := data.Column(snapshot.FieldTotalObjects)
		if !ok {
			return 0, errors.Wrapf(errors.ErrNoReferenceTotal,
				"variant %s carries no total-objects column", data.Variant)
		}
		for _, t := range totals {
			if t > 0 {
				return t, nil
			}
		}
		return 0, errors.Wrap(errors.ErrNoReferenceTotal, "all observed totals are zero")
	}
}

// deriveExpiry builds the expired-tubes percentage columns. Two source
// shapes exist: the named-header files already carry percentages, the wide
// positional files carry counts that are normalized against the initial
// tube count from the preamble.
func deriveExpiry(s *Series, data *snapshot.FileData) {
	byReadsPct, okR := data.Column(snapshot.FieldExpiredByRdsPct)
	byTimePct, okT := data.Column(snapshot.FieldExpiredByTimePct)

	if !okR || !okT {
		reads, okCR := data.Column(snapshot.FieldExpiredByReads)
		times, okCT := data.Column(snapshot.FieldExpiredByTime)
		if !okCR || !okCT || !data.Header.HasInitialTubes() {
			return
		}
		tubes := float64(data.Header.InitialTubes)
		byReadsPct = percentOf(reads, tubes)
		byTimePct = percentOf(times, tubes)
	}

	total := make([]float64, len(byReadsPct))
	for i := range byReadsPct {
		total[i] = byReadsPct[i] + byTimePct[i]
	}

	s.add(ColExpiredByReadsPct, byReadsPct)
	s.add(ColExpiredByTimePct, byTimePct)
	s.add(ColTotalExpiredPct, total)
}

// addCumulative adds a running-sum column for an increment field. Returns
// the cumulative values so percentage columns can reuse them.
func addCumulative(s *Series, data *snapshot.FileData, f snapshot.Field, name string) []float64 {
	values, ok := data.Column(f)
	if !ok {
		return nil
	}
	out := make([]float64, len(values))
	var running float64
	for i, v := range values {
		running += v
		out[i] = running
	}
	s.add(name, out)
	return out
}

func addPassthrough(s *Series, data *snapshot.FileData, f snapshot.Field, name string) {
	if values, ok := data.Column(f); ok {
		s.add(name, values)
	}
}

func percentOf(values []float64, ref float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / ref * 100
	}
	return out
}

// countOverflow counts derived percentage values above 100.
func countOverflow(s *Series) int {
	count := 0
	for _, name := range []string{ColLostPercent, ColObjectsInCachePct, ColDeparturePercent} {
		if col, ok := s.Column(name); ok {
			for _, v := range col {
				if v > 100+overflowEpsilon {
					count++
				}
			}
		}
	}
	return count
}
