// Package compare lines up derived series from two to four runs and reports
// where they end up and how far apart they are. It replaces the family of
// per-purpose comparison scripts with one column-wise summary over whatever
// columns the compared runs share.
package compare

import (
	"math"

	"github.com/xtxerr/snapmetrics/internal/batch"
	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
)

// MaxEntries bounds a comparison; the source analyses never compared more
// than four folders at once and the summary table stops being readable past
// that.
const MaxEntries = 4

// Entry is one labeled series in a comparison.
type Entry struct {
	Label  string
	Series *derive.Series
}

// ColumnDelta summarizes one shared column across all compared series.
type ColumnDelta struct {
	Column string

	// Final and Max hold the per-entry final and peak values, in entry
	// order.
	Final []float64
	Max   []float64

	// FinalSpread is the gap between the largest and smallest final value.
	FinalSpread float64
}

// Comparison is the aligned result for a set of series.
type Comparison struct {
	Labels  []string
	Columns []ColumnDelta
}

// Compare aligns the given series on their shared columns. Columns present
// in only some series are dropped; order follows the first entry.
func Compare(entries []Entry) (*Comparison, error) {
	if len(entries) < 2 {
		return nil, errors.NewValidation("entries", "need at least two series to compare")
	}
	if len(entries) > MaxEntries {
		return nil, errors.NewValidation("entries", "too many series to compare")
	}
	for _, e := range entries {
		if e.Series == nil || e.Series.Len() == 0 {
			return nil, errors.Wrapf(errors.ErrNoRecords, "entry %q", e.Label)
		}
	}

	c := &Comparison{}
	for _, e := range entries {
		c.Labels = append(c.Labels, e.Label)
	}

	for _, name := range entries[0].Series.Columns() {
		shared := true
		for _, e := range entries[1:] {
			if !e.Series.Has(name) {
				shared = false
				break
			}
		}
		if !shared {
			continue
		}

		delta := ColumnDelta{Column: name}
		lo, hi := math.MaxFloat64, -math.MaxFloat64
		for _, e := range entries {
			final := e.Series.Final(name)
			delta.Final = append(delta.Final, final)
			delta.Max = append(delta.Max, e.Series.Max(name))
			if final < lo {
				lo = final
			}
			if final > hi {
				hi = final
			}
		}
		delta.FinalSpread = hi - lo
		c.Columns = append(c.Columns, delta)
	}

	if len(c.Columns) == 0 {
		return nil, errors.Wrap(errors.ErrNothingToDo, "no shared columns")
	}
	return c, nil
}

// Column returns the delta for a named column, if shared.
func (c *Comparison) Column(name string) (ColumnDelta, bool) {
	for _, d := range c.Columns {
		if d.Column == name {
			return d, true
		}
	}
	return ColumnDelta{}, false
}

// MatchByConfigKey pairs files across two folders by their configuration
// key (the filename up to the run timestamp). Files without a partner are
// returned separately.
func MatchByConfigKey(a, b []string) (pairs [][2]string, unmatched []string) {
	byKey := make(map[string]string, len(b))
	for _, path := range b {
		key := batch.ConfigKey(path)
		if _, dup := byKey[key]; !dup {
			byKey[key] = path
		}
	}

	used := make(map[string]bool)
	for _, path := range a {
		key := batch.ConfigKey(path)
		if partner, ok := byKey[key]; ok && !used[key] {
			pairs = append(pairs, [2]string{path, partner})
			used[key] = true
		} else {
			unmatched = append(unmatched, path)
		}
	}
	for _, path := range b {
		key := batch.ConfigKey(path)
		if !used[key] {
			unmatched = append(unmatched, path)
		}
	}
	return pairs, unmatched
}
