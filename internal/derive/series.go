package derive

import "github.com/xtxerr/snapmetrics/internal/snapshot"

// Derived column names. Passthrough columns reuse the snapshot field name;
// the names below are computed by derivation.
const (
	ColCumulativeLost      = "cumulative_lost_objects"
	ColLostPercent         = "lost_objects_percent"
	ColReportedLostPct     = "reported_lost_percent"
	ColWetTubesPercent     = "wet_tubes_percent"
	ColObjectsInCachePct   = "objects_in_cache_percent"
	ColExpiredByReadsPct   = "expired_tubes_by_reads_percent"
	ColExpiredByTimePct    = "expired_tubes_by_time_percent"
	ColTotalExpiredPct     = "total_expired_tubes_percent"
	ColObjectsDeparted     = "objects_departed"
	ColDeparturePercent    = "departure_percent"
	ColCumulativeDestroyed = "cumulative_tubes_destroyed"
	ColCumulativeFromCache = "cumulative_tubes_created_from_cache"
)

// Series is the derived time-series output for one snapshot file. All
// columns have the same length as TimeYears.
type Series struct {
	// Source is the input file path, empty when derived from a reader.
	Source string

	// Variant is the format the file parsed under.
	Variant snapshot.Variant

	// TimeYears is the rescaled time axis, non-decreasing when the raw
	// time index was.
	TimeYears []float64

	columns map[string][]float64
	order   []string

	// ReferenceTotal is the denominator used for the percentage columns.
	// Zero when no denominator could be established; percentage columns are
	// then absent, never emitted as garbage.
	ReferenceTotal float64

	// OverflowCount counts derived percentage values above 100 (plus a small
	// epsilon). Physically impossible values are flagged, not clipped.
	OverflowCount int

	// Parse diagnostics carried through from the snapshot reader.
	Skipped      int
	SkippedLines []int
}

// Len returns the number of points in the series.
func (s *Series) Len() int {
	return len(s.TimeYears)
}

// Columns returns the column names in insertion order.
func (s *Series) Columns() []string {
	return s.order
}

// Column returns a named column and whether it exists.
func (s *Series) Column(name string) ([]float64, bool) {
	v, ok := s.columns[name]
	return v, ok
}

// Has reports whether the series carries the named column.
func (s *Series) Has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// HasPercentages reports whether a reference total was established and the
// percentage columns exist.
func (s *Series) HasPercentages() bool {
	return s.ReferenceTotal > 0
}

// Final returns the last value of a column, or zero if absent or empty.
func (s *Series) Final(name string) float64 {
	v, ok := s.columns[name]
	if !ok || len(v) == 0 {
		return 0
	}
	return v[len(v)-1]
}

// Max returns the largest value of a column, or zero if absent or empty.
func (s *Series) Max(name string) float64 {
	v, ok := s.columns[name]
	if !ok || len(v) == 0 {
		return 0
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	return max
}

// add appends a column, preserving insertion order. Columns are added once.
func (s *Series) add(name string, values []float64) {
	if s.columns == nil {
		s.columns = make(map[string][]float64)
	}
	if _, dup := s.columns[name]; dup {
		return
	}
	s.columns[name] = values
	s.order = append(s.order, name)
}
