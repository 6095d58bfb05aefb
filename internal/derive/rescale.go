package derive

import (
	"strings"

	"github.com/xtxerr/snapmetrics/internal/errors"
)

// RescaleKind selects how a file's raw time index is converted to years.
// The producing simulation wrote three incompatible conventions; the policy
// is therefore an explicit caller decision, never inferred.
type RescaleKind int

const (
	RescaleUnset RescaleKind = iota

	// RescaleFixedRate converts a read-access count at a known access rate:
	// years = raw / (accessesPerDay * 365).
	RescaleFixedRate

	// RescaleHeaderRelative scales against the max simulation time captured
	// from the preamble: years = (raw / maxTime) * maxYears.
	RescaleHeaderRelative

	// RescaleMaxNormalized scales against the largest raw time in the file:
	// years = (raw / max(raw)) * maxYears. Needs a full pass over the raw
	// time column before any value can be produced.
	RescaleMaxNormalized
)

// String returns the policy name as used in config files and flags.
func (k RescaleKind) String() string {
	switch k {
	case RescaleFixedRate:
		return "fixed-rate"
	case RescaleHeaderRelative:
		return "header-relative"
	case RescaleMaxNormalized:
		return "max-normalized"
	default:
		return "unset"
	}
}

// ParseRescaleKind parses a policy name.
func ParseRescaleKind(s string) (RescaleKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed-rate", "fixed_rate", "fixedrate":
		return RescaleFixedRate, nil
	case "header-relative", "header_relative", "headerrelative":
		return RescaleHeaderRelative, nil
	case "max-normalized", "max_normalized", "maxnormalized":
		return RescaleMaxNormalized, nil
	default:
		return RescaleUnset, errors.Wrapf(errors.ErrInvalidPolicy, "rescale policy %q", s)
	}
}

// DefaultMaxYears is the simulated horizon the relative policies map onto.
const DefaultMaxYears = 10.0

// Rescaler applies one time rescaling policy.
type Rescaler struct {
	Kind RescaleKind

	// AccessesPerDay is required for RescaleFixedRate.
	AccessesPerDay float64

	// MaxTime is required for RescaleHeaderRelative, normally taken from the
	// file header.
	MaxTime float64

	// MaxYears is the horizon for the relative policies. Zero means
	// DefaultMaxYears.
	MaxYears float64
}

// Apply converts raw time values to years. The output is non-decreasing
// whenever the input is.
func (r Rescaler) Apply(raw []int64) ([]float64, error) {
	maxYears := r.MaxYears
	if maxYears == 0 {
		maxYears = DefaultMaxYears
	}

	years := make([]float64, len(raw))

	switch r.Kind {
	case RescaleFixedRate:
		if r.AccessesPerDay <= 0 {
			return nil, errors.NewValidation("accesses_per_day", "must be positive for fixed-rate rescaling")
		}
		div := r.AccessesPerDay * 365
		for i, t := range raw {
			years[i] = float64(t) / div
		}

	case RescaleHeaderRelative:
		if r.MaxTime <= 0 {
			return nil, errors.ErrMissingMaxTime
		}
		for i, t := range raw {
			years[i] = float64(t) / r.MaxTime * maxYears
		}

	case RescaleMaxNormalized:
		var max int64
		for _, t := range raw {
			if t > max {
				max = t
			}
		}
		if max == 0 {
			// Degenerate single-snapshot or all-zero axis; everything maps
			// to year zero.
			return years, nil
		}
		for i, t := range raw {
			years[i] = float64(t) / float64(max) * maxYears
		}

	default:
		return nil, errors.Wrap(errors.ErrInvalidPolicy, "no rescale policy selected")
	}

	return years, nil
}
