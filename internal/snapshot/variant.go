package snapshot

import (
	"strings"

	"github.com/xtxerr/snapmetrics/internal/errors"
)

// Field is the semantic name of a snapshot column. Column positions drift
// between format variants; semantic names do not.
type Field string

const (
	FieldTimestamp        Field = "timestamp"
	FieldLostSinceSnap    Field = "objects_lost_since_last_snap"
	FieldLostPercent      Field = "lost_objects_percent"
	FieldTotalObjects     Field = "total_objects_in_system"
	FieldObjectsInCache   Field = "total_objects_in_cache"
	FieldAvailableTubes   Field = "available_tubes_in_system"
	FieldWetTubesPct      Field = "tubes_wetted_percent"
	FieldExhaustedPct     Field = "exhausted_tubes_pct"
	FieldCachePct         Field = "objects_in_cache_pct"
	FieldExpiredByTime    Field = "tubes_expired_by_time"
	FieldExpiredByReads   Field = "tubes_expired_by_reads"
	FieldExpiredByTimePct Field = "tubes_expired_by_time_percent"
	FieldExpiredByRdsPct  Field = "tubes_expired_by_reads_percent"
	FieldReplicas3Pct     Field = "objects_3_replicas_pct"
	FieldReplicas2Pct     Field = "objects_2_replicas_pct"
	FieldReplicas1Pct     Field = "objects_1_replicas_pct"
	FieldReplicas0Pct     Field = "objects_0_replicas_pct"
	FieldCopysets3Pct     Field = "copysets_3_active_pct"
	FieldCopysets2Pct     Field = "copysets_2_active_pct"
	FieldCopysets1Pct     Field = "copysets_1_active_pct"
	FieldCopysets0Pct     Field = "copysets_0_active_pct"
	FieldTubesDestroyed   Field = "tubes_destroyed_since_last_snap"
	FieldTubesFromCache   Field = "tubes_created_from_cache_since_last_snap"
)

// Variant identifies one of the observed snapshot column layouts.
type Variant int

const (
	VariantUnknown Variant = iota
	// VariantPairwise carries 0/1/2 replica buckets.
	VariantPairwise
	// VariantTriplets carries 0-3 replica buckets.
	VariantTriplets
	// VariantCopysets carries 0-3 active-copyset buckets.
	VariantCopysets
	// VariantCopysets3 carries 0-2 active-copyset buckets, produced by the
	// two-replica simulations.
	VariantCopysets3
	// VariantWide carries expired-tube counters and wet/cache percentages at
	// offsets distinct from the replica-bucket layouts. Files with a named
	// column header row also resolve to this variant.
	VariantWide
)

// String returns a human-readable representation of the variant.
func (v Variant) String() string {
	switch v {
	case VariantPairwise:
		return "pairwise"
	case VariantTriplets:
		return "triplets"
	case VariantCopysets:
		return "copysets"
	case VariantCopysets3:
		return "copysets-3"
	case VariantWide:
		return "wide"
	default:
		return "unknown"
	}
}

// ParseVariant parses a variant name, as used in config files and flags.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pairwise":
		return VariantPairwise, nil
	case "triplets":
		return VariantTriplets, nil
	case "copysets":
		return VariantCopysets, nil
	case "copysets-3", "copysets_3", "copysets3":
		return VariantCopysets3, nil
	case "wide":
		return VariantWide, nil
	case "", "auto":
		return VariantUnknown, nil
	default:
		return VariantUnknown, errors.Wrapf(errors.ErrFormatUnrecognized, "variant %q", s)
	}
}

// Layout is the explicit column map for one variant: semantic field name to
// integer offset. Every variant ships as a named table; offsets are never
// inferred at parse time.
type Layout struct {
	Variant Variant

	// MinColumns is the minimum number of columns a data row must split into.
	// Shorter rows are skipped and counted.
	MinColumns int

	// Columns maps each field this variant carries to its column offset.
	Columns map[Field]int
}

// Has reports whether the layout carries the given field.
func (l Layout) Has(f Field) bool {
	_, ok := l.Columns[f]
	return ok
}

// Fields returns the fields this layout carries, ordered by column offset.
func (l Layout) Fields() []Field {
	fields := make([]Field, 0, len(l.Columns))
	for f := range l.Columns {
		fields = append(fields, f)
	}
	for i := 1; i < len(fields); i++ {
		for j := i; j > 0 && l.Columns[fields[j]] < l.Columns[fields[j-1]]; j-- {
			fields[j], fields[j-1] = fields[j-1], fields[j]
		}
	}
	return fields
}

// layouts holds the static column map tables for the positional variants.
var layouts = map[Variant]Layout{
	VariantPairwise: {
		Variant:    VariantPairwise,
		MinColumns: 18,
		Columns: map[Field]int{
			FieldTimestamp:     0,
			FieldLostSinceSnap: 8,
			FieldLostPercent:   9,
			FieldWetTubesPct:   12,
			FieldExhaustedPct:  13,
			FieldCachePct:      14,
			FieldReplicas2Pct:  15,
			FieldReplicas1Pct:  16,
			FieldReplicas0Pct:  17,
		},
	},
	VariantTriplets: {
		Variant:    VariantTriplets,
		MinColumns: 19,
		Columns: map[Field]int{
			FieldTimestamp:     0,
			FieldLostSinceSnap: 8,
			FieldLostPercent:   9,
			FieldWetTubesPct:   12,
			FieldExhaustedPct:  13,
			FieldCachePct:      14,
			FieldReplicas3Pct:  15,
			FieldReplicas2Pct:  16,
			FieldReplicas1Pct:  17,
			FieldReplicas0Pct:  18,
		},
	},
	VariantCopysets: {
		Variant:    VariantCopysets,
		MinColumns: 16,
		Columns: map[Field]int{
			FieldTimestamp:     0,
			FieldLostSinceSnap: 8,
			FieldLostPercent:   9,
			FieldCopysets3Pct:  12,
			FieldCopysets2Pct:  13,
			FieldCopysets1Pct:  14,
			FieldCopysets0Pct:  15,
		},
	},
	VariantCopysets3: {
		Variant:    VariantCopysets3,
		MinColumns: 15,
		Columns: map[Field]int{
			FieldTimestamp:     0,
			FieldLostSinceSnap: 8,
			FieldLostPercent:   9,
			FieldCopysets2Pct:  12,
			FieldCopysets1Pct:  13,
			FieldCopysets0Pct:  14,
		},
	},
	// Absolute totals and destroyed/created counters exist only in files
	// with a named column header; the positional wide shape stops at the
	// cache percentage.
	VariantWide: {
		Variant:    VariantWide,
		MinColumns: 17,
		Columns: map[Field]int{
			FieldTimestamp:      0,
			FieldLostSinceSnap:  8,
			FieldLostPercent:    9,
			FieldExpiredByTime:  12,
			FieldExpiredByReads: 13,
			FieldWetTubesPct:    14,
			FieldCachePct:       16,
		},
	},
}

// LayoutFor returns the static layout table for a variant.
func LayoutFor(v Variant) (Layout, error) {
	l, ok := layouts[v]
	if !ok {
		return Layout{}, errors.ErrFormatUnrecognized
	}
	return l, nil
}

// namedHeaderFields maps column header names, as they appear verbatim in
// named-header files, to semantic fields. The "total objects ..." spellings
// differ from the snake_case names; both are observed in real files.
var namedHeaderFields = map[string]Field{
	"timestamp":                                FieldTimestamp,
	"objects_lost_since_last_snap":             FieldLostSinceSnap,
	"total objects in the system":              FieldTotalObjects,
	"total_objects_in_system":                  FieldTotalObjects,
	"total objects in cache":                   FieldObjectsInCache,
	"total_objects_in_cache":                   FieldObjectsInCache,
	"available tubes in the system":            FieldAvailableTubes,
	"tubes_wetted_percent":                     FieldWetTubesPct,
	"tubes_expired_by_reads_percent":           FieldExpiredByRdsPct,
	"tubes_expired_by_time_percent":            FieldExpiredByTimePct,
	"tubes_expired_by_reads_since_last_snap":   FieldExpiredByReads,
	"tubes_expired_by_time_since_last_snap":    FieldExpiredByTime,
	"tubes_destroyed_since_last_snap":          FieldTubesDestroyed,
	"tubes_created_from_cache_since_last_snap": FieldTubesFromCache,
}

// layoutFromNamedHeader builds a layout from a named column header row.
// Returns an unrecognized-format error unless the row names at least a
// timestamp and one other known column.
func layoutFromNamedHeader(header string) (Layout, error) {
	cols := splitLine(header)

	columns := make(map[Field]int)
	for i, name := range cols {
		if f, ok := namedHeaderFields[name]; ok {
			if _, dup := columns[f]; !dup {
				columns[f] = i
			}
		}
	}

	if _, ok := columns[FieldTimestamp]; !ok || len(columns) < 2 {
		return Layout{}, errors.Wrap(errors.ErrFormatUnrecognized, "named header")
	}

	// Rows only need to reach the right-most recognized column.
	min := 0
	for _, idx := range columns {
		if idx+1 > min {
			min = idx + 1
		}
	}

	return Layout{
		Variant:    VariantWide,
		MinColumns: min,
		Columns:    columns,
	}, nil
}

// variantNameHints maps column-name substrings, seen in preamble header rows
// of positional files, to variants. Checked most-specific first.
var variantNameHints = []struct {
	substr  string
	variant Variant
}{
	{"copysets_3_active", VariantCopysets},
	{"copysets_2_active", VariantCopysets3},
	{"objects_3_replicas", VariantTriplets},
	{"objects_2_replicas", VariantPairwise},
	{"tubes_destroyed_since_last_snap", VariantWide},
	{"tubes_expired_by_time", VariantWide},
}

// detectFromPreamble scans preamble lines for known column-name substrings.
// The hint list runs most-specific first, so a triplets header that also
// names objects_2_replicas, or a four-bucket copysets header that also names
// copysets_2_active, resolves to the wider layout.
func detectFromPreamble(preamble []string) Variant {
	for _, hint := range variantNameHints {
		for _, line := range preamble {
			if strings.Contains(line, hint.substr) {
				if hint.variant == VariantPairwise && containsAny(preamble, "objects_3_replicas") {
					continue
				}
				return hint.variant
			}
		}
	}
	return VariantUnknown
}

// detectFromWidth selects a variant from the first data row's column count.
// Each band is the minimum-width guard its source format was read with:
// triplets rows carry 19 columns, pairwise 18, the positional wide shape 17,
// four-bucket copysets 16, three-bucket copysets 15. Preamble hints are
// consulted first; width is the fallback for files whose preamble names no
// columns.
func detectFromWidth(columns int) Variant {
	switch {
	case columns >= 19:
		return VariantTriplets
	case columns == 18:
		return VariantPairwise
	case columns == 17:
		return VariantWide
	case columns == 16:
		return VariantCopysets
	case columns == 15:
		return VariantCopysets3
	default:
		return VariantUnknown
	}
}

func containsAny(lines []string, substr string) bool {
	for _, line := range lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
