package snapshot

import (
	"testing"

	"github.com/xtxerr/snapmetrics/internal/errors"
)

func TestParseVariant(t *testing.T) {
	tests := []struct {
		input   string
		want    Variant
		wantErr bool
	}{
		{"pairwise", VariantPairwise, false},
		{"triplets", VariantTriplets, false},
		{"copysets", VariantCopysets, false},
		{"copysets-3", VariantCopysets3, false},
		{"copysets_3", VariantCopysets3, false},
		{"wide", VariantWide, false},
		{"Wide", VariantWide, false},
		{" auto ", VariantUnknown, false},
		{"", VariantUnknown, false},
		{"bogus", VariantUnknown, true},
	}

	for _, tt := range tests {
		got, err := ParseVariant(tt.input)
		if tt.wantErr {
			if !errors.Is(err, errors.ErrFormatUnrecognized) {
				t.Errorf("ParseVariant(%q) error = %v, want ErrFormatUnrecognized", tt.input, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseVariant(%q) unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVariant(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestVariantString(t *testing.T) {
	tests := []struct {
		v    Variant
		want string
	}{
		{VariantPairwise, "pairwise"},
		{VariantTriplets, "triplets"},
		{VariantCopysets, "copysets"},
		{VariantCopysets3, "copysets-3"},
		{VariantWide, "wide"},
		{VariantUnknown, "unknown"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("Variant(%d).String() = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDetectFromWidth(t *testing.T) {
	tests := []struct {
		columns int
		want    Variant
	}{
		{20, VariantTriplets},
		{19, VariantTriplets},
		{18, VariantPairwise},
		{17, VariantWide},
		{16, VariantCopysets},
		{15, VariantCopysets3},
		{14, VariantUnknown},
		{13, VariantUnknown},
	}
	for _, tt := range tests {
		if got := detectFromWidth(tt.columns); got != tt.want {
			t.Errorf("detectFromWidth(%d) = %v, want %v", tt.columns, got, tt.want)
		}
	}
}

func TestDetectFromPreamble(t *testing.T) {
	tests := []struct {
		name     string
		preamble []string
		want     Variant
	}{
		{
			name:     "copysets header",
			preamble: []string{"timestamp, ..., copysets_3_active, copysets_2_active"},
			want:     VariantCopysets,
		},
		{
			// Three-bucket files name copysets_2_active but never the
			// 3-copyset bucket.
			name:     "three-bucket copysets header",
			preamble: []string{"timestamp, ..., copysets_2_active, copysets_1_active"},
			want:     VariantCopysets3,
		},
		{
			name:     "pairwise header",
			preamble: []string{"timestamp, lost, objects_2_replicas, objects_1_replicas"},
			want:     VariantPairwise,
		},
		{
			// Triplets headers also name the 2-replica bucket; the 3-replica
			// hint must win regardless of line order.
			name:     "triplets header names both buckets",
			preamble: []string{"timestamp, objects_2_replicas, objects_3_replicas"},
			want:     VariantTriplets,
		},
		{
			name:     "wide header",
			preamble: []string{"timestamp, tubes_expired_by_time, tubes_destroyed_since_last_snap"},
			want:     VariantWide,
		},
		{
			name:     "free text only",
			preamble: []string{"simulation run 42", "", "parameters follow"},
			want:     VariantUnknown,
		},
		{
			name:     "empty",
			preamble: nil,
			want:     VariantUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFromPreamble(tt.preamble); got != tt.want {
				t.Errorf("detectFromPreamble() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLayoutFromNamedHeader(t *testing.T) {
	header := "timestamp,objects_lost_since_last_snap,tubes_wetted_percent," +
		"tubes_expired_by_reads_percent,tubes_expired_by_time_percent," +
		"tubes_destroyed_since_last_snap,total objects in the system"

	layout, err := layoutFromNamedHeader(header)
	if err != nil {
		t.Fatalf("layoutFromNamedHeader() error: %v", err)
	}
	if layout.Variant != VariantWide {
		t.Errorf("variant = %v, want %v", layout.Variant, VariantWide)
	}
	if layout.MinColumns != 7 {
		t.Errorf("MinColumns = %d, want 7", layout.MinColumns)
	}

	wantCols := map[Field]int{
		FieldTimestamp:        0,
		FieldLostSinceSnap:    1,
		FieldWetTubesPct:      2,
		FieldExpiredByRdsPct:  3,
		FieldExpiredByTimePct: 4,
		FieldTubesDestroyed:   5,
		FieldTotalObjects:     6,
	}
	for f, idx := range wantCols {
		got, ok := layout.Columns[f]
		if !ok {
			t.Errorf("layout missing field %s", f)
			continue
		}
		if got != idx {
			t.Errorf("field %s at column %d, want %d", f, got, idx)
		}
	}
}

func TestLayoutFromNamedHeaderCountShape(t *testing.T) {
	// Some named-header files carry the expired counters as
	// since-last-snap counts, not percentages.
	header := "timestamp,objects_lost_since_last_snap," +
		"tubes_expired_by_reads_since_last_snap," +
		"tubes_expired_by_time_since_last_snap," +
		"available tubes in the system"

	layout, err := layoutFromNamedHeader(header)
	if err != nil {
		t.Fatalf("layoutFromNamedHeader() error: %v", err)
	}

	wantCols := map[Field]int{
		FieldTimestamp:      0,
		FieldLostSinceSnap:  1,
		FieldExpiredByReads: 2,
		FieldExpiredByTime:  3,
		FieldAvailableTubes: 4,
	}
	for f, idx := range wantCols {
		got, ok := layout.Columns[f]
		if !ok {
			t.Errorf("layout missing field %s", f)
			continue
		}
		if got != idx {
			t.Errorf("field %s at column %d, want %d", f, got, idx)
		}
	}
	if layout.Has(FieldExpiredByRdsPct) || layout.Has(FieldExpiredByTimePct) {
		t.Error("count-shaped header resolved to percentage fields")
	}
}

func TestLayoutFromNamedHeaderRejectsUnusable(t *testing.T) {
	tests := []string{
		"timestamp,unknown_a,unknown_b",    // timestamp only
		"objects_lost_since_last_snap,x,y", // no timestamp
	}
	for _, header := range tests {
		if _, err := layoutFromNamedHeader(header); !errors.Is(err, errors.ErrFormatUnrecognized) {
			t.Errorf("layoutFromNamedHeader(%q) error = %v, want ErrFormatUnrecognized", header, err)
		}
	}
}

func TestLayoutFields(t *testing.T) {
	layout, err := LayoutFor(VariantPairwise)
	if err != nil {
		t.Fatalf("LayoutFor(pairwise) error: %v", err)
	}

	fields := layout.Fields()
	if len(fields) != len(layout.Columns) {
		t.Fatalf("Fields() returned %d fields, want %d", len(fields), len(layout.Columns))
	}
	for i := 1; i < len(fields); i++ {
		if layout.Columns[fields[i-1]] >= layout.Columns[fields[i]] {
			t.Errorf("Fields() not ordered by offset at %d: %s(%d) >= %s(%d)",
				i, fields[i-1], layout.Columns[fields[i-1]], fields[i], layout.Columns[fields[i]])
		}
	}
}

func TestLayoutForUnknown(t *testing.T) {
	if _, err := LayoutFor(VariantUnknown); !errors.Is(err, errors.ErrFormatUnrecognized) {
		t.Errorf("LayoutFor(unknown) error = %v, want ErrFormatUnrecognized", err)
	}
}
