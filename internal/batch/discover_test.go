package batch

import (
	"os"
	"path/filepath"
	"testing"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "snaps_b.txt"))
	touch(t, filepath.Join(dir, "snaps_a.txt"))
	touch(t, filepath.Join(dir, "notes.md"))

	paths, err := Discover(dir, "snaps_*.txt")
	if err != nil {
		t.Fatalf("Discover() error: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("got %d paths, want 2: %v", len(paths), paths)
	}
	// Sorted for deterministic batch order.
	if filepath.Base(paths[0]) != "snaps_a.txt" || filepath.Base(paths[1]) != "snaps_b.txt" {
		t.Errorf("paths not sorted: %v", paths)
	}
}

func TestPairLogSnaps(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "log_run1.txt"))
	touch(t, filepath.Join(dir, "snaps_run1.txt"))
	touch(t, filepath.Join(dir, "log_run2.txt")) // no snaps partner

	pairs, unmatched, err := PairLogSnaps(dir)
	if err != nil {
		t.Fatalf("PairLogSnaps() error: %v", err)
	}

	if len(pairs) != 1 {
		t.Fatalf("got %d pairs, want 1", len(pairs))
	}
	if filepath.Base(pairs[0].LogPath) != "log_run1.txt" ||
		filepath.Base(pairs[0].SnapsPath) != "snaps_run1.txt" {
		t.Errorf("pair = %+v", pairs[0])
	}

	if len(unmatched) != 1 || filepath.Base(unmatched[0]) != "log_run2.txt" {
		t.Errorf("unmatched = %v, want [log_run2.txt]", unmatched)
	}
}

func TestExtractAccessRate(t *testing.T) {
	tests := []struct {
		path   string
		want   float64
		wantOK bool
	}{
		{"snaps_accessRate_500_maxReads_100_20240101.txt", 500, true},
		{"/data/runs/snaps_accessRate_20_other.txt", 20, true},
		{"snaps_accessRate_2.5.txt", 2, true}, // token ends at the first separator
		{"snaps_plain.txt", 0, false},
		{"snaps_accessRate_abc.txt", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractAccessRate(tt.path)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("ExtractAccessRate(%q) = (%v, %v), want (%v, %v)",
				tt.path, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestExtractMaxReads(t *testing.T) {
	got, ok := ExtractMaxReads("snaps_accessRate_500_maxReads_100_run.txt")
	if !ok || got != 100 {
		t.Errorf("ExtractMaxReads() = (%v, %v), want (100, true)", got, ok)
	}
}

func TestConfigKey(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{
			"snaps_accessRate_500_maxReads_100_20240115_120000.txt",
			"snaps_accessRate_500_maxReads_100",
		},
		{
			"/a/b/snaps_accessRate_500_maxReads_100_20240116_090000.txt",
			"snaps_accessRate_500_maxReads_100",
		},
		{
			"snaps_no_timestamp.txt",
			"snaps_no_timestamp",
		},
	}
	for _, tt := range tests {
		if got := ConfigKey(tt.path); got != tt.want {
			t.Errorf("ConfigKey(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
