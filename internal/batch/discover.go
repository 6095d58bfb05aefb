package batch

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xtxerr/snapmetrics/internal/errors"
)

// Pair is a matched simulation log / snapshot file pair sharing one run.
type Pair struct {
	LogPath   string
	SnapsPath string
}

// Discover returns the files under dir matching the glob pattern, sorted.
func Discover(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, errors.Wrapf(err, "glob %s", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

// PairLogSnaps finds log_*/snaps_* file pairs in dir. Runs write two files
// with a shared suffix; pairs missing their snaps side are dropped and
// reported in the second return value.
func PairLogSnaps(dir string) ([]Pair, []string, error) {
	logs, err := Discover(dir, "log_*.txt")
	if err != nil {
		return nil, nil, err
	}

	var pairs []Pair
	var unmatched []string
	for _, logPath := range logs {
		base := filepath.Base(logPath)
		snapsPath := filepath.Join(dir, strings.Replace(base, "log_", "snaps_", 1))
		if _, err := os.Stat(snapsPath); err != nil {
			unmatched = append(unmatched, logPath)
			continue
		}
		pairs = append(pairs, Pair{LogPath: logPath, SnapsPath: snapsPath})
	}
	return pairs, unmatched, nil
}

// ExtractAccessRate pulls the accesses-per-day rate out of a filename token
// like "accessRate_500". Returns false when the filename carries none; the
// caller decides the fallback, never this function.
func ExtractAccessRate(path string) (float64, bool) {
	return extractNumericToken(path, "accessRate_")
}

// ExtractMaxReads pulls the maximum-reads parameter out of a filename token
// like "maxReads_100".
func ExtractMaxReads(path string) (float64, bool) {
	return extractNumericToken(path, "maxReads_")
}

func extractNumericToken(path, prefix string) (float64, bool) {
	base := filepath.Base(path)
	idx := strings.Index(base, prefix)
	if idx < 0 {
		return 0, false
	}
	rest := base[idx+len(prefix):]
	if end := strings.IndexAny(rest, "_."); end >= 0 {
		rest = rest[:end]
	}
	v, err := strconv.ParseFloat(rest, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ConfigKey returns the portion of a filename identifying the simulation
// configuration: everything before the run timestamp. Files produced from
// the same configuration in different folders share a key, which is how
// cross-folder comparisons match runs.
func ConfigKey(path string) string {
	base := filepath.Base(path)
	if idx := strings.Index(base, "_202"); idx >= 0 {
		return base[:idx]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
