// Package snapshot parses line-oriented, comma-delimited snapshot files
// produced by the tube retention simulation.
//
// A file starts with one to four non-data preamble lines (free text, a scalar
// parameter line, a blank line, or a column-name header row) followed by one
// data row per snapshot. Column meaning is positional and varies across at
// least four format variants; each variant ships as an explicit column map in
// variant.go. Detection inspects preamble column names first and falls back
// to the first data row's column count. If neither identifies a variant the
// parse fails with ErrFormatUnrecognized rather than guessing.
//
// Malformed data rows are skipped, not fatal: snapshot files are append-only
// logs that may be read mid-write, so a short trailing line is expected. The
// reader counts skipped lines and records their line numbers for diagnostics.
package snapshot

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xtxerr/snapmetrics/internal/errors"
)

// maxPreambleLines bounds how many non-data lines may precede the data rows.
const maxPreambleLines = 5

// minDataColumns is the narrowest data row any known variant produces. Used
// only to tell data rows apart from preamble lines during detection.
const minDataColumns = 13

// Option configures a Reader.
type Option func(*readerOptions)

type readerOptions struct {
	variant Variant
}

// WithVariant forces a format variant instead of auto-detecting.
func WithVariant(v Variant) Option {
	return func(o *readerOptions) { o.variant = v }
}

// Reader streams records from one snapshot file. Records are yielded in file
// order; the whole file is never buffered.
type Reader struct {
	closer  io.Closer
	scanner *bufio.Scanner

	layout Layout
	header Header

	// pending holds the first data row, consumed during detection.
	pending []string
	lineNum int

	rec Record
	err error

	skipped      int
	skippedLines []int
}

// Open opens a snapshot file and prepares it for streaming. The preamble is
// consumed and the variant resolved before Open returns; the file handle is
// closed on every error path.
func Open(path string, opts ...Option) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "%s", path)
	}
	r.closer = f
	return r, nil
}

// NewReader prepares a reader over an already-open stream. Used directly in
// tests; callers with a path should use Open.
func NewReader(src io.Reader, opts ...Option) (*Reader, error) {
	var o readerOptions
	for _, opt := range opts {
		opt(&o)
	}

	r := &Reader{
		scanner: bufio.NewScanner(src),
	}
	r.scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if err := r.init(o.variant); err != nil {
		return nil, err
	}
	return r, nil
}

// init consumes the preamble, resolves the layout, and captures header
// scalars. On return the reader is positioned at the first data row.
func (r *Reader) init(forced Variant) error {
	var preamble []string
	var firstData []string
	var named Layout
	haveNamed := false

	for len(preamble) < maxPreambleLines {
		if !r.scanner.Scan() {
			if err := r.scanner.Err(); err != nil {
				return errors.Wrap(err, "read preamble")
			}
			if len(preamble) == 0 {
				return errors.ErrEmptyFile
			}
			break
		}
		r.lineNum++
		line := strings.TrimSpace(r.scanner.Text())

		if r.lineNum == 1 && looksLikeNamedHeader(line) {
			layout, err := layoutFromNamedHeader(line)
			if err != nil {
				return err
			}
			named = layout
			haveNamed = true
			preamble = append(preamble, line)
			break
		}

		fields := splitLine(line)
		if looksLikeData(fields) {
			firstData = fields
			break
		}
		preamble = append(preamble, line)
	}

	r.header = captureHeader(preamble)

	switch {
	case haveNamed:
		r.layout = named
	case forced != VariantUnknown:
		layout, err := LayoutFor(forced)
		if err != nil {
			return err
		}
		r.layout = layout
	default:
		v := detectFromPreamble(preamble)
		if v == VariantUnknown && firstData != nil {
			v = detectFromWidth(len(firstData))
		}
		if v == VariantUnknown {
			return errors.Wrapf(errors.ErrFormatUnrecognized,
				"no header match, first data row has %d columns", len(firstData))
		}
		layout, err := LayoutFor(v)
		if err != nil {
			return err
		}
		r.layout = layout
	}

	if firstData == nil && !haveNamed {
		// All lines were preamble and the file ended, or the preamble cap was
		// reached without a data row. An empty data section is legal (a file
		// being written may have no rows yet); an over-long preamble is not.
		if len(preamble) >= maxPreambleLines {
			return errors.Wrap(errors.ErrMalformedHeader, "no data row within preamble cap")
		}
	}

	r.pending = firstData
	return nil
}

// Next advances to the next record. It returns false at end of file or on an
// unrecoverable read error; check Err afterwards.
func (r *Reader) Next() bool {
	for {
		var fields []string

		if r.pending != nil {
			fields = r.pending
			r.pending = nil
		} else {
			if !r.scanner.Scan() {
				r.err = r.scanner.Err()
				return false
			}
			r.lineNum++
			line := strings.TrimSpace(r.scanner.Text())
			if line == "" {
				continue
			}
			fields = splitLine(line)
		}

		rec, ok := r.parseFields(fields)
		if !ok {
			r.skipped++
			r.skippedLines = append(r.skippedLines, r.lineNum)
			continue
		}

		r.rec = rec
		return true
	}
}

// parseFields extracts a record under the active layout. Any missing or
// non-numeric required column rejects the whole line.
func (r *Reader) parseFields(fields []string) (Record, bool) {
	if len(fields) < r.layout.MinColumns {
		return Record{}, false
	}

	values := make(map[Field]float64, len(r.layout.Columns))
	for f, idx := range r.layout.Columns {
		if idx >= len(fields) {
			return Record{}, false
		}
		v, err := strconv.ParseFloat(fields[idx], 64)
		if err != nil {
			return Record{}, false
		}
		values[f] = v
	}

	return Record{
		RawTime: int64(values[FieldTimestamp]),
		Fields:  values,
	}, true
}

// Record returns the current record. Valid after Next returns true.
func (r *Reader) Record() Record {
	return r.rec
}

// Header returns the scalars captured from the preamble.
func (r *Reader) Header() Header {
	return r.header
}

// Variant returns the resolved format variant.
func (r *Reader) Variant() Variant {
	return r.layout.Variant
}

// Layout returns the active column map.
func (r *Reader) Layout() Layout {
	return r.layout
}

// Skipped returns the number of data lines rejected so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

// SkippedLines returns the 1-based line numbers of rejected data lines.
func (r *Reader) SkippedLines() []int {
	return r.skippedLines
}

// Err returns the first unrecoverable read error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file handle, if the reader owns one.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// ReadFile parses an entire snapshot file in one pass.
func ReadFile(path string, opts ...Option) (*FileData, error) {
	r, err := Open(path, opts...)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data := &FileData{
		Path:    path,
		Variant: r.Variant(),
		Layout:  r.Layout(),
		Header:  r.Header(),
	}

	for r.Next() {
		data.Records = append(data.Records, r.Record())
	}
	if err := r.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	// Every data row rejected means the file is not the layout it was read
	// under (a forced variant that does not fit, typically), not a file with
	// a few torn lines.
	if len(data.Records) == 0 && r.Skipped() > 0 {
		return nil, errors.Wrapf(errors.ErrFormatUnrecognized,
			"%s: all %d data rows rejected under the %s layout", path, r.Skipped(), data.Variant)
	}

	data.Skipped = r.Skipped()
	data.SkippedLines = r.SkippedLines()
	return data, nil
}

// splitLine splits a comma- or comma-space-delimited line, trims each token,
// and drops trailing empty tokens left by a trailing delimiter.
func splitLine(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// looksLikeData reports whether a split line is plausibly a data row: wide
// enough for the narrowest known variant and numeric in its first column.
func looksLikeData(fields []string) bool {
	if len(fields) < minDataColumns {
		return false
	}
	_, err := strconv.ParseFloat(fields[0], 64)
	return err == nil
}

// looksLikeNamedHeader reports whether the first line is a column-name header
// row rather than free text or data.
func looksLikeNamedHeader(line string) bool {
	return strings.Contains(line, "timestamp") && strings.Contains(line, ",")
}

// captureHeader extracts scalar configuration from preamble lines. The
// parameter line always carries the initial tube count at offset 1 and the
// max simulation time at offset 2, whatever its length; the long form adds
// the max read count at offset 3 and the per-tube object count at offset 7.
func captureHeader(preamble []string) Header {
	h := Header{Preamble: preamble}

	for _, line := range preamble {
		tokens := splitLine(line)
		if len(tokens) < 3 {
			continue
		}

		tubes, err1 := strconv.ParseFloat(tokens[1], 64)
		maxT, err2 := strconv.ParseFloat(tokens[2], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		h.InitialTubes = int64(tubes)
		h.MaxTime = maxT

		if len(tokens) >= 8 {
			if mr, err := strconv.ParseFloat(tokens[3], 64); err == nil {
				h.MaxReads = int64(mr)
			}
			if opt, err := strconv.ParseFloat(tokens[7], 64); err == nil {
				h.ObjectsPerTube = int64(opt)
			}
		}
		return h
	}

	return h
}
