package snapshot

// Record is one parsed snapshot row. It is constructed once during the parse
// pass and never mutated afterwards.
type Record struct {
	// RawTime is the row's native time unit: a count of read accesses or an
	// arbitrary snapshot index, depending on the producing simulation. It is
	// not a year value; derivation rescales it.
	RawTime int64

	// Fields holds the numeric values extracted for the active variant's
	// fields. Which fields are present is fixed per file by the layout.
	Fields map[Field]float64
}

// Get returns the value for a field and whether the record carries it.
func (r Record) Get(f Field) (float64, bool) {
	v, ok := r.Fields[f]
	return v, ok
}

// Header holds scalar configuration captured from a file's preamble lines
// before record parsing begins.
type Header struct {
	// InitialTubes is the tube count the simulation started with, when the
	// preamble carries one. Zero when absent.
	InitialTubes int64

	// MaxTime is the maximum simulation time from the preamble, used by the
	// header-relative time rescaling policy. Zero when absent.
	MaxTime float64

	// MaxReads and ObjectsPerTube are extra scalars the long parameter-line
	// form carries. Zero when absent.
	MaxReads       int64
	ObjectsPerTube int64

	// Preamble holds the raw non-data lines, in file order.
	Preamble []string
}

// HasMaxTime reports whether the preamble carried a usable max simulation time.
func (h *Header) HasMaxTime() bool {
	return h.MaxTime > 0
}

// HasInitialTubes reports whether the preamble carried an initial tube count.
func (h *Header) HasInitialTubes() bool {
	return h.InitialTubes > 0
}

// FileData is a fully parsed snapshot file: the detected layout, captured
// header, all records in file order, and skip diagnostics.
type FileData struct {
	Path    string
	Variant Variant
	Layout  Layout
	Header  Header

	Records []Record

	// Skipped counts data lines that failed to parse under the active
	// layout. SkippedLines holds their 1-based line numbers.
	Skipped      int
	SkippedLines []int
}

// Len returns the number of parsed records.
func (d *FileData) Len() int {
	return len(d.Records)
}

// RawTimes returns the raw time column in file order.
func (d *FileData) RawTimes() []int64 {
	out := make([]int64, len(d.Records))
	for i := range d.Records {
		out[i] = d.Records[i].RawTime
	}
	return out
}

// Column returns the values of one field in file order. The second return
// is false if the layout does not carry the field.
func (d *FileData) Column(f Field) ([]float64, bool) {
	if !d.Layout.Has(f) {
		return nil, false
	}
	out := make([]float64, len(d.Records))
	for i := range d.Records {
		out[i] = d.Records[i].Fields[f]
	}
	return out, true
}
