// Package parquet persists derived series as parquet files, one row per
// (snapshot, column) pair. The long layout keeps every derived column,
// whatever the format variant produced, and is what the query service reads
// back through DuckDB.
package parquet

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
)

// Options configures the parquet writer.
type Options struct {
	// Compression algorithm
	Compression CompressionType

	// CompressionLevel for algorithms that support it (zstd: 1-22)
	CompressionLevel int

	// RowGroupSize is the target number of rows per row group
	RowGroupSize int
}

// CompressionType represents a parquet compression algorithm.
type CompressionType int

const (
	CompressionNone CompressionType = iota
	CompressionSnappy
	CompressionZstd
	CompressionLZ4
	CompressionGzip
)

// DefaultOptions returns default parquet options.
func DefaultOptions() Options {
	return Options{
		Compression:      CompressionZstd,
		CompressionLevel: 3,
		RowGroupSize:     100000,
	}
}

// ParseCompressionType parses a compression type string.
func ParseCompressionType(s string) CompressionType {
	switch s {
	case "snappy":
		return CompressionSnappy
	case "zstd":
		return CompressionZstd
	case "lz4":
		return CompressionLZ4
	case "gzip":
		return CompressionGzip
	case "none", "":
		return CompressionNone
	default:
		return CompressionZstd
	}
}

// getCompression returns the parquet-go compression codec.
func getCompression(ct CompressionType) compress.Codec {
	switch ct {
	case CompressionSnappy:
		return &parquet.Snappy
	case CompressionZstd:
		return &parquet.Zstd
	case CompressionLZ4:
		return &parquet.Lz4Raw
	case CompressionGzip:
		return &parquet.Gzip
	default:
		return &parquet.Uncompressed
	}
}

// SeriesRow is one derived value in parquet format.
type SeriesRow struct {
	Source    string  `parquet:"source,zstd"`
	Variant   string  `parquet:"variant,zstd"`
	RowIndex  int64   `parquet:"row_index"`
	TimeYears float64 `parquet:"time_years"`
	Column    string  `parquet:"column,zstd"`
	Value     float64 `parquet:"value"`
}

// SeriesToRows flattens a derived series into parquet rows, column by column
// in series order.
func SeriesToRows(s *derive.Series) []SeriesRow {
	if s == nil {
		return nil
	}
	rows := make([]SeriesRow, 0, s.Len()*len(s.Columns()))
	for _, name := range s.Columns() {
		col, _ := s.Column(name)
		for i, v := range col {
			rows = append(rows, SeriesRow{
				Source:    s.Source,
				Variant:   s.Variant.String(),
				RowIndex:  int64(i),
				TimeYears: s.TimeYears[i],
				Column:    name,
				Value:     v,
			})
		}
	}
	return rows
}

// SeriesWriter writes derived series to a parquet file.
type SeriesWriter struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	writer   *parquet.GenericWriter[SeriesRow]
	rowCount int64
	closed   bool
}

// NewSeriesWriter creates a new series parquet writer.
func NewSeriesWriter(path string, opts Options) (*SeriesWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file: %w", err)
	}

	writerOpts := []parquet.WriterOption{
		parquet.Compression(getCompression(opts.Compression)),
	}

	writer := parquet.NewGenericWriter[SeriesRow](f, writerOpts...)

	return &SeriesWriter{
		path:   path,
		file:   f,
		writer: writer,
	}, nil
}

// WriteSeries writes all rows of a derived series.
func (w *SeriesWriter) WriteSeries(s *derive.Series) error {
	return w.WriteRows(SeriesToRows(s))
}

// WriteRows writes raw series rows.
func (w *SeriesWriter) WriteRows(rows []SeriesRow) error {
	if len(rows) == 0 {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.ErrWriterClosed
	}

	n, err := w.writer.Write(rows)
	if err != nil {
		return fmt.Errorf("write rows: %w", err)
	}

	w.rowCount += int64(n)
	return nil
}

// Close closes the writer.
func (w *SeriesWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close writer: %w", err)
	}

	return w.file.Close()
}

// RowCount returns the number of rows written.
func (w *SeriesWriter) RowCount() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rowCount
}

// Path returns the file path.
func (w *SeriesWriter) Path() string {
	return w.path
}
