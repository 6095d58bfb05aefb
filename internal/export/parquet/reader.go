package parquet

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// SeriesReader reads derived series rows from a parquet file.
type SeriesReader struct {
	file   *os.File
	reader *parquet.GenericReader[SeriesRow]
	path   string
}

// NewSeriesReader creates a new series parquet reader.
func NewSeriesReader(path string) (*SeriesReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size(), parquet.ReadBufferSize(1024*1024))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open parquet file: %w", err)
	}

	reader := parquet.NewGenericReader[SeriesRow](pf)

	return &SeriesReader{
		file:   f,
		reader: reader,
		path:   path,
	}, nil
}

// Read reads up to n rows from the file.
func (r *SeriesReader) Read(n int) ([]SeriesRow, error) {
	rows := make([]SeriesRow, n)
	count, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return rows[:count], nil
}

// ReadAll reads all rows from the file.
func (r *SeriesReader) ReadAll() ([]SeriesRow, error) {
	numRows := r.reader.NumRows()
	rows := make([]SeriesRow, numRows)

	n, err := r.reader.Read(rows)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return rows[:n], nil
}

// NumRows returns the total number of rows in the file.
func (r *SeriesReader) NumRows() int64 {
	return r.reader.NumRows()
}

// Close closes the reader.
func (r *SeriesReader) Close() error {
	if err := r.reader.Close(); err != nil {
		r.file.Close()
		return err
	}
	return r.file.Close()
}

// Path returns the file path.
func (r *SeriesReader) Path() string {
	return r.path
}
