// Package export writes derived series to consumable formats: a derived CSV
// for charting layers and spreadsheets, and parquet (subpackage) for the
// query service.
package export

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
)

// TimeColumn is the name of the first CSV column, the rescaled time axis.
const TimeColumn = "time_years"

// WriteCSV writes a derived series as CSV: the time axis first, then every
// derived column in series order. Percentage columns are simply absent when
// no reference total was established.
func WriteCSV(w io.Writer, s *derive.Series) error {
	if s == nil || s.Len() == 0 {
		return errors.ErrNothingToDo
	}

	cw := csv.NewWriter(w)

	header := append([]string{TimeColumn}, s.Columns()...)
	if err := cw.Write(header); err != nil {
		return errors.Wrap(err, "write csv header")
	}

	row := make([]string, len(header))
	for i := 0; i < s.Len(); i++ {
		row[0] = formatValue(s.TimeYears[i])
		for j, name := range s.Columns() {
			col, _ := s.Column(name)
			row[j+1] = formatValue(col[i])
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrapf(err, "write csv row %d", i)
		}
	}

	cw.Flush()
	return errors.Wrap(cw.Error(), "flush csv")
}

// WriteCSVFile writes the derived CSV to a file, creating it (and truncating
// any previous content).
func WriteCSVFile(path string, s *derive.Series) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}

	if err := WriteCSV(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// formatValue renders a float without trailing float noise for integral
// values, matching how the source data prints counts.
func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}
