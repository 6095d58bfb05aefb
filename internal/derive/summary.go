package derive

import (
	"math"

	"github.com/DataDog/sketches-go/ddsketch"
)

// DefaultSketchAccuracy is the DDSketch relative accuracy used when the
// caller does not supply one (1% error).
const DefaultSketchAccuracy = 0.01

// ColumnSummary holds distribution statistics for one derived column.
type ColumnSummary struct {
	Column string
	Count  int64
	Min    float64
	Max    float64
	Avg    float64
	Final  float64

	// Quantiles from a DDSketch over the column values.
	P50 float64
	P90 float64
	P95 float64
	P99 float64
}

// Summarize computes per-column distribution summaries for a derived series.
// Column order follows the series.
func Summarize(s *Series, accuracy float64) []ColumnSummary {
	if accuracy <= 0 {
		accuracy = DefaultSketchAccuracy
	}

	summaries := make([]ColumnSummary, 0, len(s.Columns()))
	for _, name := range s.Columns() {
		values, _ := s.Column(name)
		if cs, ok := summarizeColumn(name, values, accuracy); ok {
			summaries = append(summaries, cs)
		}
	}
	return summaries
}

// SummarizeColumn computes the summary for a single named column.
func SummarizeColumn(s *Series, name string, accuracy float64) (ColumnSummary, bool) {
	values, ok := s.Column(name)
	if !ok {
		return ColumnSummary{}, false
	}
	if accuracy <= 0 {
		accuracy = DefaultSketchAccuracy
	}
	return summarizeColumn(name, values, accuracy)
}

func summarizeColumn(name string, values []float64, accuracy float64) (ColumnSummary, bool) {
	if len(values) == 0 {
		return ColumnSummary{}, false
	}

	cs := ColumnSummary{
		Column: name,
		Min:    math.MaxFloat64,
		Max:    -math.MaxFloat64,
		Final:  values[len(values)-1],
	}

	sketch, err := ddsketch.NewDefaultDDSketch(accuracy)
	if err != nil {
		sketch = nil
	}

	var sum float64
	for _, v := range values {
		cs.Count++
		sum += v
		if v < cs.Min {
			cs.Min = v
		}
		if v > cs.Max {
			cs.Max = v
		}
		if sketch != nil {
			sketch.Add(v)
		}
	}
	cs.Avg = sum / float64(cs.Count)

	if sketch != nil {
		if q, err := sketch.GetValueAtQuantile(0.50); err == nil {
			cs.P50 = q
		}
		if q, err := sketch.GetValueAtQuantile(0.90); err == nil {
			cs.P90 = q
		}
		if q, err := sketch.GetValueAtQuantile(0.95); err == nil {
			cs.P95 = q
		}
		if q, err := sketch.GetValueAtQuantile(0.99); err == nil {
			cs.P99 = q
		}
	}

	return cs, true
}
