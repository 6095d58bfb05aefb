// Package repl provides an interactive explorer over one analyzed snapshot
// file. It is the quick-look surface: columns, head, per-column stats and
// quantiles without exporting anything.
package repl

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/snapmetrics/internal/derive"
)

// Session is one interactive exploration of a derived series.
type Session struct {
	series   *derive.Series
	accuracy float64
	out      *os.File
}

// New creates a session over a derived series.
func New(series *derive.Series, accuracy float64) *Session {
	return &Session{
		series:   series,
		accuracy: accuracy,
		out:      os.Stdout,
	}
}

// Run starts the prompt loop and blocks until the user exits. The terminal
// state is captured up front and restored afterwards; go-prompt leaves the
// terminal raw when the process exits from inside the executor.
func (s *Session) Run() error {
	fd := int(os.Stdin.Fd())
	var saved *term.State
	if term.IsTerminal(fd) {
		st, err := term.GetState(fd)
		if err != nil {
			return fmt.Errorf("capture terminal state: %w", err)
		}
		saved = st
		defer term.Restore(fd, saved)
	}

	fmt.Fprintf(s.out, "exploring %s (%s, %d snapshots) — type help\n",
		s.series.Source, s.series.Variant, s.series.Len())

	done := false
	p := prompt.New(
		func(in string) {
			if s.execute(in) {
				done = true
			}
		},
		s.complete,
		prompt.OptionPrefix("snapmetrics> "),
		prompt.OptionTitle("snapmetrics explore"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return done
		}),
	)
	p.Run()
	return nil
}

// execute runs one command line. Returns true when the session should end.
func (s *Session) execute(in string) bool {
	args := strings.Fields(strings.TrimSpace(in))
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "exit", "quit":
		return true
	case "help":
		s.printHelp()
	case "info":
		s.printInfo()
	case "columns":
		s.printColumns()
	case "head":
		n := 10
		if len(args) > 1 {
			if v, err := strconv.Atoi(args[1]); err == nil && v > 0 {
				n = v
			}
		}
		s.printHead(n)
	case "stat":
		if len(args) < 2 {
			fmt.Fprintln(s.out, "usage: stat <column>")
			return false
		}
		s.printStat(args[1])
	case "quantile":
		if len(args) < 3 {
			fmt.Fprintln(s.out, "usage: quantile <column> <q in [0,1]>")
			return false
		}
		s.printQuantile(args[1], args[2])
	case "skipped":
		s.printSkipped()
	default:
		fmt.Fprintf(s.out, "unknown command %q — type help\n", args[0])
	}
	return false
}

func (s *Session) complete(d prompt.Document) []prompt.Suggest {
	line := d.TextBeforeCursor()
	fields := strings.Fields(line)

	// Complete column names as the second word of stat/quantile.
	if len(fields) >= 1 && (fields[0] == "stat" || fields[0] == "quantile") &&
		(len(fields) >= 2 || strings.HasSuffix(line, " ")) {
		cols := make([]prompt.Suggest, 0, len(s.series.Columns()))
		for _, name := range s.series.Columns() {
			cols = append(cols, prompt.Suggest{Text: name})
		}
		return prompt.FilterHasPrefix(cols, d.GetWordBeforeCursor(), true)
	}

	commands := []prompt.Suggest{
		{Text: "info", Description: "file, variant, reference total"},
		{Text: "columns", Description: "list derived columns"},
		{Text: "head", Description: "print the first snapshots"},
		{Text: "stat", Description: "distribution summary for a column"},
		{Text: "quantile", Description: "one quantile of a column"},
		{Text: "skipped", Description: "skipped-line diagnostics"},
		{Text: "help", Description: "this text"},
		{Text: "exit", Description: "leave the explorer"},
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (s *Session) printHelp() {
	fmt.Fprintln(s.out, `commands:
  info                      file, variant, reference total, diagnostics
  columns                   list derived columns
  head [n]                  print the first n snapshots (default 10)
  stat <column>             min/max/avg/final and quantiles for a column
  quantile <column> <q>     a single quantile, q in [0,1]
  skipped                   skipped-line numbers from the parse
  exit`)
}

func (s *Session) printInfo() {
	fmt.Fprintf(s.out, "source:          %s\n", s.series.Source)
	fmt.Fprintf(s.out, "variant:         %s\n", s.series.Variant)
	fmt.Fprintf(s.out, "snapshots:       %d\n", s.series.Len())
	if s.series.HasPercentages() {
		fmt.Fprintf(s.out, "reference total: %.0f\n", s.series.ReferenceTotal)
	} else {
		fmt.Fprintln(s.out, "reference total: none (percentage columns absent)")
	}
	fmt.Fprintf(s.out, "skipped lines:   %d\n", s.series.Skipped)
	if s.series.OverflowCount > 0 {
		fmt.Fprintf(s.out, "overflow values: %d (percentages above 100)\n", s.series.OverflowCount)
	}
}

func (s *Session) printColumns() {
	for _, name := range s.series.Columns() {
		fmt.Fprintf(s.out, "  %s\n", name)
	}
}

func (s *Session) printHead(n int) {
	if n > s.series.Len() {
		n = s.series.Len()
	}
	cols := s.series.Columns()
	fmt.Fprintf(s.out, "%-12s", "time_years")
	for _, name := range cols {
		fmt.Fprintf(s.out, " %22s", name)
	}
	fmt.Fprintln(s.out)
	for i := 0; i < n; i++ {
		fmt.Fprintf(s.out, "%-12.4f", s.series.TimeYears[i])
		for _, name := range cols {
			col, _ := s.series.Column(name)
			fmt.Fprintf(s.out, " %22.4f", col[i])
		}
		fmt.Fprintln(s.out)
	}
}

func (s *Session) printStat(column string) {
	cs, ok := derive.SummarizeColumn(s.series, column, s.accuracy)
	if !ok {
		fmt.Fprintf(s.out, "no such column %q\n", column)
		return
	}
	fmt.Fprintf(s.out, "count=%d min=%.4f max=%.4f avg=%.4f final=%.4f\n",
		cs.Count, cs.Min, cs.Max, cs.Avg, cs.Final)
	fmt.Fprintf(s.out, "p50=%.4f p90=%.4f p95=%.4f p99=%.4f\n",
		cs.P50, cs.P90, cs.P95, cs.P99)
}

func (s *Session) printQuantile(column, qs string) {
	q, err := strconv.ParseFloat(qs, 64)
	if err != nil || q < 0 || q > 1 {
		fmt.Fprintln(s.out, "quantile must be a number in [0,1]")
		return
	}
	values, ok := s.series.Column(column)
	if !ok {
		fmt.Fprintf(s.out, "no such column %q\n", column)
		return
	}
	// Exact quantile by sorting a copy; series are small enough.
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(q * float64(len(sorted)-1))
	fmt.Fprintf(s.out, "q%.2f(%s) = %.4f\n", q, column, sorted[idx])
}

func (s *Session) printSkipped() {
	if s.series.Skipped == 0 {
		fmt.Fprintln(s.out, "no lines skipped")
		return
	}
	fmt.Fprintf(s.out, "%d lines skipped: %v\n", s.series.Skipped, s.series.SkippedLines)
}
