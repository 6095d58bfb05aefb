// Package config loads the snapmetrics analysis configuration.
//
// Every knob the original analysis hardcoded per script is explicit here:
// the format variant (or auto-detection), the time rescaling policy and its
// parameters, the reference-total policy, batch parallelism, and export
// options. There are no implicit fallback constants.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtxerr/snapmetrics/internal/derive"
	"github.com/xtxerr/snapmetrics/internal/errors"
	"github.com/xtxerr/snapmetrics/internal/snapshot"
)

// Config is the complete analysis configuration.
type Config struct {
	// Input configures snapshot parsing.
	Input InputConfig `yaml:"input"`

	// Rescale configures time-axis conversion to years.
	Rescale RescaleConfig `yaml:"rescale"`

	// Reference configures the percentage denominator.
	Reference ReferenceConfig `yaml:"reference"`

	// Batch configures parallel folder processing.
	Batch BatchConfig `yaml:"batch"`

	// Export configures derived-series output.
	Export ExportConfig `yaml:"export"`

	// Query configures the DuckDB query service over exported files.
	Query QueryConfig `yaml:"query"`

	// Summary configures per-column distribution summaries.
	Summary SummaryConfig `yaml:"summary"`
}

// InputConfig configures snapshot parsing.
type InputConfig struct {
	// Variant forces a format variant: pairwise, triplets, copysets,
	// copysets-3, wide.
	// Empty or "auto" detects from the file.
	Variant string `yaml:"variant"`
}

// RescaleConfig configures time-axis conversion.
type RescaleConfig struct {
	// Policy is one of: fixed-rate, header-relative, max-normalized.
	Policy string `yaml:"policy"`

	// AccessesPerDay is required for the fixed-rate policy. It may also be
	// extracted from an accessRate_N filename token, which wins over this
	// value when present.
	AccessesPerDay float64 `yaml:"accesses_per_day"`

	// MaxYears is the horizon for the relative policies. Zero means 10.
	MaxYears float64 `yaml:"max_years"`
}

// ReferenceConfig configures the percentage denominator.
type ReferenceConfig struct {
	// Source is one of: auto (first positive total-objects value),
	// constant, header-tubes.
	Source string `yaml:"source"`

	// Value is the denominator for the constant source.
	Value float64 `yaml:"value"`
}

// BatchConfig configures parallel folder processing.
type BatchConfig struct {
	// Workers is the number of files analyzed concurrently.
	Workers int `yaml:"workers"`

	// Pattern is the glob matched against file names in the input folder.
	Pattern string `yaml:"pattern"`
}

// ExportConfig configures derived-series output.
type ExportConfig struct {
	// Dir is the output directory.
	Dir string `yaml:"dir"`

	// CSV enables derived CSV output.
	CSV bool `yaml:"csv"`

	// Parquet enables derived parquet output.
	Parquet bool `yaml:"parquet"`

	// Compression configures parquet compression.
	Compression CompressionConfig `yaml:"compression"`
}

// CompressionConfig configures parquet compression.
type CompressionConfig struct {
	// Algorithm is one of: snappy, zstd, lz4, gzip, none.
	Algorithm string `yaml:"algorithm"`

	// Level is the compression level (for zstd: 1-22).
	Level int `yaml:"level"`
}

// QueryConfig configures the DuckDB query service.
type QueryConfig struct {
	// MemoryLimit is the DuckDB memory limit.
	MemoryLimit string `yaml:"memory_limit"`

	// Timeout is the query timeout.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRows is the maximum number of rows returned.
	MaxRows int `yaml:"max_rows"`
}

// SummaryConfig configures distribution summaries.
type SummaryConfig struct {
	// Enabled turns per-column summaries on.
	Enabled bool `yaml:"enabled"`

	// Accuracy is the DDSketch relative accuracy (0.01 = 1% error).
	Accuracy float64 `yaml:"accuracy"`
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// DefaultConfig returns a configuration with sensible defaults. The rescale
// policy defaults to header-relative because most observed files carry a max
// simulation time in the preamble; files that do not must select another
// policy explicitly.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Variant: "auto",
		},
		Rescale: RescaleConfig{
			Policy:   "header-relative",
			MaxYears: derive.DefaultMaxYears,
		},
		Reference: ReferenceConfig{
			Source: "auto",
		},
		Batch: BatchConfig{
			Workers: 4,
			Pattern: "*.txt",
		},
		Export: ExportConfig{
			Dir: "output",
			CSV: true,
			Compression: CompressionConfig{
				Algorithm: "zstd",
				Level:     3,
			},
		},
		Query: QueryConfig{
			MemoryLimit: "2GB",
			Timeout:     30 * time.Second,
			MaxRows:     1000000,
		},
		Summary: SummaryConfig{
			Enabled:  true,
			Accuracy: derive.DefaultSketchAccuracy,
		},
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	v := errors.NewValidationErrors()

	if _, err := snapshot.ParseVariant(c.Input.Variant); err != nil {
		v.AddField("input.variant", fmt.Sprintf("unknown variant %q", c.Input.Variant))
	}

	kind, err := derive.ParseRescaleKind(c.Rescale.Policy)
	if err != nil {
		v.AddField("rescale.policy", fmt.Sprintf("unknown policy %q", c.Rescale.Policy))
	}
	if kind == derive.RescaleFixedRate && c.Rescale.AccessesPerDay <= 0 {
		v.AddField("rescale.accesses_per_day", "must be positive for the fixed-rate policy")
	}
	if c.Rescale.MaxYears < 0 {
		v.AddField("rescale.max_years", "must not be negative")
	}

	switch c.Reference.Source {
	case "", "auto", "header-tubes":
	case "constant":
		if c.Reference.Value <= 0 {
			v.AddField("reference.value", "must be positive for the constant source")
		}
	default:
		v.AddField("reference.source", fmt.Sprintf("unknown source %q", c.Reference.Source))
	}

	if c.Batch.Workers <= 0 {
		v.AddField("batch.workers", "must be positive")
	}

	if !c.Export.CSV && !c.Export.Parquet {
		v.AddField("export", "at least one of csv or parquet must be enabled")
	}

	if c.Query.MaxRows <= 0 {
		v.AddField("query.max_rows", "must be positive")
	}

	if c.Summary.Enabled && (c.Summary.Accuracy <= 0 || c.Summary.Accuracy >= 1) {
		v.AddField("summary.accuracy", "must be in (0, 1)")
	}

	return v.Err()
}

// Variant returns the parsed forced variant, VariantUnknown for auto.
func (c *Config) Variant() snapshot.Variant {
	v, _ := snapshot.ParseVariant(c.Input.Variant)
	return v
}

// Rescaler builds the derive.Rescaler this configuration describes.
// accessesPerDay overrides the configured rate when positive (filename
// extraction wins over config).
func (c *Config) Rescaler(accessesPerDay float64) derive.Rescaler {
	kind, _ := derive.ParseRescaleKind(c.Rescale.Policy)
	rate := c.Rescale.AccessesPerDay
	if accessesPerDay > 0 {
		rate = accessesPerDay
	}
	return derive.Rescaler{
		Kind:           kind,
		AccessesPerDay: rate,
		MaxYears:       c.Rescale.MaxYears,
	}
}

// ReferenceOptions returns the derive reference policy this configuration
// describes.
func (c *Config) ReferenceOptions() (derive.ReferenceSource, float64) {
	switch c.Reference.Source {
	case "constant":
		return derive.ReferenceConstant, c.Reference.Value
	case "header-tubes":
		return derive.ReferenceHeaderTubes, 0
	default:
		return derive.ReferenceAuto, 0
	}
}
