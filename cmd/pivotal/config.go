package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wizenheimer/pivotal"
)

// Config is the optional YAML configuration shared by every command.
// Flags given on the command line override it.
type Config struct {
	Index IndexConfig `yaml:"index"`
	Log   LogConfig   `yaml:"log"`
}

// IndexConfig describes how the build command constructs an index.
type IndexConfig struct {
	Kind          string `yaml:"kind" validate:"oneof=sequential laesa compact-pivots list-of-clusters poly"`
	Distance      string `yaml:"distance" validate:"oneof=l2 l1 linf angular"`
	Pivots        int    `yaml:"pivots" validate:"gte=1"`
	SearchPivots  int    `yaml:"search_pivots" validate:"gte=1"`
	Clusters      int    `yaml:"clusters" validate:"gte=1"`
	Instances     int    `yaml:"instances" validate:"gte=1,lte=4096"`
	Sequence      string `yaml:"sequence" validate:"oneof=inverted packed"`
	Seed          uint64 `yaml:"seed"`
	Parallelism   int    `yaml:"parallelism" validate:"gte=0"`
	HalfPrecision bool   `yaml:"half_precision"`
	Codec         string `yaml:"codec" validate:"oneof=none gzip zstd"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			Kind:         string(pivotal.CompactPivotsKind),
			Distance:     string(pivotal.Euclidean),
			Pivots:       16,
			SearchPivots: 16,
			Clusters:     32,
			Instances:    3,
			Sequence:     string(pivotal.InvertedSequence),
			Seed:         pivotal.DefaultSeed,
			Parallelism:  0,
			Codec:        pivotal.CodecZstd.String(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var configValidate = validator.New()

// Validate checks every field against its validate tag.
func (c *Config) Validate() error {
	return configValidate.Struct(c)
}

// LoadConfig reads path over the defaults and validates the result.
// An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Logger builds the logger described by the log section.
func (c *LogConfig) Logger() *pivotal.Logger {
	var level slog.Level
	switch c.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if c.Format == "json" {
		return pivotal.NewJSONLogger(level)
	}
	return pivotal.NewTextLogger(level)
}

// SequenceBuilder maps the sequence name to its builder.
func (c *IndexConfig) SequenceBuilder() pivotal.SequenceBuilder {
	if c.Sequence == string(pivotal.PackedSequence) {
		return pivotal.BuildPackedSeq
	}
	return pivotal.BuildInvertedSeq
}

// BuildOptions returns the library options matching the index section.
func (c *IndexConfig) BuildOptions(logger *pivotal.Logger) []pivotal.BuildOption {
	return []pivotal.BuildOption{
		pivotal.WithSeed(c.Seed),
		pivotal.WithSequenceBuilder(c.SequenceBuilder()),
		pivotal.WithLogger(logger),
		pivotal.WithParallelism(c.Parallelism),
	}
}
