// Package config handles configuration loading and validation for logsentry.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/hed1ad/logsentry/pkg/detection"
	"github.com/hed1ad/logsentry/pkg/detectors"
	"github.com/hed1ad/logsentry/pkg/evaluation"
	"github.com/hed1ad/logsentry/pkg/logging"
)

// Environment overrides.
const (
	EnvSeed      = "LOGSENTRY_SEED"
	EnvThreshold = "LOGSENTRY_THRESHOLD"
	EnvLogLevel  = "LOGSENTRY_LOG_LEVEL"
)

// Config is the complete logsentry configuration.
type Config struct {
	Detector   DetectorConfig   `toml:"detector" yaml:"detector" json:"detector"`
	Detection  DetectionConfig  `toml:"detection" yaml:"detection" json:"detection"`
	Evaluation EvaluationConfig `toml:"evaluation" yaml:"evaluation" json:"evaluation"`
	Parser     ParserConfig     `toml:"parser" yaml:"parser" json:"parser"`
	Reputation ReputationConfig `toml:"reputation" yaml:"reputation" json:"reputation"`
	Logging    LoggingConfig    `toml:"logging" yaml:"logging" json:"logging"`
}

// DetectorConfig controls the isolation forest.
type DetectorConfig struct {
	Trees      int `toml:"trees" yaml:"trees" json:"trees"`
	SampleSize int `toml:"sample_size" yaml:"sample_size" json:"sample_size"`
	// Seed nil makes every run different.
	Seed        *int64 `toml:"seed" yaml:"seed" json:"seed"`
	Workers     int    `toml:"workers" yaml:"workers" json:"workers"`
	Replacement bool   `toml:"replacement" yaml:"replacement" json:"replacement"`
}

// DetectionConfig controls classification.
type DetectionConfig struct {
	Threshold float64 `toml:"threshold" yaml:"threshold" json:"threshold"`
}

// EvaluationConfig controls threshold tuning.
type EvaluationConfig struct {
	Thresholds []float64 `toml:"thresholds" yaml:"thresholds" json:"thresholds"`
	// MaxFPR is the false positive rate ceiling, in percent, for the recommended threshold.
	MaxFPR float64 `toml:"max_fpr" yaml:"max_fpr" json:"max_fpr"`
}

// ParserConfig controls log ingestion.
type ParserConfig struct {
	TrackPaths bool `toml:"track_paths" yaml:"track_paths" json:"track_paths"`
}

// ReputationConfig controls enrichment.
type ReputationConfig struct {
	DBPath            string  `toml:"db_path" yaml:"db_path" json:"db_path"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
}

// LoggingConfig controls the global logger.
type LoggingConfig struct {
	Level  string `toml:"level" yaml:"level" json:"level"`
	Format string `toml:"format" yaml:"format" json:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	d := detectors.DefaultConfig()
	return &Config{
		Detector: DetectorConfig{
			Trees:      d.Trees,
			SampleSize: d.SampleSize,
			Seed:       d.Seed,
		},
		Detection: DetectionConfig{
			Threshold: detection.DefaultThreshold,
		},
		Evaluation: EvaluationConfig{
			Thresholds: evaluation.DefaultThresholds(),
			MaxFPR:     5,
		},
		Reputation: ReputationConfig{
			DBPath:            "reputation.db",
			RequestsPerSecond: 1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: logging.FormatConsole,
		},
	}
}

// Load reads configuration from path, decoding by extension. A missing
// file yields the defaults. Environment overrides are applied last.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	}
	return nil
}

// ApplyEnvOverrides applies LOGSENTRY_* environment variables.
// LOGSENTRY_SEED=random clears the seed.
func (c *Config) ApplyEnvOverrides() error {
	if v := os.Getenv(EnvSeed); v != "" {
		if strings.EqualFold(v, "random") {
			c.Detector.Seed = nil
		} else {
			seed, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("%s: %w", EnvSeed, err)
			}
			c.Detector.Seed = &seed
		}
	}
	if v := os.Getenv(EnvThreshold); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvThreshold, err)
		}
		c.Detection.Threshold = threshold
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// DetectorOptions converts the detector section for the detection engine.
func (c *Config) DetectorOptions() detectors.Config {
	return detectors.Config{
		Trees:       c.Detector.Trees,
		SampleSize:  c.Detector.SampleSize,
		Seed:        c.Detector.Seed,
		Workers:     c.Detector.Workers,
		Replacement: c.Detector.Replacement,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}
