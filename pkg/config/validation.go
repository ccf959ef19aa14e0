package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hed1ad/logsentry/pkg/enrichment"
	"github.com/hed1ad/logsentry/pkg/logging"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Detector.Trees <= 0 {
		add("detector.trees", "must be positive, got %d", c.Detector.Trees)
	}
	if c.Detector.SampleSize < 2 {
		add("detector.sample_size", "must be at least 2, got %d", c.Detector.SampleSize)
	}
	if c.Detector.Workers < 0 {
		add("detector.workers", "cannot be negative, got %d", c.Detector.Workers)
	}

	if !finite(c.Detection.Threshold) {
		add("detection.threshold", "must be finite")
	}

	if len(c.Evaluation.Thresholds) == 0 {
		add("evaluation.thresholds", "cannot be empty")
	}
	for i, th := range c.Evaluation.Thresholds {
		if !finite(th) {
			add(fmt.Sprintf("evaluation.thresholds[%d]", i), "must be finite")
		}
	}
	if c.Evaluation.MaxFPR < 0 || c.Evaluation.MaxFPR > 100 {
		add("evaluation.max_fpr", "must be within 0..100, got %g", c.Evaluation.MaxFPR)
	}

	rps := c.Reputation.RequestsPerSecond
	if rps <= 0 || rps > enrichment.MaxRequestsPerSecond {
		add("reputation.requests_per_second", "must be within (0, %g], got %g", enrichment.MaxRequestsPerSecond, rps)
	}

	if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
		add("logging.level", "unknown level %q", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", logging.FormatConsole, logging.FormatJSON:
	default:
		add("logging.format", "must be %q or %q, got %q", logging.FormatConsole, logging.FormatJSON, c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
