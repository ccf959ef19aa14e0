// Package detectors provides unsupervised anomaly detection algorithms.
package detectors

import "errors"

var (
	// ErrNotTrained is returned when scoring is attempted before Fit.
	ErrNotTrained = errors.New("model not trained")

	// ErrDimensionMismatch is returned when rows do not share one feature count.
	ErrDimensionMismatch = errors.New("feature dimension mismatch")

	// ErrNonFinite is returned for NaN or infinite feature values.
	ErrNonFinite = errors.New("non-finite feature value")
)

// Detector is the common interface for all anomaly detection algorithms.
type Detector interface {
	// Fit trains the detector on historical data.
	// data is a 2D slice where each row is a sample and each column is a feature.
	Fit(data [][]float64) error

	// Score returns one decision score per sample, in input order.
	// Scores below zero indicate anomalies; lower is more anomalous.
	Score(data [][]float64) ([]float64, error)

	// Save serializes the trained model to bytes.
	Save() ([]byte, error)

	// Load deserializes a trained model from bytes.
	Load(data []byte) error
}

// Config holds common configuration for detectors.
type Config struct {
	// Trees is the ensemble size.
	Trees int
	// SampleSize is the sub-sample drawn for each ensemble member.
	SampleSize int
	// Seed makes fitting reproducible. Nil means non-reproducible.
	Seed *int64
	// Workers bounds parallelism; zero means GOMAXPROCS.
	Workers int
	// Replacement draws sub-samples with replacement.
	Replacement bool
}

// DefaultConfig returns sensible defaults for detector configuration.
func DefaultConfig() Config {
	seed := int64(42)
	return Config{
		Trees:      100,
		SampleSize: 256,
		Seed:       &seed,
	}
}
