// Package detection runs the client anomaly pipeline: feature extraction,
// model fitting, scoring and threshold classification.
package detection

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/hed1ad/logsentry/pkg/detectors"
	"github.com/hed1ad/logsentry/pkg/detectors/iforest"
	"github.com/hed1ad/logsentry/pkg/features"
)

// DefaultThreshold is the decision score below which clients are reported.
const DefaultThreshold = -0.05

// ScoreMap maps a client identifier to its decision score.
type ScoreMap map[string]float64

// IDSet is a set of client identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from identifiers.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Len returns the number of identifiers.
func (s IDSet) Len() int {
	return len(s)
}

// Sorted returns the identifiers in lexical order.
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Classify returns the identifiers whose score is strictly below threshold.
// A score equal to the threshold is never anomalous.
func Classify(scores ScoreMap, threshold float64) IDSet {
	flagged := make(IDSet)
	for id, score := range scores {
		if score < threshold {
			flagged[id] = struct{}{}
		}
	}
	return flagged
}

// Factory creates an untrained detector for one detection pass.
type Factory func() detectors.Detector

// Engine fits a fresh detector on every data set it is given.
type Engine struct {
	factory Factory
}

// NewEngine returns an engine backed by isolation forests built from cfg.
func NewEngine(cfg detectors.Config) *Engine {
	return NewEngineWithFactory(func() detectors.Detector {
		return iforest.New(iforest.FromConfig(cfg)...)
	})
}

// NewEngineWithFactory returns an engine using a custom detector factory.
func NewEngineWithFactory(factory Factory) *Engine {
	return &Engine{factory: factory}
}

// Result is the outcome of one detection pass.
type Result struct {
	Records []features.ClientRecord
	Scores  ScoreMap
	Model   detectors.Detector
}

// Classify applies a threshold to the pass's scores.
func (r *Result) Classify(threshold float64) IDSet {
	return Classify(r.Scores, threshold)
}

// Record returns the feature record for id.
func (r *Result) Record(id string) (features.ClientRecord, bool) {
	i := sort.Search(len(r.Records), func(i int) bool { return r.Records[i].ID >= id })
	if i < len(r.Records) && r.Records[i].ID == id {
		return r.Records[i], true
	}
	return features.ClientRecord{}, false
}

// Detect extracts features from counters, fits a detector on them and
// scores every client. Empty input yields an empty result.
func (e *Engine) Detect(counters map[string]features.Counters) (*Result, error) {
	records, err := features.Extract(counters)
	if err != nil {
		return nil, fmt.Errorf("extract features: %w", err)
	}

	data := features.Matrix(records)
	model := e.factory()
	if err := model.Fit(data); err != nil {
		return nil, fmt.Errorf("fit model: %w", err)
	}

	values, err := model.Score(data)
	if err != nil {
		return nil, fmt.Errorf("score clients: %w", err)
	}

	scores := make(ScoreMap, len(records))
	for i, r := range records {
		scores[r.ID] = values[i]
	}

	log.Debug().Int("clients", len(records)).Msg("detection pass complete")

	return &Result{
		Records: records,
		Scores:  scores,
		Model:   model,
	}, nil
}
