package evaluation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logsentry/pkg/detection"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		predicted detection.IDSet
		truth     GroundTruth
		want      ConfusionCounts
		wantTPR   float64
		wantFPR   float64
	}{
		{
			name:      "everything flagged",
			predicted: detection.NewIDSet("A", "B"),
			truth:     GroundTruth{"A": Attack, "B": Benign},
			want:      ConfusionCounts{TruePositives: 1, FalsePositives: 1},
			wantTPR:   100,
			wantFPR:   100,
		},
		{
			name:      "nothing flagged",
			predicted: detection.NewIDSet(),
			truth:     GroundTruth{"A": Attack, "B": Benign},
			want:      ConfusionCounts{TrueNegatives: 1, FalseNegatives: 1},
			wantTPR:   0,
			wantFPR:   0,
		},
		{
			name:      "predictions outside ground truth ignored",
			predicted: detection.NewIDSet("A", "Z"),
			truth:     GroundTruth{"A": Attack, "B": Attack, "C": Benign, "D": Benign},
			want:      ConfusionCounts{TruePositives: 1, FalseNegatives: 1, TrueNegatives: 2},
			wantTPR:   50,
			wantFPR:   0,
		},
		{
			name:      "no attacks labelled",
			predicted: detection.NewIDSet("B"),
			truth:     GroundTruth{"B": Benign, "C": Benign},
			want:      ConfusionCounts{FalsePositives: 1, TrueNegatives: 1},
			wantTPR:   0,
			wantFPR:   50,
		},
		{
			name:      "empty ground truth",
			predicted: detection.NewIDSet("A"),
			truth:     GroundTruth{},
			want:      ConfusionCounts{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.predicted, tt.truth)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.truth), got.Total())
			assert.InDelta(t, tt.wantTPR, got.TruePositiveRate(), 1e-9)
			assert.InDelta(t, tt.wantFPR, got.FalsePositiveRate(), 1e-9)
		})
	}
}

func TestMisclassified(t *testing.T) {
	truth := GroundTruth{"a1": Attack, "a2": Attack, "b1": Benign, "b2": Benign, "b3": Benign}
	missed, alarms := Misclassified(detection.NewIDSet("a1", "b3", "b2"), truth)
	assert.Equal(t, []string{"a2"}, missed)
	assert.Equal(t, []string{"b2", "b3"}, alarms)
}

func TestSweep(t *testing.T) {
	scores := detection.ScoreMap{
		"a1": -0.20,
		"a2": -0.04,
		"b1": -0.02,
		"b2": 0.05,
		"b3": 0.10,
	}
	truth := GroundTruth{"a1": Attack, "a2": Attack, "a3": Attack, "b1": Benign, "b2": Benign, "b3": Benign}
	thresholds := []float64{-0.05, 0.0, -0.3, 0.2}

	snapshot := detection.ScoreMap{}
	for k, v := range scores {
		snapshot[k] = v
	}

	points := Sweep(scores, truth, thresholds)
	require.Len(t, points, len(thresholds))

	for i, p := range points {
		assert.Equal(t, thresholds[i], p.Threshold, "order must be preserved")
		assert.Equal(t, len(truth), p.Counts.Total())
		assert.GreaterOrEqual(t, p.Counts.TruePositiveRate(), 0.0)
		assert.LessOrEqual(t, p.Counts.TruePositiveRate(), 100.0)
		assert.GreaterOrEqual(t, p.Counts.FalsePositiveRate(), 0.0)
		assert.LessOrEqual(t, p.Counts.FalsePositiveRate(), 100.0)
	}

	assert.Equal(t, ConfusionCounts{TruePositives: 1, FalseNegatives: 2, TrueNegatives: 3}, points[0].Counts)
	assert.Equal(t, ConfusionCounts{TruePositives: 2, FalseNegatives: 1, FalsePositives: 1, TrueNegatives: 2}, points[1].Counts)
	assert.Equal(t, ConfusionCounts{FalseNegatives: 3, TrueNegatives: 3}, points[2].Counts)
	assert.Equal(t, ConfusionCounts{TruePositives: 2, FalseNegatives: 1, FalsePositives: 3}, points[3].Counts)

	assert.Equal(t, snapshot, scores, "scores must not be mutated")
	assert.Len(t, truth, 6)
}

func TestSweepTieIsNotAnomalous(t *testing.T) {
	points := Sweep(detection.ScoreMap{"a": -0.05}, GroundTruth{"a": Attack}, []float64{-0.05})
	assert.Equal(t, 0, points[0].Counts.TruePositives)
}

func TestDefaultThresholds(t *testing.T) {
	assert.Equal(t, []float64{0, -0.01, -0.02, -0.03, -0.04, -0.05, -0.06, -0.07, -0.08}, DefaultThresholds())
}

func TestBest(t *testing.T) {
	points := []SweepPoint{
		{Threshold: 0, Counts: ConfusionCounts{TruePositives: 3, FalsePositives: 2, TrueNegatives: 8}},
		{Threshold: -0.02, Counts: ConfusionCounts{TruePositives: 3, FalsePositives: 1, TrueNegatives: 9}},
		{Threshold: -0.04, Counts: ConfusionCounts{TruePositives: 3, TrueNegatives: 10}},
		{Threshold: -0.06, Counts: ConfusionCounts{TruePositives: 2, FalseNegatives: 1, TrueNegatives: 10}},
	}

	best, ok := Best(points, 10)
	require.True(t, ok)
	assert.Equal(t, -0.02, best.Threshold)

	best, ok = Best(points, 0)
	require.True(t, ok)
	assert.Equal(t, -0.04, best.Threshold)

	_, ok = Best(points[:1], 5)
	assert.False(t, ok)
}

func TestParseLabel(t *testing.T) {
	l, err := ParseLabel(" attack ")
	require.NoError(t, err)
	assert.Equal(t, Attack, l)
	assert.Equal(t, "ATTACK", l.String())

	l, err = ParseLabel("BENIGN")
	require.NoError(t, err)
	assert.Equal(t, Benign, l)

	_, err = ParseLabel("MAYBE")
	assert.ErrorIs(t, err, ErrUnknownLabel)
}

func TestLoadGroundTruth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ground_truth_labels.csv")
	content := "IP Address,Label\n203.45.12.78,ATTACK\n192.168.1.50,BENIGN\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	truth, err := LoadGroundTruth(path)
	require.NoError(t, err)
	assert.Equal(t, GroundTruth{"203.45.12.78": Attack, "192.168.1.50": Benign}, truth)

	_, err = LoadGroundTruth(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadGroundTruthErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantErr string
	}{
		{name: "missing label column", src: "IP Address,Kind\n1.1.1.1,ATTACK\n", wantErr: "missing column"},
		{name: "bad label", src: "IP Address,Label\n1.1.1.1,EVIL\n", wantErr: "line 2"},
		{name: "short row", src: "IP Address,Label\n1.1.1.1\n", wantErr: "expected 2 columns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadGroundTruth(strings.NewReader(tt.src))
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
