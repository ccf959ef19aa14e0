package evaluation

import "github.com/hed1ad/logsentry/pkg/detection"

// SweepPoint is the evaluation of one threshold.
type SweepPoint struct {
	Threshold float64
	Counts    ConfusionCounts
}

// DefaultThresholds returns the tuning grid 0.0, -0.01, ..., -0.08.
func DefaultThresholds() []float64 {
	thresholds := make([]float64, 9)
	for i := range thresholds {
		thresholds[i] = float64(-i) / 100
	}
	return thresholds
}

// Sweep evaluates every threshold against the same scores, in input order.
func Sweep(scores detection.ScoreMap, truth GroundTruth, thresholds []float64) []SweepPoint {
	points := make([]SweepPoint, len(thresholds))
	for i, threshold := range thresholds {
		points[i] = SweepPoint{
			Threshold: threshold,
			Counts:    Evaluate(detection.Classify(scores, threshold), truth),
		}
	}
	return points
}

// Best returns the point with the highest true positive rate among those
// whose false positive rate does not exceed maxFPR. Ties keep the earlier point.
func Best(points []SweepPoint, maxFPR float64) (SweepPoint, bool) {
	var best SweepPoint
	found := false
	for _, p := range points {
		if p.Counts.FalsePositiveRate() > maxFPR {
			continue
		}
		if !found || p.Counts.TruePositiveRate() > best.Counts.TruePositiveRate() {
			best = p
			found = true
		}
	}
	return best, found
}
