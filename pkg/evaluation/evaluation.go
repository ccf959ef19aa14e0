// Package evaluation measures detection accuracy against labelled ground
// truth and sweeps thresholds to expose the TPR/FPR trade-off.
package evaluation

import (
	"github.com/hed1ad/logsentry/pkg/detection"
)

// ConfusionCounts holds the fundamental counts for binary classification.
type ConfusionCounts struct {
	TruePositives  int `json:"true_positives"`  // attacks flagged
	FalsePositives int `json:"false_positives"` // benign clients flagged
	TrueNegatives  int `json:"true_negatives"`  // benign clients ignored
	FalseNegatives int `json:"false_negatives"` // attacks missed
}

// Total returns the number of evaluated clients.
func (c ConfusionCounts) Total() int {
	return c.TruePositives + c.FalsePositives + c.TrueNegatives + c.FalseNegatives
}

// Attacks returns the number of clients labelled as attacks.
func (c ConfusionCounts) Attacks() int {
	return c.TruePositives + c.FalseNegatives
}

// Benign returns the number of clients labelled as benign.
func (c ConfusionCounts) Benign() int {
	return c.FalsePositives + c.TrueNegatives
}

// TruePositiveRate is TP/(TP+FN) as a percentage, 0 when there are no attacks.
func (c ConfusionCounts) TruePositiveRate() float64 {
	return percent(c.TruePositives, c.Attacks())
}

// FalsePositiveRate is FP/(FP+TN) as a percentage, 0 when there are no benign clients.
func (c ConfusionCounts) FalsePositiveRate() float64 {
	return percent(c.FalsePositives, c.Benign())
}

func percent(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d) * 100
}

// Evaluate compares predictions with ground truth. Clients present in the
// ground truth but not predicted count as not anomalous.
func Evaluate(predicted detection.IDSet, truth GroundTruth) ConfusionCounts {
	var c ConfusionCounts
	for id, label := range truth {
		flagged := predicted.Has(id)
		switch {
		case label == Attack && flagged:
			c.TruePositives++
		case label == Attack:
			c.FalseNegatives++
		case flagged:
			c.FalsePositives++
		default:
			c.TrueNegatives++
		}
	}
	return c
}

// Misclassified lists missed attacks and false alarms, each sorted.
func Misclassified(predicted detection.IDSet, truth GroundTruth) (missed, falseAlarms []string) {
	missedSet := make(detection.IDSet)
	alarmSet := make(detection.IDSet)
	for id, label := range truth {
		flagged := predicted.Has(id)
		if label == Attack && !flagged {
			missedSet[id] = struct{}{}
		}
		if label == Benign && flagged {
			alarmSet[id] = struct{}{}
		}
	}
	return missedSet.Sorted(), alarmSet.Sorted()
}
