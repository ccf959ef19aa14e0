package report

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hed1ad/logsentry/pkg/evaluation"
)

// SweepTable renders a threshold sweep. The row at index recommended is
// highlighted; pass -1 for none.
func SweepTable(points []evaluation.SweepPoint, recommended int) string {
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{
			strconv.FormatFloat(p.Threshold, 'f', 2, 64),
			strconv.Itoa(p.Counts.TruePositives),
			strconv.Itoa(p.Counts.FalsePositives),
			strconv.Itoa(p.Counts.TrueNegatives),
			strconv.Itoa(p.Counts.FalseNegatives),
			percent(p.Counts.TruePositiveRate()),
			percent(p.Counts.FalsePositiveRate()),
		}
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row == recommended:
				return recommendedStyle
			default:
				return cellStyle
			}
		}).
		Headers("Threshold", "TP", "FP", "TN", "FN", "TPR", "FPR").
		Rows(rows...).
		String()
}

// ConfusionTable renders the counts and rates of one evaluation.
func ConfusionTable(c evaluation.ConfusionCounts) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers("Metric", "Value").
		Row("True positives", strconv.Itoa(c.TruePositives)).
		Row("False positives", strconv.Itoa(c.FalsePositives)).
		Row("True negatives", strconv.Itoa(c.TrueNegatives)).
		Row("False negatives", strconv.Itoa(c.FalseNegatives)).
		Row("True positive rate", percent(c.TruePositiveRate())).
		Row("False positive rate", percent(c.FalsePositiveRate())).
		String()
}

func percent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
