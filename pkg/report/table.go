// Package report renders detection results as terminal tables and CSV files.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	logio "github.com/hed1ad/logsentry/pkg/io"
)

// Columns are the headers of client reports.
var Columns = []string{"IP Address", "Total Requests", "Errors", "Anomalous", "Score", "Abuse Score", "Country"}

var _ logio.Writer = (*TableWriter)(nil)

// TableWriter buffers results and renders them as one table on Close.
type TableWriter struct {
	out   io.Writer
	title string
	rows  []logio.Result
}

// NewTableWriter creates a table writer. An empty title prints no banner.
func NewTableWriter(out io.Writer, title string) *TableWriter {
	return &TableWriter{out: out, title: title}
}

// Write buffers one result.
func (w *TableWriter) Write(result logio.Result) error {
	w.rows = append(w.rows, result)
	return nil
}

// WriteAll buffers results.
func (w *TableWriter) WriteAll(results []logio.Result) error {
	w.rows = append(w.rows, results...)
	return nil
}

// Close renders the table.
func (w *TableWriter) Close() error {
	if w.title != "" {
		if _, err := fmt.Fprintln(w.out, TitleStyle.Render(w.title)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w.out, ResultTable(w.rows))
	return err
}

// ResultTable renders results in the given order.
func ResultTable(results []logio.Result) string {
	rows := make([][]string, len(results))
	for i, r := range results {
		rows[i] = resultRow(r)
	}

	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case row >= 0 && row < len(results) && results[row].Anomalous:
				return anomalousStyle
			default:
				return cellStyle
			}
		}).
		Headers(Columns...).
		Rows(rows...).
		String()
}

func resultRow(r logio.Result) []string {
	anomalous := "no"
	if r.Anomalous {
		anomalous = "yes"
	}
	country := r.Country
	if country == "" {
		country = "N/A"
	}
	return []string{
		r.ID,
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Errors),
		anomalous,
		strconv.FormatFloat(r.Score, 'f', 4, 64),
		strconv.Itoa(r.AbuseScore),
		country,
	}
}

// SortByErrors orders results by errors, then total requests, both
// descending, then by address.
func SortByErrors(results []logio.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Errors != b.Errors {
			return a.Errors > b.Errors
		}
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.ID < b.ID
	})
}

// SortByScore orders results most anomalous first, then by address.
func SortByScore(results []logio.Result) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score < results[j].Score
		}
		return results[i].ID < results[j].ID
	})
}
