package report

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logsentry/pkg/evaluation"
	logio "github.com/hed1ad/logsentry/pkg/io"
)

func sampleResults() []logio.Result {
	return []logio.Result{
		{ID: "127.0.0.1", Total: 2, Errors: 0, Score: 0.0712, Country: "US"},
		{ID: "192.168.1.1", Total: 2, Errors: 2, Score: 0.0100},
		{ID: "203.45.12.78", Total: 1000, Errors: 950, Anomalous: true, Score: -0.1361, AbuseScore: 100, Country: "RU"},
	}
}

func TestTableWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewTableWriter(&buf, "ATTACKER REPORT")
	require.NoError(t, w.Write(sampleResults()[0]))
	require.NoError(t, w.WriteAll(sampleResults()[1:]))
	require.NoError(t, w.Close())

	out := buf.String()
	assert.Contains(t, out, "ATTACKER REPORT")
	for _, col := range Columns {
		assert.Contains(t, out, col)
	}
	assert.Contains(t, out, "203.45.12.78")
	assert.Contains(t, out, "-0.1361")
	assert.Contains(t, out, "N/A")
	assert.Less(t, strings.Index(out, "127.0.0.1"), strings.Index(out, "203.45.12.78"), "input order kept")
}

func TestResultTableEmpty(t *testing.T) {
	out := ResultTable(nil)
	assert.Contains(t, out, "IP Address")
}

func TestSortByErrors(t *testing.T) {
	results := sampleResults()
	results = append(results, logio.Result{ID: "10.0.0.9", Total: 5, Errors: 2})
	SortByErrors(results)

	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"203.45.12.78", "10.0.0.9", "192.168.1.1", "127.0.0.1"}, ids)
}

func TestSortByScore(t *testing.T) {
	results := sampleResults()
	SortByScore(results)
	assert.Equal(t, "203.45.12.78", results[0].ID)
	assert.Equal(t, "127.0.0.1", results[2].ID)
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	w, err := CreateCSV(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(sampleResults()))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, Columns, rows[0])
	assert.Equal(t, []string{"203.45.12.78", "1000", "950", "yes", "-0.1361", "100", "RU"}, rows[3])
	assert.Equal(t, "N/A", rows[2][6])
}

func TestCreateCSVBadPath(t *testing.T) {
	_, err := CreateCSV(filepath.Join(t.TempDir(), "missing", "report.csv"))
	assert.Error(t, err)
}

func TestSweepTable(t *testing.T) {
	points := []evaluation.SweepPoint{
		{Threshold: 0, Counts: evaluation.ConfusionCounts{TruePositives: 3, FalsePositives: 4, TrueNegatives: 46}},
		{Threshold: -0.05, Counts: evaluation.ConfusionCounts{TruePositives: 3, TrueNegatives: 50}},
	}
	out := SweepTable(points, 1)
	assert.Contains(t, out, "Threshold")
	assert.Contains(t, out, "-0.05")
	assert.Contains(t, out, "100.00%")
	assert.Contains(t, out, "8.00%")
}

func TestConfusionTable(t *testing.T) {
	out := ConfusionTable(evaluation.ConfusionCounts{TruePositives: 1, FalsePositives: 1})
	assert.Contains(t, out, "True positive rate")
	assert.Contains(t, out, "100.00%")
}
