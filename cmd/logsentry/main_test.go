package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hed1ad/logsentry/pkg/detectors/iforest"
	"github.com/hed1ad/logsentry/pkg/enrichment"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--log-format", "json", "--log-level", "warn"))
	err := cmd.Execute()
	return out.String(), err
}

type dataset struct {
	dir, log, truth, capture string
}

func generateDataset(t *testing.T) dataset {
	t.Helper()
	dir := t.TempDir()
	d := dataset{
		dir:     dir,
		log:     filepath.Join(dir, "test_access.log"),
		truth:   filepath.Join(dir, "ground_truth_labels.csv"),
		capture: filepath.Join(dir, "traffic.pcap"),
	}
	out, err := run(t, "generate", "--log", d.log, "--truth", d.truth, "--pcap", d.capture, "--seed", "42", "--normal-users", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "Generated")
	return d
}

func TestGenerate(t *testing.T) {
	d := generateDataset(t)
	for _, p := range []string{d.log, d.truth, d.capture} {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestReport(t *testing.T) {
	d := generateDataset(t)
	csvPath := filepath.Join(d.dir, "report.csv")

	out, err := run(t, "report", "-f", d.log, "-o", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ATTACKER REPORT")
	assert.Contains(t, out, "203.45.12.78")

	data, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "IP Address,Total Requests,Errors,Anomalous,Score,Abuse Score,Country", lines[0])
	assert.Len(t, lines, 1+3+2+8)
}

func TestReportWithReputationCache(t *testing.T) {
	d := generateDataset(t)
	dbPath := filepath.Join(d.dir, "reputation.db")

	cache, err := enrichment.OpenCache(dbPath)
	require.NoError(t, err)
	require.NoError(t, cache.Put(context.Background(), enrichment.Reputation{IP: "203.45.12.78", AbuseScore: 100, Country: "RU"}))
	require.NoError(t, cache.Close())

	out, err := run(t, "report", "-f", d.log, "--reputation-db", dbPath, "--score")
	require.NoError(t, err)
	assert.Contains(t, out, "RU")
	assert.Contains(t, out, "N/A")
}

func TestDetect(t *testing.T) {
	d := generateDataset(t)
	modelPath := filepath.Join(d.dir, "model.gob")

	out, err := run(t, "detect", "-f", d.log, "--save-model", modelPath, "--threshold", "0.5")
	require.NoError(t, err)
	// every score is below 0.5
	assert.Contains(t, out, "203.45.12.78")
	assert.Contains(t, out, "192.168.1.50")

	data, err := os.ReadFile(modelPath)
	require.NoError(t, err)
	model := iforest.New()
	require.NoError(t, model.Load(data))
	assert.Equal(t, 100, model.NumTrees())
}

func TestDetectFromCapture(t *testing.T) {
	d := generateDataset(t)
	out, err := run(t, "detect", "--pcap", d.capture, "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "185.199.108.15")
}

func TestDetectRequiresInput(t *testing.T) {
	_, err := run(t, "detect")
	assert.ErrorIs(t, err, errNoInput)
}

func TestEvaluate(t *testing.T) {
	d := generateDataset(t)
	metricsPath := filepath.Join(d.dir, "metrics.prom")

	out, err := run(t, "evaluate", "-f", d.log, "--truth", d.truth, "--metrics-file", metricsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "PROCESSING PERFORMANCE")
	assert.Contains(t, out, "Throughput")
	assert.Contains(t, out, "True positive rate")
	assert.Contains(t, out, "MISSED ATTACKS")
	assert.Contains(t, out, "FALSE ALARMS")

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "logsentry_entries_processed_total")
}

func TestTune(t *testing.T) {
	d := generateDataset(t)
	out, err := run(t, "tune", "-f", d.log, "--truth", d.truth, "--thresholds", "0,-0.05,-0.5", "--max-fpr", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "THRESHOLD TUNING RESULTS")
	assert.Contains(t, out, "-0.50")
	assert.Contains(t, out, "Recommended threshold")
}

func TestConfigFile(t *testing.T) {
	d := generateDataset(t)
	cfgPath := filepath.Join(d.dir, "logsentry.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("detector:\n  trees: 0\n"), 0o600))

	_, err := run(t, "detect", "-f", d.log, "--config", cfgPath)
	assert.ErrorContains(t, err, "detector.trees")
}

func TestInvalidLogLevel(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"detect", "--log-level", "shout"})
	assert.Error(t, cmd.Execute())
}
