package instrument

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock advances by step on every call.
func stepClock(step time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	return func() time.Time {
		now := t
		t = t.Add(step)
		return now
	}
}

func TestMeasure(t *testing.T) {
	r := NewRecorder()
	r.now = stepClock(2 * time.Second)

	called := false
	m, err := r.Measure(1000, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)

	assert.NotEqual(t, uuid.Nil, m.RunID)
	assert.Equal(t, 1000, m.Entries)
	assert.Equal(t, 2*time.Second, m.Elapsed)
	assert.InDelta(t, 500.0, m.Throughput, 1e-9)

	assert.InDelta(t, 1000.0, testutil.ToFloat64(r.entries), 1e-9)
	assert.InDelta(t, 500.0, testutil.ToFloat64(r.throughput), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("ok")), 1e-9)
	assert.Equal(t, 1, testutil.CollectAndCount(r.duration))
}

func TestMeasureError(t *testing.T) {
	r := NewRecorder()
	r.now = stepClock(time.Second)
	boom := errors.New("boom")

	m, err := r.Measure(10, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, time.Second, m.Elapsed)

	assert.InDelta(t, 0.0, testutil.ToFloat64(r.entries), 1e-9)
	assert.InDelta(t, 0.0, testutil.ToFloat64(r.throughput), 1e-9)
	assert.InDelta(t, 1.0, testutil.ToFloat64(r.runs.WithLabelValues("error")), 1e-9)
}

func TestMeasureUniqueRunIDs(t *testing.T) {
	r := NewRecorder()
	a, err := r.Measure(1, func() error { return nil })
	require.NoError(t, err)
	b, err := r.Measure(1, func() error { return nil })
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestThroughput(t *testing.T) {
	tests := []struct {
		name    string
		entries int
		elapsed time.Duration
		want    float64
	}{
		{"zero elapsed", 100, 0, 0},
		{"negative elapsed", 100, -time.Second, 0},
		{"half second", 100, 500 * time.Millisecond, 200},
		{"no entries", 0, time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Throughput(tt.entries, tt.elapsed), 1e-9)
		})
	}
}

func TestRegistryGathers(t *testing.T) {
	r := NewRecorder()
	_, err := r.Measure(5, func() error { return nil })
	require.NoError(t, err)

	families, err := r.Registry().Gather()
	require.NoError(t, err)

	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "logsentry_detection_duration_seconds")
	assert.Contains(t, names, "logsentry_entries_processed_total")
	assert.Contains(t, names, "logsentry_throughput_entries_per_second")
	assert.Contains(t, names, "logsentry_detection_runs_total")
}
