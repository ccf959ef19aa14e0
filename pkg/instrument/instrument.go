// Package instrument measures the wall-clock cost and throughput of
// detection passes and exposes them as Prometheus collectors.
package instrument

import (
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

// Measurement describes one timed run.
type Measurement struct {
	RunID      uuid.UUID
	Entries    int
	Elapsed    time.Duration
	Throughput float64 // entries per second
}

// Recorder times detection runs and records them on its own registry.
type Recorder struct {
	registry *prometheus.Registry
	now      func() time.Time

	duration   prometheus.Histogram
	entries    prometheus.Counter
	throughput prometheus.Gauge
	runs       *prometheus.CounterVec
}

// NewRecorder creates a recorder with a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		now:      time.Now,
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logsentry_detection_duration_seconds",
			Help:    "Wall-clock duration of detection passes",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "logsentry_entries_processed_total",
			Help: "Total number of log entries processed by detection passes",
		}),
		throughput: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "logsentry_throughput_entries_per_second",
			Help: "Throughput of the most recent detection pass",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logsentry_detection_runs_total",
			Help: "Detection passes by outcome",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.duration, r.entries, r.throughput, r.runs)
	return r
}

// Registry exposes the collectors for export.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Measure runs fn and records its cost against entries processed.
// A failed run is timed and counted but does not update throughput.
func (r *Recorder) Measure(entries int, fn func() error) (Measurement, error) {
	m := Measurement{RunID: uuid.New(), Entries: entries}

	start := r.now()
	err := fn()
	m.Elapsed = r.now().Sub(start)
	m.Throughput = Throughput(entries, m.Elapsed)

	r.duration.Observe(m.Elapsed.Seconds())
	if err != nil {
		r.runs.WithLabelValues("error").Inc()
		return m, err
	}

	r.runs.WithLabelValues("ok").Inc()
	r.entries.Add(float64(entries))
	r.throughput.Set(m.Throughput)

	log.Debug().
		Str("run_id", m.RunID.String()).
		Int("entries", entries).
		Dur("elapsed", m.Elapsed).
		Float64("throughput", m.Throughput).
		Msg("detection pass measured")

	return m, nil
}

// Throughput returns entries per second, or 0 when no time elapsed.
func Throughput(entries int, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(entries) / elapsed.Seconds()
}
