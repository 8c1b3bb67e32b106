package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Sweep outcome label values
const (
	OutcomeOK      = "ok"
	OutcomeMissing = "missing_root"
	OutcomeError   = "error"
)

// Sweep subsystem metrics
var (
	// SweepsTotal counts finished sweeps by outcome
	SweepsTotal *prometheus.CounterVec

	// FilesDeletedTotal tracks total empty files deleted
	FilesDeletedTotal prometheus.Counter

	// SweepDuration tracks how long one sweep takes
	SweepDuration prometheus.Histogram

	// LastSweepTimestamp records Unix timestamp of the last finished sweep
	LastSweepTimestamp prometheus.Gauge

	// LastSweepDeleted records how many files the last sweep deleted
	LastSweepDeleted prometheus.Gauge
)

func initSweepMetrics() {
	SweepsTotal = NewCounterVec(
		"emptysweep_sweeps_total",
		"Total number of sweeps by outcome.",
		[]string{"outcome"},
	)

	FilesDeletedTotal = NewCounter(
		"emptysweep_files_deleted_total",
		"Total number of zero-byte files deleted.",
	)

	SweepDuration = NewDurationHistogram(
		"emptysweep_sweep_duration_seconds",
		"Duration of sweeps in seconds.",
		SweepBuckets,
	)

	LastSweepTimestamp = NewGauge(
		"emptysweep_last_sweep_timestamp",
		"Timestamp of the last finished sweep (Unix epoch seconds).",
	)

	LastSweepDeleted = NewGauge(
		"emptysweep_last_sweep_deleted_files",
		"Number of files deleted by the last sweep.",
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(LastSweepTimestamp)
	prometheus.MustRegister(LastSweepDeleted)
}

// RecordSweep updates the sweep metrics for one finished sweep
func RecordSweep(outcome string, deleted int, duration time.Duration) {
	SweepsTotal.WithLabelValues(outcome).Inc()
	SweepDuration.Observe(duration.Seconds())
	LastSweepTimestamp.Set(float64(time.Now().Unix()))
	LastSweepDeleted.Set(float64(deleted))
	if outcome == OutcomeError {
		ErrorsTotal.Inc()
	}
}
