package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Build pipeline metrics
var (
	// BuildsTotal counts build passes by status (ok, failed)
	BuildsTotal *prometheus.CounterVec

	// BuildDuration tracks build command durations
	BuildDuration prometheus.Histogram

	// RebuildTriggersTotal counts watch-mode rebuild triggers by source (fs, http)
	RebuildTriggersTotal *prometheus.CounterVec

	// ErrorsTotal tracks total errors encountered by the runner
	ErrorsTotal prometheus.Counter
)

func initBuildMetrics() {
	BuildsTotal = NewCounterVec(
		"emptysweep_builds_total",
		"Total number of build passes by status.",
		[]string{"status"},
	)

	BuildDuration = NewDurationHistogram(
		"emptysweep_build_duration_seconds",
		"Duration of build commands in seconds.",
		DurationBuckets,
	)

	RebuildTriggersTotal = NewCounterVec(
		"emptysweep_rebuild_triggers_total",
		"Total number of rebuild triggers received in watch mode.",
		[]string{"source"},
	)

	ErrorsTotal = NewCounter(
		"emptysweep_errors_total",
		"Total number of errors encountered by empty-sweep.",
	)
}

func registerBuildMetrics() {
	prometheus.MustRegister(BuildsTotal)
	prometheus.MustRegister(BuildDuration)
	prometheus.MustRegister(RebuildTriggersTotal)
	prometheus.MustRegister(ErrorsTotal)
}

// RecordBuild updates the build metrics for one build pass
func RecordBuild(ok bool, duration time.Duration) {
	status := "ok"
	if !ok {
		status = "failed"
		ErrorsTotal.Inc()
	}
	BuildsTotal.WithLabelValues(status).Inc()
	BuildDuration.Observe(duration.Seconds())
}

// RecordTrigger counts a rebuild request
func RecordTrigger(source string) {
	RebuildTriggersTotal.WithLabelValues(source).Inc()
}
