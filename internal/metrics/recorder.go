package metrics

import (
	"empty-sweep/internal/sweep"
)

// Recorder feeds sweep events into the Prometheus collectors
type Recorder struct{}

func (Recorder) SweepStarted(sweep.Run) {}

func (Recorder) FileDeleted(sweep.Run, string, string) {
	FilesDeletedTotal.Inc()
}

func (Recorder) SweepFinished(_ sweep.Run, res sweep.Result, err error) {
	outcome := OutcomeOK
	switch {
	case err != nil:
		outcome = OutcomeError
	case res.Missing:
		outcome = OutcomeMissing
	}
	RecordSweep(outcome, len(res.Deleted), res.Duration)
}
