package database

import (
	"log"
	"time"

	"empty-sweep/internal/sweep"
)

// Recorder writes sweep history to the database. Write failures are logged and
// never fail the sweep.
type Recorder struct {
	db     *SweepDB
	logger *log.Logger
}

func NewRecorder(db *SweepDB, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{db: db, logger: logger}
}

func (r *Recorder) SweepStarted(run sweep.Run) {
	if err := r.db.StartSweep(run.ID, run.BaseDir, run.Root, run.Started); err != nil {
		r.logger.Printf("ERROR: failed to record sweep start %s: %v", run.ID, err)
	}
}

func (r *Recorder) FileDeleted(run sweep.Run, path, rel string) {
	if err := r.db.RecordDeletion(run.ID, path, rel, time.Now()); err != nil {
		r.logger.Printf("ERROR: failed to record deletion of %s: %v", path, err)
	}
}

func (r *Recorder) SweepFinished(run sweep.Run, res sweep.Result, err error) {
	status := StatusOK
	errMsg := ""
	switch {
	case err != nil:
		status = StatusError
		errMsg = err.Error()
	case res.Missing:
		status = StatusMissing
	}

	finished := run.Started.Add(res.Duration)
	if dbErr := r.db.FinishSweep(run.ID, finished, len(res.Deleted), status, errMsg); dbErr != nil {
		r.logger.Printf("ERROR: failed to record sweep result %s: %v", run.ID, dbErr)
	}
}
