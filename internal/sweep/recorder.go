package sweep

// Recorder observes sweep outcomes. Implementations must not fail the sweep;
// they log their own errors.
type Recorder interface {
	SweepStarted(run Run)
	FileDeleted(run Run, path, rel string)
	SweepFinished(run Run, res Result, err error)
}

type nopRecorder struct{}

func (nopRecorder) SweepStarted(Run)                 {}
func (nopRecorder) FileDeleted(Run, string, string)  {}
func (nopRecorder) SweepFinished(Run, Result, error) {}

// Recorders fans every event out to each non-nil recorder in order
func Recorders(rs ...Recorder) Recorder {
	out := make(multiRecorder, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

type multiRecorder []Recorder

func (m multiRecorder) SweepStarted(run Run) {
	for _, r := range m {
		r.SweepStarted(run)
	}
}

func (m multiRecorder) FileDeleted(run Run, path, rel string) {
	for _, r := range m {
		r.FileDeleted(run, path, rel)
	}
}

func (m multiRecorder) SweepFinished(run Run, res Result, err error) {
	for _, r := range m {
		r.SweepFinished(run, res, err)
	}
}
