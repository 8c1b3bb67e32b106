// Package sweep deletes zero-byte files left in a build output directory.
//
// A Sweeper is tapped onto the AfterEmit hook of a build pipeline. Each time the
// hook fires it resolves the output directory against the base directory and walks
// the tree depth-first in listing order, deleting every empty regular file it finds.
// Directories are never deleted. Symbolic links are never followed or deleted, and
// other non-regular entries (sockets, pipes, devices) are skipped.
//
// A sweep is best-effort and fail-fast: the first listing, stat or remove error
// aborts the walk and is returned, deletions already made are kept.
package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"empty-sweep/internal/fsops"
	"empty-sweep/internal/hooks"
)

// PluginName is the tap name used on the AfterEmit hook
const PluginName = "EmptyFileSweeper"

// Logger receives the sweep's human-readable output
type Logger interface {
	Info(msg string, args ...interface{})
	Success(msg string, args ...interface{})
}

// stdLogger wraps standard log.Logger to implement Logger interface
type stdLogger struct {
	*log.Logger
}

func (l *stdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *stdLogger) Success(msg string, args ...interface{}) {
	l.logWithLevel("DELETED", msg, args...)
}

func (l *stdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// Run identifies a single sweep
type Run struct {
	ID      string
	BaseDir string
	Root    string
	Started time.Time
}

// Result summarises a sweep. Deleted holds paths relative to the base directory
// in deletion order. After a failed sweep it still lists what was removed before
// the failure.
type Result struct {
	RunID    string
	Root     string
	Deleted  []string
	Missing  bool
	Duration time.Duration
}

// Sweeper removes empty regular files below an output directory
type Sweeper struct {
	baseDir   string
	outputDir string

	fs       fsops.FileSystem
	logger   Logger
	recorder Recorder
}

// New stores both directories verbatim; nothing is validated until a sweep runs.
// outputDir may be absolute or relative to baseDir.
func New(baseDir, outputDir string) *Sweeper {
	return &Sweeper{
		baseDir:   baseDir,
		outputDir: outputDir,
		fs:        fsops.OSFileSystem{},
		logger:    &stdLogger{Logger: log.Default()},
		recorder:  nopRecorder{},
	}
}

// SetFileSystem sets the filesystem used by sweeps (nil restores the OS filesystem)
func (s *Sweeper) SetFileSystem(fs fsops.FileSystem) {
	if fs == nil {
		fs = fsops.OSFileSystem{}
	}
	s.fs = fs
}

// SetLogger sets the sink for skip and deletion lines (nil restores the default logger)
func (s *Sweeper) SetLogger(logger Logger) {
	if logger == nil {
		logger = &stdLogger{Logger: log.Default()}
	}
	s.logger = logger
}

// SetRecorder sets the observer of sweep outcomes (nil disables recording)
func (s *Sweeper) SetRecorder(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// BaseDir returns the base directory as given to New
func (s *Sweeper) BaseDir() string { return s.baseDir }

// OutputDir returns the output directory as given to New
func (s *Sweeper) OutputDir() string { return s.outputDir }

// Root is the sweep root: the output directory resolved against the base directory
func (s *Sweeper) Root() string {
	return s.fs.Resolve(s.baseDir, s.outputDir)
}

// Apply taps the sweeper onto the AfterEmit hook
func (s *Sweeper) Apply(h *hooks.Hooks) {
	h.Tap(hooks.AfterEmit, PluginName, s.OnBuildComplete)
}

// OnBuildComplete sweeps the output directory once the build has emitted its
// artifacts. The sweep runs to completion before it returns. The build result
// is not inspected.
func (s *Sweeper) OnBuildComplete(ctx context.Context, _ hooks.BuildResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Sweep(s.Root())
	return err
}

// Sweep walks dir and deletes every zero-byte regular file below it.
// A dir that does not exist is logged and treated as an empty sweep.
func (s *Sweeper) Sweep(dir string) (Result, error) {
	run := Run{
		ID:      uuid.NewString(),
		BaseDir: s.baseDir,
		Root:    dir,
		Started: time.Now(),
	}
	res := Result{RunID: run.ID, Root: dir}

	s.recorder.SweepStarted(run)
	err := s.sweep(run, dir, &res)
	if err != nil {
		err = fmt.Errorf("sweep %s: %w", dir, err)
	}
	res.Duration = time.Since(run.Started)
	s.recorder.SweepFinished(run, res, err)

	return res, err
}

func (s *Sweeper) sweep(run Run, dir string, res *Result) error {
	exists, err := s.fs.Exists(dir)
	if err != nil {
		return err
	}
	if !exists {
		if dir == run.Root {
			res.Missing = true
		}
		s.logger.Info("directory not found, skipping empty file removal", "path", dir)
		return nil
	}

	names, err := s.fs.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, name := range names {
		p := s.fs.Join(dir, name)
		entry, err := s.fs.Stat(p)
		if err != nil {
			return err
		}

		switch {
		case entry.IsDir:
			if err := s.sweep(run, p, res); err != nil {
				return err
			}
		case entry.IsRegular && entry.Size == 0:
			if err := s.fs.Remove(p); err != nil {
				return err
			}
			rel := s.relative(p)
			res.Deleted = append(res.Deleted, rel)
			s.recorder.FileDeleted(run, p, rel)
			s.logger.Success("file deleted", "path", rel)
		}
	}
	return nil
}

// relative reports p against the base directory so logs follow the project layout
func (s *Sweeper) relative(p string) string {
	rel, err := s.fs.Rel(s.baseDir, p)
	if err != nil {
		return p
	}
	return rel
}
