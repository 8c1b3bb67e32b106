// Package build runs the host side of a build pass: the configured build
// command, then the lifecycle hooks that plugins such as the sweeper tap into.
package build

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"empty-sweep/internal/config"
	"empty-sweep/internal/hooks"
	"empty-sweep/internal/metrics"
)

// PipelineLogger interface for structured logging in the pipeline
type PipelineLogger interface {
	Info(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// pipelineStdLogger wraps standard log.Logger to implement PipelineLogger interface
type pipelineStdLogger struct {
	*log.Logger
}

func (l *pipelineStdLogger) Info(msg string, args ...interface{}) {
	l.logWithLevel("INFO", msg, args...)
}

func (l *pipelineStdLogger) Error(msg string, args ...interface{}) {
	l.logWithLevel("ERROR", msg, args...)
}

func (l *pipelineStdLogger) logWithLevel(level, msg string, args ...interface{}) {
	var parts []interface{}
	parts = append(parts, fmt.Sprintf("[%s]", level), msg)
	parts = append(parts, args...)
	l.Logger.Println(parts...)
}

// ErrBuildFailed is returned when the build command exits unsuccessfully
var ErrBuildFailed = errors.New("build command failed")

// Pipeline runs build passes against one configuration
type Pipeline struct {
	cfg     *config.Config
	hooks   *hooks.Hooks
	logger  PipelineLogger
	trigger chan struct{}

	// serialises build passes so hooks of two passes never interleave
	mu sync.Mutex
}

// NewPipeline creates a pipeline firing h after each build command
func NewPipeline(cfg *config.Config, h *hooks.Hooks, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	if h == nil {
		h = hooks.New()
	}
	return &Pipeline{
		cfg:     cfg,
		hooks:   h,
		logger:  &pipelineStdLogger{Logger: logger},
		trigger: make(chan struct{}, 1),
	}
}

// Hooks returns the lifecycle hooks fired by the pipeline
func (p *Pipeline) Hooks() *hooks.Hooks {
	return p.hooks
}

// Trigger returns the channel that requests a rebuild in watch mode.
// It holds at most one pending request.
func (p *Pipeline) Trigger() chan<- struct{} {
	return p.trigger
}

// RunOnce performs a single build pass. A failed build command skips
// AfterEmit, since no artifacts were emitted, but Done still fires.
func (p *Pipeline) RunOnce(ctx context.Context) (hooks.BuildResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	select {
	case <-ctx.Done():
		return hooks.BuildResult{}, ctx.Err()
	default:
	}

	res := hooks.BuildResult{ID: uuid.NewString(), Started: time.Now()}
	buildErr := p.runCommand(ctx, &res)
	res.Finished = time.Now()

	if len(p.cfg.Build.Command) > 0 {
		metrics.RecordBuild(buildErr == nil, res.Finished.Sub(res.Started))
	}

	var hookErr error
	if buildErr == nil {
		hookErr = p.hooks.Call(ctx, hooks.AfterEmit, res)
		if hookErr != nil {
			metrics.ErrorsTotal.Inc()
		}
	}
	if err := p.hooks.Call(ctx, hooks.Done, res); err != nil {
		metrics.ErrorsTotal.Inc()
		hookErr = errors.Join(hookErr, err)
	}

	if buildErr != nil {
		return res, buildErr
	}
	return res, hookErr
}

func (p *Pipeline) runCommand(ctx context.Context, res *hooks.BuildResult) error {
	argv := p.cfg.Build.Command
	if len(argv) == 0 {
		return nil
	}

	if timeout := p.cfg.BuildTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	p.logger.Info("build started", "id", res.ID, "command", strings.Join(argv, " "))

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.cfg.BaseDir
	out, err := cmd.CombinedOutput()
	res.Output = string(out)

	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		p.logger.Error("build failed", "id", res.ID, "exit_code", res.ExitCode, "error", err)
		if res.Output != "" {
			p.logger.Error("build output", "id", res.ID, "output", strings.TrimSpace(res.Output))
		}
		return fmt.Errorf("%w: %s: %v", ErrBuildFailed, argv[0], err)
	}

	p.logger.Info("build finished", "id", res.ID, "duration", time.Since(res.Started).Round(time.Millisecond))
	return nil
}
