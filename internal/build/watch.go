package build

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"empty-sweep/internal/metrics"
)

// Run performs a build pass and, in watch mode, rebuilds on source changes
// and on trigger requests until ctx is cancelled. Errors of rebuilds are
// logged and the loop continues.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.cfg.Watch.Enabled {
		_, err := p.RunOnce(ctx)
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	for _, root := range p.cfg.WatchPaths() {
		if err := p.watchTree(watcher, root); err != nil {
			return err
		}
	}

	if _, err := p.RunOnce(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		p.logger.Error("initial build pass failed", "error", err)
	}

	debounce := p.cfg.Debounce()
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("watcher shutting down")
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if p.ignored(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := p.watchTree(watcher, ev.Name); err != nil {
						p.logger.Error("failed to watch new directory", "path", ev.Name, "error", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			metrics.ErrorsTotal.Inc()
			p.logger.Error("watch error", "error", err)

		case <-fire:
			fire = nil
			metrics.RecordTrigger("fs")
			p.rebuild(ctx)

		case <-p.trigger:
			metrics.RecordTrigger("http")
			p.rebuild(ctx)
		}
	}
}

func (p *Pipeline) rebuild(ctx context.Context) {
	if _, err := p.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("rebuild failed", "error", err)
	}
}

// watchTree adds root and every directory below it, except the sweep root
func (p *Pipeline) watchTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if p.ignored(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

// ignored reports whether path is written by the runner itself: the output
// directory, the history database with its journal files, and the log
// directory. Changes there must not schedule another pass.
func (p *Pipeline) ignored(path string) bool {
	path = filepath.Clean(path)
	if within(path, p.cfg.SweepRoot()) {
		return true
	}
	if dir := p.cfg.Logging.Dir; dir != "" {
		if abs, err := filepath.Abs(dir); err == nil && within(path, abs) {
			return true
		}
	}
	if db := p.cfg.DatabasePath; db != "" {
		db = filepath.Clean(db)
		for _, suffix := range []string{"", "-wal", "-shm", "-journal"} {
			if path == db+suffix {
				return true
			}
		}
	}
	return false
}

func within(path, root string) bool {
	root = filepath.Clean(root)
	return path == root || strings.HasPrefix(path, root+string(os.PathSeparator))
}
