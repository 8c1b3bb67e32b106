package integration

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"testing"

	"empty-sweep/internal/build"
	"empty-sweep/internal/config"
	"empty-sweep/internal/database"
	"empty-sweep/internal/hooks"
	"empty-sweep/internal/logging"
	"empty-sweep/internal/metrics"
	"empty-sweep/internal/safety"
	"empty-sweep/internal/sweep"
)

func init() {
	// Initialize metrics once for all integration tests
	metrics.Init()
}

// TestBuildSweepIntegration runs a real build command through the pipeline
// with the sweeper, the history database and the safety validator wired the
// way the runner wires them
func TestBuildSweepIntegration(t *testing.T) {
	// 1. Create a project whose build emits empty and non-empty artifacts
	base := t.TempDir()
	outside := t.TempDir()
	outsideEmpty := filepath.Join(outside, "keep.empty")
	if err := os.WriteFile(outsideEmpty, nil, 0644); err != nil {
		t.Fatalf("Failed to create outside file: %v", err)
	}

	script := `mkdir -p dist/assets dist/empty-dir &&
: > dist/index.js.map &&
: > dist/assets/blank.css &&
echo 'console.log(1)' > dist/index.js &&
ln -sf "` + outsideEmpty + `" dist/link.empty`

	cfg, err := config.Default(base, "dist")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	cfg.Build.Command = []string{"sh", "-c", script}
	cfg.DatabasePath = "history.db"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	// 2. Safety check on the resolved root, as the runner does before registering
	if err := safety.NewValidator(cfg.ProtectedPaths).ValidateSweepRoot(cfg.SweepRoot()); err != nil {
		t.Fatalf("sweep root rejected: %v", err)
	}

	db, err := database.NewSweepDB(cfg.DatabasePath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var console bytes.Buffer
	quiet := log.New(&bytes.Buffer{}, "", 0)

	sweeper := sweep.New(cfg.BaseDir, cfg.OutputDir)
	sweeper.SetLogger(logging.NewConsole(&console, false, nil))
	sweeper.SetRecorder(sweep.Recorders(metrics.Recorder{}, database.NewRecorder(db, quiet)))

	h := hooks.New()
	h.Register(sweeper)
	pipeline := build.NewPipeline(cfg, h, quiet)

	// 3. First pass deletes the empty artifacts
	t.Run("FirstPass_DeletesEmptyFiles", func(t *testing.T) {
		if _, err := pipeline.RunOnce(context.Background()); err != nil {
			t.Fatalf("build pass failed: %v", err)
		}

		dist := filepath.Join(base, "dist")
		for _, gone := range []string{"index.js.map", "assets/blank.css"} {
			if _, err := os.Stat(filepath.Join(dist, gone)); !os.IsNotExist(err) {
				t.Errorf("%s should have been deleted", gone)
			}
		}
		if _, err := os.Stat(filepath.Join(dist, "index.js")); err != nil {
			t.Errorf("non-empty artifact was removed: %v", err)
		}
		if _, err := os.Stat(filepath.Join(dist, "empty-dir")); err != nil {
			t.Errorf("directories must never be removed: %v", err)
		}
		if _, err := os.Lstat(filepath.Join(dist, "link.empty")); err != nil {
			t.Errorf("symlink must not be removed: %v", err)
		}
		if _, err := os.Stat(outsideEmpty); err != nil {
			t.Errorf("SAFETY VIOLATION: symlink target outside the root was removed: %v", err)
		}

		if !bytes.Contains(console.Bytes(), []byte("file deleted: "+filepath.Join("dist", "index.js.map"))) {
			t.Errorf("deletion not logged relative to base: %q", console.String())
		}
	})

	// 4. The history database saw the sweep
	t.Run("History_Recorded", func(t *testing.T) {
		sweeps, err := db.GetRecentSweeps(10)
		if err != nil {
			t.Fatalf("GetRecentSweeps: %v", err)
		}
		if len(sweeps) != 1 {
			t.Fatalf("expected 1 sweep, got %d", len(sweeps))
		}
		if sweeps[0].Status != database.StatusOK || sweeps[0].DeletedCount != 2 {
			t.Errorf("unexpected sweep record: %+v", sweeps[0])
		}
		deletions, err := db.GetDeletionsByRun(sweeps[0].ID)
		if err != nil {
			t.Fatalf("GetDeletionsByRun: %v", err)
		}
		if len(deletions) != 2 {
			t.Errorf("expected 2 deletions, got %d", len(deletions))
		}
	})

	// 5. A second pass over the rebuilt tree is equivalent
	t.Run("SecondPass_Idempotent", func(t *testing.T) {
		if _, err := pipeline.RunOnce(context.Background()); err != nil {
			t.Fatalf("second pass failed: %v", err)
		}
		if _, err := sweeper.Sweep(sweeper.Root()); err != nil {
			t.Fatalf("extra sweep failed: %v", err)
		}
		sweeps, _ := db.GetRecentSweeps(10)
		if len(sweeps) != 3 {
			t.Fatalf("expected 3 sweeps, got %d", len(sweeps))
		}
		// most recent first: the extra sweep found nothing left
		if sweeps[0].DeletedCount != 0 {
			t.Errorf("repeat sweep deleted %d files", sweeps[0].DeletedCount)
		}
	})

	// 6. Failed build: no sweep happens
	t.Run("FailedBuild_NoSweep", func(t *testing.T) {
		failing := *cfg
		failing.Build.Command = []string{"sh", "-c", "exit 1"}
		if _, err := build.NewPipeline(&failing, h, quiet).RunOnce(context.Background()); !errors.Is(err, build.ErrBuildFailed) {
			t.Fatalf("expected ErrBuildFailed, got %v", err)
		}
		sweeps, _ := db.GetRecentSweeps(10)
		if len(sweeps) != 3 {
			t.Errorf("failed build must not sweep, got %d sweeps", len(sweeps))
		}
	})
}

// TestProtectedRootsRefused verifies system paths are never accepted as sweep roots
func TestProtectedRootsRefused(t *testing.T) {
	validator := safety.NewValidator(nil)
	for _, root := range []string{"/", "/etc", "/usr/lib", "/var/lib", "/boot/efi"} {
		err := validator.ValidateSweepRoot(root)
		if !errors.Is(err, safety.ErrProtectedPath) && !errors.Is(err, safety.ErrContainsProtected) {
			t.Errorf("SAFETY VIOLATION: root %s accepted (err=%v)", root, err)
		}
	}
}
