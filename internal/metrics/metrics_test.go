package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"empty-sweep/internal/sweep"
)

// gatherValue returns the value of a counter or gauge in the default registry,
// matching the first sample whose labels contain every given pair
func gatherValue(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if v, ok := labels[lp.GetName()]; ok && v == lp.GetValue() {
					matched++
				}
			}
			if matched != len(labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("metric %s %v not found", name, labels)
	return 0
}

// TestMetricsInit verifies that Init() is idempotent and registers metrics
func TestMetricsInit(t *testing.T) {
	Init()
	Init()
	Init()

	if SweepsTotal == nil || FilesDeletedTotal == nil || SweepDuration == nil {
		t.Fatal("sweep metrics should be initialized")
	}
	if BuildsTotal == nil || ErrorsTotal == nil {
		t.Fatal("build metrics should be initialized")
	}

	// Histograms only appear once observed
	SweepDuration.Observe(0.01)
	BuildDuration.Observe(1)

	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	expectedMetrics := []string{
		"emptysweep_sweeps_total",
		"emptysweep_files_deleted_total",
		"emptysweep_sweep_duration_seconds",
		"emptysweep_last_sweep_timestamp",
		"emptysweep_last_sweep_deleted_files",
		"emptysweep_build_duration_seconds",
		"emptysweep_errors_total",
		"emptysweep_start_timestamp_seconds",
	}

	found := make(map[string]bool)
	for _, mf := range mfs {
		found[mf.GetName()] = true
	}
	for _, expected := range expectedMetrics {
		if !found[expected] {
			t.Errorf("Expected metric %s not found in registry", expected)
		}
	}
}

// TestRecorder verifies sweep events reach the collectors
func TestRecorder(t *testing.T) {
	Init()

	deletedBefore := gatherValue(t, "emptysweep_files_deleted_total", nil)
	okBefore := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeOK})
	missingBefore := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeMissing})
	errBefore := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeError})

	rec := Recorder{}
	run := sweep.Run{ID: "r1"}
	rec.SweepStarted(run)
	rec.FileDeleted(run, "/p/out/a", "out/a")
	rec.FileDeleted(run, "/p/out/b", "out/b")
	rec.SweepFinished(run, sweep.Result{Deleted: []string{"out/a", "out/b"}, Duration: time.Millisecond}, nil)
	rec.SweepFinished(run, sweep.Result{Missing: true}, nil)
	rec.SweepFinished(run, sweep.Result{}, errors.New("permission denied"))

	if got := gatherValue(t, "emptysweep_files_deleted_total", nil) - deletedBefore; got != 2 {
		t.Errorf("expected 2 deletions recorded, got %v", got)
	}
	if got := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeOK}) - okBefore; got != 1 {
		t.Errorf("expected 1 ok sweep, got %v", got)
	}
	if got := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeMissing}) - missingBefore; got != 1 {
		t.Errorf("expected 1 missing-root sweep, got %v", got)
	}
	if got := gatherValue(t, "emptysweep_sweeps_total", map[string]string{"outcome": OutcomeError}) - errBefore; got != 1 {
		t.Errorf("expected 1 failed sweep, got %v", got)
	}
	if got := gatherValue(t, "emptysweep_last_sweep_deleted_files", nil); got != 0 {
		t.Errorf("last sweep deleted nothing, gauge reads %v", got)
	}
}

func TestRecordBuild(t *testing.T) {
	Init()

	before := gatherValue(t, "emptysweep_errors_total", nil)
	RecordBuild(true, time.Second)
	RecordBuild(false, time.Second)

	if got := gatherValue(t, "emptysweep_builds_total", map[string]string{"status": "failed"}); got < 1 {
		t.Errorf("failed build not counted: %v", got)
	}
	if got := gatherValue(t, "emptysweep_errors_total", nil) - before; got != 1 {
		t.Errorf("expected one error for the failed build, got %v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	Init()
	defer SetHealthChecker(nil)
	handler := Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("expected 200 without checker, got %d", rr.Code)
	}

	hc := NewHealthChecker(time.Hour)
	hc.RegisterComponent("database", func() error { return errors.New("closed") }, 0)
	hc.RunChecks()
	SetHealthChecker(hc)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 with failing component, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"healthy":false`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

func TestTriggerEndpoint(t *testing.T) {
	Init()
	defer SetTriggerChannel(nil)
	handler := Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/trigger", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /trigger: expected 405, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("POST /trigger without channel: expected 503, got %d", rr.Code)
	}

	ch := make(chan struct{}, 1)
	SetTriggerChannel(ch)

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	if rr.Code != http.StatusAccepted {
		t.Errorf("POST /trigger: expected 202, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	if rr.Code != http.StatusConflict {
		t.Errorf("second POST /trigger: expected 409 while pending, got %d", rr.Code)
	}

	select {
	case <-ch:
	default:
		t.Error("trigger was not queued")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	Init()
	rr := httptest.NewRecorder()
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "emptysweep_sweeps_total") {
		t.Error("sweep counter missing from /metrics output")
	}
}

func TestHealthChecker(t *testing.T) {
	Init()

	healthy := true
	hc := NewHealthChecker(time.Hour)
	hc.RegisterComponent("db", func() error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}, 0)
	hc.RegisterComponent("slow", func() error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}, 10*time.Millisecond)

	hc.RunChecks()
	health := hc.GetHealth()
	if !health["db"] {
		t.Error("db should be healthy")
	}
	if health["slow"] {
		t.Error("slow check should have timed out")
	}
	if hc.IsHealthy() {
		t.Error("checker should report unhealthy while a component fails")
	}

	hc.Start()
	hc.Start()
	hc.Stop()
	hc.Stop()

	if hc.GetUptime() <= 0 {
		t.Error("uptime should be positive")
	}
}

func TestTriggerRateLimited(t *testing.T) {
	Init()
	handler := Handler()

	codes := make(map[int]int)
	for i := 0; i < TriggerBurst+1; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/trigger", nil))
		codes[rr.Code]++
	}
	if codes[http.StatusTooManyRequests] != 1 {
		t.Errorf("expected exactly one 429 after a burst of %d, got %v", TriggerBurst, codes)
	}

	// another client has its own bucket
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	req.RemoteAddr = "198.51.100.7:4000"
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code == http.StatusTooManyRequests {
		t.Error("second client should not be limited")
	}
}
