package metrics

import (
	"context"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce    sync.Once
	serverMutex sync.Mutex
	currentSrv  *http.Server

	triggerMutex   sync.RWMutex
	triggerChannel chan<- struct{}

	globalHealthChecker *HealthChecker
	healthMutex         sync.RWMutex
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initBuildMetrics()
		initHealthMetrics()

		registerSweepMetrics()
		registerBuildMetrics()
		registerHealthMetrics()

		// Present in /metrics before the first sweep
		LastSweepTimestamp.Set(0)
		for _, outcome := range []string{OutcomeOK, OutcomeMissing, OutcomeError} {
			SweepsTotal.WithLabelValues(outcome)
		}
	})
}

// SetTriggerChannel sets the channel /trigger sends rebuild requests to
func SetTriggerChannel(ch chan<- struct{}) {
	triggerMutex.Lock()
	defer triggerMutex.Unlock()
	triggerChannel = ch
}

// Handler returns the router serving /metrics, /health and /trigger
func Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	limiter := NewRateLimiter(TriggerRate, TriggerBurst)
	r.Handle("/trigger", limiter.Middleware(http.HandlerFunc(triggerHandler))).Methods(http.MethodPost)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	healthMutex.RLock()
	hc := globalHealthChecker
	healthMutex.RUnlock()

	if hc != nil && !hc.IsHealthy() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"status":"degraded","healthy":false}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","healthy":true}`))
}

func triggerHandler(w http.ResponseWriter, r *http.Request) {
	triggerMutex.RLock()
	ch := triggerChannel
	triggerMutex.RUnlock()

	if ch == nil {
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
		return
	}
	select {
	case ch <- struct{}{}:
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte("Rebuild triggered"))
	default:
		// a rebuild is already queued
		http.Error(w, "Rebuild already pending", http.StatusConflict)
	}
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *log.Logger) error {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Printf("metrics server already running on %s", currentSrv.Addr)
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: Handler(),
	}
	currentSrv = srv

	go func() {
		logger.Printf("metrics server listening on %s", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Printf("metrics server error: %v", err)
			ErrorsTotal.Inc()
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the metrics server and the health checker
func Shutdown(ctx context.Context, logger *log.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	healthMutex.Lock()
	if globalHealthChecker != nil {
		globalHealthChecker.Stop()
		globalHealthChecker = nil
	}
	healthMutex.Unlock()

	if currentSrv == nil {
		return
	}
	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.Printf("metrics server shutdown error: %v", err)
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}

// SetHealthChecker sets the global health checker instance
func SetHealthChecker(hc *HealthChecker) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	globalHealthChecker = hc
}

// GetHealthChecker returns the global health checker instance
func GetHealthChecker() *HealthChecker {
	healthMutex.RLock()
	defer healthMutex.RUnlock()
	return globalHealthChecker
}
