package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Health metrics
var (
	// ServiceStartTime records runner start timestamp
	ServiceStartTime prometheus.Gauge

	// ComponentHealthy tracks individual component health
	ComponentHealthy *prometheus.GaugeVec

	// HealthCheckDuration tracks health check execution time
	HealthCheckDuration *prometheus.HistogramVec

	// HealthCheckFailures counts consecutive failures per component
	HealthCheckFailures *prometheus.GaugeVec

	// HealthCheckTimeouts counts timed out health checks
	HealthCheckTimeouts prometheus.Counter
)

var errHealthCheckTimeout = errors.New("health check timeout")

// HealthChecker runs periodic health checks for runner components
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
}

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name         string
	LastCheck    time.Time
	Healthy      bool
	CheckFunc    func() error
	FailureCount int
	Timeout      time.Duration
}

func initHealthMetrics() {
	ServiceStartTime = NewGauge(
		"emptysweep_start_timestamp_seconds",
		"Unix timestamp when the runner started.",
	)

	ComponentHealthy = NewGaugeVec(
		"emptysweep_component_healthy",
		"Component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	HealthCheckDuration = NewDurationHistogramVec(
		"emptysweep_health_check_duration_seconds",
		"Time taken to execute health checks.",
		HealthBuckets,
		[]string{"component"},
	)

	HealthCheckFailures = NewGaugeVec(
		"emptysweep_health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)

	HealthCheckTimeouts = NewCounter(
		"emptysweep_health_check_timeouts_total",
		"Total number of health check timeouts.",
	)
}

func registerHealthMetrics() {
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckFailures)
	prometheus.MustRegister(HealthCheckTimeouts)
}

// NewHealthChecker creates a health checker running every interval
func NewHealthChecker(interval time.Duration) *HealthChecker {
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}
	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	return hc
}

// RegisterComponent adds a health check; checkFunc returns nil when healthy.
// A zero timeout means no timeout.
func (hc *HealthChecker) RegisterComponent(name string, checkFunc func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:      name,
		CheckFunc: checkFunc,
		Healthy:   true,
		Timeout:   timeout,
	}
	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start begins periodic health checking
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.loop()
}

// Stop halts health checking and waits for the loop to exit
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = false
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) loop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.RunChecks()
	for {
		select {
		case <-ticker.C:
			hc.RunChecks()
		case <-hc.stopCh:
			return
		}
	}
}

// RunChecks executes every registered check once
func (hc *HealthChecker) RunChecks() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	for name, comp := range hc.components {
		start := time.Now()

		var err error
		if comp.Timeout > 0 {
			err = runWithTimeout(comp.CheckFunc, comp.Timeout)
		} else {
			err = comp.CheckFunc()
		}

		HealthCheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		comp.LastCheck = time.Now()

		if err != nil {
			comp.Healthy = false
			comp.FailureCount++
			ComponentHealthy.WithLabelValues(name).Set(0)
			HealthCheckFailures.WithLabelValues(name).Set(float64(comp.FailureCount))
			ErrorsTotal.Inc()
			continue
		}
		comp.Healthy = true
		comp.FailureCount = 0
		ComponentHealthy.WithLabelValues(name).Set(1)
		HealthCheckFailures.WithLabelValues(name).Set(0)
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		HealthCheckTimeouts.Inc()
		return errHealthCheckTimeout
	}
}

// GetHealth returns current health status of all components
func (hc *HealthChecker) GetHealth() map[string]bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	health := make(map[string]bool, len(hc.components))
	for name, comp := range hc.components {
		health[name] = comp.Healthy
	}
	return health
}

// IsHealthy returns true if all components are healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// GetUptime returns runner uptime in seconds
func (hc *HealthChecker) GetUptime() float64 {
	return time.Since(hc.startTime).Seconds()
}
