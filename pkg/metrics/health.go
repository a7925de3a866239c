package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/packhouse/coordinator/pkg/health"
)

// HealthStatus is the aggregate health document served on /health and /ready.
type HealthStatus struct {
	Status     string            `json:"status"` // "healthy"/"unhealthy" on /health, "ready"/"not_ready" on /ready
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components,omitempty"`
	Message    string            `json:"message,omitempty"`
	Version    string            `json:"version,omitempty"`
	Uptime     string            `json:"uptime,omitempty"`
	StartTime  time.Time         `json:"-"`
}

var (
	healthChecker = &HealthChecker{
		components: make(map[string]ComponentHealth),
		startTime:  time.Now(),
	}
)

// ComponentHealth tracks the last health.Result observed for one named
// probe (e.g. "share", "lockmgr").
type ComponentHealth struct {
	Name    string
	Healthy bool
	Message string
	Updated time.Time
}

// HealthChecker aggregates named component statuses into a single
// process-health view.
type HealthChecker struct {
	mu         sync.RWMutex
	components map[string]ComponentHealth
	startTime  time.Time
	version    string
}

// SetVersion sets the version string for health responses.
func SetVersion(version string) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()
	healthChecker.version = version
}

// RegisterComponent records the initial observed health of a named
// component from a health.Result.
func RegisterComponent(name string, result health.Result) {
	healthChecker.mu.Lock()
	defer healthChecker.mu.Unlock()

	healthChecker.components[name] = ComponentHealth{
		Name:    name,
		Healthy: result.Healthy,
		Message: result.Message,
		Updated: result.CheckedAt,
	}
}

// UpdateComponent replaces a named component's health from a fresh
// health.Result. Same implementation as RegisterComponent — there is no
// distinct "first write" behavior to preserve.
func UpdateComponent(name string, result health.Result) {
	RegisterComponent(name, result)
}

// GetHealth returns the overall health status.
func GetHealth() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "healthy"
	components := make(map[string]string)

	for name, comp := range healthChecker.components {
		if !comp.Healthy {
			status = "unhealthy"
			components[name] = "unhealthy: " + comp.Message
		} else {
			components[name] = "healthy"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Version:    healthChecker.version,
		Uptime:     uptime.String(),
		StartTime:  healthChecker.startTime,
	}
}

// GetReadiness returns readiness status, gated on the checks the coordinator
// treats as prerequisites for serving traffic: share connectivity and the
// local lock subsystem.
func GetReadiness() HealthStatus {
	healthChecker.mu.RLock()
	defer healthChecker.mu.RUnlock()

	status := "ready"
	message := ""
	components := make(map[string]string)

	criticalComponents := []string{"share", "lockmgr"}

	for _, name := range criticalComponents {
		if comp, exists := healthChecker.components[name]; exists {
			if !comp.Healthy {
				status = "not_ready"
				message = "waiting for " + name
				components[name] = "not ready: " + comp.Message
			} else {
				components[name] = "ready"
			}
		} else {
			status = "not_ready"
			message = "waiting for " + name + " initialization"
			components[name] = "not registered"
		}
	}

	uptime := time.Since(healthChecker.startTime)

	return HealthStatus{
		Status:     status,
		Timestamp:  time.Now(),
		Components: components,
		Message:    message,
		Version:    healthChecker.version,
		Uptime:     uptime.String(),
		StartTime:  healthChecker.startTime,
	}
}

// HealthHandler returns an HTTP handler for the /health endpoint.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if health.Status == "unhealthy" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(health)
	}
}

// ReadyHandler returns an HTTP handler for the /ready endpoint.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()

		w.Header().Set("Content-Type", "application/json")

		statusCode := http.StatusOK
		if readiness.Status != "ready" {
			statusCode = http.StatusServiceUnavailable
		}
		w.WriteHeader(statusCode)

		_ = json.NewEncoder(w).Encode(readiness)
	}
}

// LivenessHandler returns a simple liveness check: 200 as long as the
// process is running, independent of any component's health.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
			"uptime": time.Since(healthChecker.startTime).String(),
		})
	}
}

// Monitor runs a health.Checker on its own ticker and folds each Result
// into this package's component registry under name, applying the
// Checker's Config for hysteresis and start-period grace the same way
// pkg/health.Status does internally.
type Monitor struct {
	name    string
	checker health.Checker
	config  health.Config
	status  *health.Status

	stopCh chan struct{}
}

// NewMonitor builds a Monitor for checker, registered in the component
// registry under name (e.g. "share" or "lockmgr" — the names GetReadiness
// treats as critical).
func NewMonitor(name string, checker health.Checker, config health.Config) *Monitor {
	return &Monitor{
		name:    name,
		checker: checker,
		config:  config,
		status:  health.NewStatus(),
		stopCh:  make(chan struct{}),
	}
}

// Start runs the probe loop in a background goroutine until Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.runOnce(ctx)

	ticker := time.NewTicker(m.config.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.runOnce(ctx)
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the probe loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) runOnce(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, m.config.Timeout)
	defer cancel()

	result := m.checker.Check(checkCtx)
	m.status.Update(result, m.config)

	reported := result
	if m.status.InStartPeriod(m.config) {
		reported.Healthy = true
	} else {
		reported.Healthy = m.status.Healthy
	}
	UpdateComponent(m.name, reported)
}
