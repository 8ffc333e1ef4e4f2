package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// ServiceName identifies this service in health responses
const ServiceName = "transcriber"

// Version is overridden at build time with -ldflags "-X ...observability.Version=..."
var Version = "1.0.0"

// HealthStatus represents the health status of the service
type HealthStatus struct {
	Status       string                      `json:"status"`
	Service      string                      `json:"service"`
	Version      string                      `json:"version"`
	Timestamp    string                      `json:"timestamp"`
	Dependencies map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// DependencyStatus represents the status of a dependency
type DependencyStatus struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

// HealthCheckFunc checks one dependency
type HealthCheckFunc func(ctx context.Context) (bool, error)

// Check is a named dependency check
type Check struct {
	Name string
	Fn   HealthCheckFunc
}

// readinessTimeout bounds all checks of one readiness request
const readinessTimeout = 5 * time.Second

// HealthCheckHandler handles liveness requests. It never touches dependencies.
func HealthCheckHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "ok",
			Service:   ServiceName,
			Version:   Version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}

		writeJSON(w, http.StatusOK, status)
	}
}

// RunChecks executes every check and reports whether all passed
func RunChecks(ctx context.Context, checks ...Check) (bool, map[string]DependencyStatus) {
	dependencies := make(map[string]DependencyStatus, len(checks))
	allHealthy := true

	for _, check := range checks {
		if check.Fn == nil {
			continue
		}

		start := time.Now()
		healthy, err := check.Fn(ctx)
		latency := time.Since(start).Milliseconds()

		status := "healthy"
		message := ""
		if err != nil || !healthy {
			status = "unhealthy"
			allHealthy = false
			message = "dependency check failed"
			// Errors can carry internal addresses, so they go to the log only
			logger := GetLogger()
			logger.Warn().Err(err).Str("dependency", check.Name).Msg("Dependency check failed")
		}

		dependencies[check.Name] = DependencyStatus{
			Status:    status,
			Message:   message,
			LatencyMs: latency,
		}
	}

	return allHealthy, dependencies
}

// ReadinessHandler handles readiness check requests
func ReadinessHandler(checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		allHealthy, dependencies := RunChecks(ctx, checks...)

		status := HealthStatus{
			Status:       "ready",
			Service:      ServiceName,
			Version:      Version,
			Timestamp:    time.Now().UTC().Format(time.RFC3339),
			Dependencies: dependencies,
		}

		code := http.StatusOK
		if !allHealthy {
			status.Status = "not_ready"
			code = http.StatusServiceUnavailable
		}

		writeJSON(w, code, status)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	// Headers must be set before WriteHeader
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
