package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// HealthChecker reports whether a dependency is ready to serve traffic.
// The postgres client's Health method satisfies this as a method value.
type HealthChecker func(ctx context.Context) error

// healthStatus is the JSON body of a health probe response.
type healthStatus struct {
	Status string `json:"status"`
}

// newManagementHandler builds the handler for the management port:
// liveness, readiness, and metrics. Liveness always succeeds while the
// process can serve requests; readiness reflects dependency health.
func newManagementHandler(ready HealthChecker, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health/live", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, http.StatusOK, "UP")
	})

	mux.HandleFunc("GET /health/ready", func(w http.ResponseWriter, r *http.Request) {
		if ready != nil {
			if err := ready(r.Context()); err != nil {
				slog.WarnContext(r.Context(), "readiness check failed", "error", err)
				writeHealth(w, http.StatusServiceUnavailable, "DOWN")
				return
			}
		}
		writeHealth(w, http.StatusOK, "UP")
	})

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return mux
}

// writeHealth writes a health probe response.
func writeHealth(w http.ResponseWriter, status int, state string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(healthStatus{Status: state})
}
