package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"assetpulse/internal/resilience/circuitbreaker"
)

// HealthServer provides HTTP endpoints for health checks and breaker
// observability:
//   - /health: liveness probe (always 200 OK)
//   - /health/ready: readiness probe (200 if ready, 503 if not)
//   - /health/breakers: JSON snapshot of all circuit breaker states
//
// The server supports graceful shutdown via context cancellation.
type HealthServer struct {
	addr     string
	logger   *slog.Logger
	isReady  *atomic.Bool
	breakers *circuitbreaker.Registry
	server   *http.Server
}

// healthResponse is the JSON response format for health check endpoints.
type healthResponse struct {
	Status string `json:"status"`
}

// breakerStatus is the JSON shape of one breaker in the snapshot endpoint.
type breakerStatus struct {
	Dependency      string     `json:"dependency"`
	Open            bool       `json:"open"`
	FailureCount    int        `json:"failure_count"`
	LastFailureTime *time.Time `json:"last_failure_time,omitempty"`
	NextAttemptTime *time.Time `json:"next_attempt_time,omitempty"`
}

// breakersResponse is the JSON response for /health/breakers.
type breakersResponse struct {
	Healthy  bool            `json:"healthy"`
	Breakers []breakerStatus `json:"breakers"`
}

// NewHealthServer creates a new health check server. The breaker registry
// may be nil, in which case /health/breakers reports an empty snapshot.
func NewHealthServer(addr string, breakers *circuitbreaker.Registry, logger *slog.Logger) *HealthServer {
	isReady := &atomic.Bool{}
	isReady.Store(false)

	return &HealthServer{
		addr:     addr,
		logger:   logger,
		isReady:  isReady,
		breakers: breakers,
	}
}

// Start runs the health check HTTP server until the context is cancelled.
// Returns http.ErrServerClosed on graceful shutdown.
func (h *HealthServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleLiveness)
	mux.HandleFunc("/health/ready", h.handleReadiness)
	mux.HandleFunc("/health/breakers", h.handleBreakers)

	h.server = &http.Server{
		Addr:         h.addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		h.logger.Info("health server starting", slog.String("addr", h.addr))
		if err := h.server.ListenAndServe(); err != nil {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		h.logger.Info("health server shutting down")
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			h.logger.Error("health server shutdown failed", slog.Any("error", err))
			return err
		}
		return http.ErrServerClosed

	case err := <-errChan:
		if err != http.ErrServerClosed {
			h.logger.Error("health server failed", slog.Any("error", err))
		}
		return err
	}
}

// SetReady sets the readiness state reported by /health/ready.
func (h *HealthServer) SetReady(ready bool) {
	h.isReady.Store(ready)
	h.logger.Info("health server readiness changed", slog.Bool("ready", ready))
}

func (h *HealthServer) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		h.logger.Error("failed to encode liveness response", slog.Any("error", err))
	}
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if h.isReady.Load() {
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok"})
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "not ready"})
	}
}

// handleBreakers serves the circuit breaker snapshot. The endpoint returns
// 200 when every breaker is closed and 503 when any is open, so it doubles
// as a dependency-health readiness signal.
func (h *HealthServer) handleBreakers(w http.ResponseWriter, _ *http.Request) {
	resp := breakersResponse{Healthy: true, Breakers: []breakerStatus{}}

	if h.breakers != nil {
		for dep, st := range h.breakers.Snapshot() {
			status := breakerStatus{
				Dependency:   dep,
				Open:         st.IsOpen,
				FailureCount: st.FailureCount,
			}
			if !st.LastFailureTime.IsZero() {
				t := st.LastFailureTime
				status.LastFailureTime = &t
			}
			if !st.NextAttemptTime.IsZero() {
				t := st.NextAttemptTime
				status.NextAttemptTime = &t
			}
			if st.IsOpen {
				resp.Healthy = false
			}
			resp.Breakers = append(resp.Breakers, status)
		}
	}

	statusCode := http.StatusOK
	if !resp.Healthy {
		statusCode = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode breakers response", slog.Any("error", err))
	}
}
