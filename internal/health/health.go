package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/vantage-intel/vantage/internal/adapters/database"
	redisAdapter "github.com/vantage-intel/vantage/internal/adapters/redis"
	"github.com/vantage-intel/vantage/internal/scheduler"
	"github.com/vantage-intel/vantage/pkg/logger"
)

// Server provides health check HTTP endpoints for K8s. It is an ops
// surface only; the product has no serving API.
type Server struct {
	server    *http.Server
	db        *database.DB
	redis     *redisAdapter.Client
	telemetry *database.DB
	sched     *scheduler.Scheduler
	ready     bool
	readyMu   sync.RWMutex
	startTime time.Time
}

// HealthStatus represents system health
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ReadinessStatus represents system readiness
type ReadinessStatus struct {
	Ready     bool                  `json:"ready"`
	Timestamp string                `json:"timestamp"`
	Checks    map[string]string     `json:"checks"`
	Jobs      []scheduler.JobStatus `json:"jobs"`
}

// NewServer creates new health check server. redis, telemetry, and sched
// may be nil when the deployment runs without them.
func NewServer(
	port int,
	db *database.DB,
	redis *redisAdapter.Client,
	telemetry *database.DB,
	sched *scheduler.Scheduler,
) *Server {
	mux := http.NewServeMux()

	s := &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		db:        db,
		redis:     redis,
		telemetry: telemetry,
		sched:     sched,
		ready:     false,
		startTime: time.Now(),
	}

	// Health endpoints for K8s probes only
	mux.HandleFunc("/health", s.handleHealth)    // Liveness probe
	mux.HandleFunc("/ready", s.handleReadiness)  // Readiness probe
	mux.HandleFunc("/healthz", s.handleHealth)   // Alias
	mux.HandleFunc("/readyz", s.handleReadiness) // Alias

	return s
}

// Start starts the health check server
func (s *Server) Start() error {
	logger.Info("health check server starting",
		zap.String("addr", s.server.Addr),
	)

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping health check server...")
	return s.server.Shutdown(ctx)
}

// SetReady marks the service as ready
func (s *Server) SetReady(ready bool) {
	s.readyMu.Lock()
	defer s.readyMu.Unlock()
	s.ready = ready

	if ready {
		logger.Info("✅ service marked as READY")
	} else {
		logger.Warn("⚠️ service marked as NOT READY")
	}
}

// runChecks probes every wired dependency. Only required dependencies
// count against healthy: the telemetry warehouse is fire-and-forget and
// never blocks readiness.
func (s *Server) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string)
	healthy := true

	if err := s.db.Health(); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		healthy = false
	} else {
		checks["database"] = "healthy"
	}

	if s.redis != nil {
		if err := s.redis.Health(ctx); err != nil {
			checks["redis"] = "unhealthy: " + err.Error()
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	if s.telemetry != nil {
		if err := s.telemetry.Health(); err != nil {
			checks["telemetry"] = "unhealthy: " + err.Error()
		} else {
			checks["telemetry"] = "healthy"
		}
	}

	return checks, healthy
}

// handleHealth handles liveness probe - /health
// Returns 200 if process is alive (even if dependencies are down)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
	}

	// Optional: include dependency checks (for debugging)
	if r.URL.Query().Get("verbose") == "true" {
		status.Checks, _ = s.runChecks(r.Context())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// handleReadiness handles readiness probe - /ready
// Returns 200 only if startup completed and required dependencies are up
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	s.readyMu.RLock()
	ready := s.ready
	s.readyMu.RUnlock()

	checks, healthy := s.runChecks(r.Context())
	isReady := ready && healthy

	var jobs []scheduler.JobStatus
	if s.sched != nil {
		jobs = s.sched.Jobs()
	}

	status := ReadinessStatus{
		Ready:     isReady,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Jobs:      jobs,
	}

	w.Header().Set("Content-Type", "application/json")

	if isReady {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	json.NewEncoder(w).Encode(status)
}
