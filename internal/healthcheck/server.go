package healthcheck

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"gitlab.com/timkado/api/daisi-crm-inbox/pkg/utils"
)

// Version is reported by /health.
const Version = "1.0.0"

// Server represents the HTTP server of the service: probes, metrics and the
// handlers registered on it.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux // Expose mux for adding handlers
	logger     *zap.Logger

	mu     sync.RWMutex
	probes []Probe
}

// Probe contributes one detail to /ready. A probe returning an error marks the
// service as not ready.
type Probe struct {
	Name  string
	Check func() (string, error)
}

// HealthResponse is the response structure for health check endpoints
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// NewServer creates a new server listening on port
func NewServer(port string, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	server := &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: mux,
		},
		mux:    mux,
		logger: logger,
	}

	// Register default health check endpoints
	mux.HandleFunc("/health", server.handleHealth)
	mux.HandleFunc("/ready", server.handleReady)

	return server
}

// RegisterMetricsHandler adds the /metrics endpoint handler.
// Should only be called if metrics are enabled.
func (s *Server) RegisterMetricsHandler(handler http.Handler) {
	s.logger.Info("Registering /metrics endpoint")
	s.mux.Handle("/metrics", handler)
}

// RegisterHandler mounts handler under pattern, e.g. the API under "/v1/".
func (s *Server) RegisterHandler(pattern string, handler http.Handler) {
	s.logger.Info("Registering handler", zap.String("pattern", pattern))
	s.mux.Handle(pattern, handler)
}

// AddProbe adds a readiness check.
func (s *Server) AddProbe(p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes = append(s.probes, p)
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start begins the HTTP server
func (s *Server) Start() {
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", zap.Error(err))
		}
	}()
}

// Stop gracefully shuts down the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// handleHealth handles the /health endpoint for liveness probes
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSONResponse(w, http.StatusOK, HealthResponse{
		Status:  "UP",
		Version: Version,
	})
}

// handleReady handles the /ready endpoint for readiness probes
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status: "READY",
		Details: map[string]string{
			"timestamp": utils.FormatISO8601(utils.Now()),
		},
	}
	code := http.StatusOK

	s.mu.RLock()
	probes := s.probes
	s.mu.RUnlock()

	for _, p := range probes {
		detail, err := p.Check()
		if err != nil {
			resp.Status = "NOT_READY"
			code = http.StatusServiceUnavailable
			detail = err.Error()
			s.logger.Warn("Readiness probe failed", zap.String("probe", p.Name), zap.Error(err))
		}
		resp.Details[p.Name] = detail
	}

	utils.WriteJSONResponse(w, code, resp)
}
