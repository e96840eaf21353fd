package handlers

import (
	"context"
	"net/http"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/xkhani/shipping-agent/pkg/config"
	"github.com/xkhani/shipping-agent/pkg/logging"
)

// healthCheckTimeout bounds the datasource probe in GET /health.
const healthCheckTimeout = 5 * time.Second

// ConnectionTester checks datasource connectivity.
// datasource.ConnectionTester satisfies it.
type ConnectionTester interface {
	TestConnection(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	Datasource string `json:"datasource,omitempty"`
	Error      string `json:"error,omitempty"`
}

// PingResponse contains service status and version information.
type PingResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	Service      string `json:"service"`
	GoVersion    string `json:"go_version"`
	Hostname     string `json:"hostname"`
	Environment  string `json:"environment"`
	SQLModel     string `json:"sql_model"`
	GeneralModel string `json:"general_model"`
}

// HealthHandler handles health check and ping endpoints.
type HealthHandler struct {
	cfg    *config.Config
	tester ConnectionTester
	logger *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. tester may be nil, in which
// case /health does not probe the datasource.
func NewHealthHandler(cfg *config.Config, tester ConnectionTester, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, tester: tester, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
}

// Health handles GET /health. It returns 503 when the datasource cannot be reached.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{Status: "ok"}
	status := http.StatusOK

	if h.tester != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.tester.TestConnection(ctx); err != nil {
			h.logger.Warn("Datasource health check failed", zap.String("error", logging.SanitizeError(err)))
			response = HealthResponse{Status: "degraded", Datasource: "unreachable", Error: logging.SanitizeError(err)}
			status = http.StatusServiceUnavailable
		} else {
			response.Datasource = "ok"
		}
	}

	if err := WriteJSON(w, status, response); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}

// Ping handles GET /ping requests.
// Returns detailed service information including version and environment.
func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	hostname, err := os.Hostname()
	if err != nil {
		http.Error(w, "failed to get hostname", http.StatusInternalServerError)
		return
	}

	response := PingResponse{
		Status:       "ok",
		Version:      h.cfg.Version,
		Service:      "shipping-agent",
		GoVersion:    runtime.Version(),
		Hostname:     hostname,
		Environment:  h.cfg.Env,
		SQLModel:     h.cfg.LLM.SQLModel,
		GeneralModel: h.cfg.LLM.GeneralModel,
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
