package handlers

import (
	"net/http"
	"os"
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/config"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// PingResponse contains service status and version information.
type PingResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	Service     string   `json:"service"`
	GoVersion   string   `json:"go_version"`
	Hostname    string   `json:"hostname"`
	Environment string   `json:"environment"`
	Servers     []string `json:"servers"`
}

// HealthResponse reports whether every hosted server can reach its repository.
type HealthResponse struct {
	Status  string            `json:"status"`
	Servers map[string]string `json:"servers"`
}

// HealthHandler handles health check, ping and metrics endpoints.
type HealthHandler struct {
	cfg      *config.Config
	registry *services.InstanceRegistry
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewHealthHandler creates a new HealthHandler. A nil gatherer disables /metrics.
func NewHealthHandler(cfg *config.Config, registry *services.InstanceRegistry, gatherer prometheus.Gatherer, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{cfg: cfg, registry: registry, gatherer: gatherer, logger: logger}
}

// RegisterRoutes registers the health handler's routes on the given mux.
func (h *HealthHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ping", h.Ping)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

// Health handles GET /health requests.
// Returns 503 when any hosted server's repository is inactive.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Servers: map[string]string{}}
	status := http.StatusOK

	for _, name := range h.registry.ServerNames() {
		inst, err := h.registry.Lookup(name)
		if err != nil {
			continue
		}
		if inst.Repository.IsActive() {
			resp.Servers[name] = "ok"
			continue
		}
		resp.Servers[name] = "unavailable"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	if err := WriteJSON(w, status, resp); err != nil {
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
		Status:      "ok",
		Version:     h.cfg.Version,
		Service:     "ekaya-governance",
		GoVersion:   runtime.Version(),
		Hostname:    hostname,
		Environment: h.cfg.Env,
		Servers:     h.registry.ServerNames(),
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode ping response", zap.Error(err))
	}
}
