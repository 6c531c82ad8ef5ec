package handlers

import (
	"net/http"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-governance/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/middleware"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// maxMCPRequestBytes bounds a single JSON-RPC request body.
const maxMCPRequestBytes = 1 << 20

// MCPHandler serves the governance MCP tools over streamable HTTP, one
// endpoint per hosted governance server.
type MCPHandler struct {
	httpServer *server.StreamableHTTPServer
	registry   *services.InstanceRegistry
	logger     *zap.Logger
}

// NewMCPHandler creates a new MCP handler from an MCP server.
func NewMCPHandler(mcpServer *mcp.Server, registry *services.InstanceRegistry, logger *zap.Logger) *MCPHandler {
	return &MCPHandler{
		httpServer: mcpServer.NewStreamableHTTPServer(),
		registry:   registry,
		logger:     logger,
	}
}

// RegisterRoutes registers /mcp/{server}. The token's server claim must
// match {server}, and {server} must be hosted here.
func (h *MCPHandler) RegisterRoutes(mux *http.ServeMux, mcpAuthMiddleware *mcpauth.Middleware) {
	// Outermost first: method check, authentication, hosted server, JSON-RPC logging.
	var handler http.Handler = middleware.MCPRequestLogger(h.logger)(h.httpServer)
	handler = h.requireHostedServer(handler)
	handler = mcpAuthMiddleware.RequireAuth("server")(handler)
	mux.Handle("/mcp/{server}", h.requirePOST(handler))
}

// requirePOST returns 405 for anything but a JSON-RPC POST and caps the body size.
func (h *MCPHandler) requirePOST(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxMCPRequestBytes)
		next.ServeHTTP(w, r)
	})
}

// requireHostedServer answers with the governance error envelope when
// {server} is not hosted, before the request reaches the MCP session layer.
func (h *MCPHandler) requireHostedServer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.registry.Lookup(r.PathValue("server")); err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
