package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

type healthResult struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Server     string `json:"server,omitempty"`
	Repository string `json:"repository,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server. It reports
// the service version and whether the caller's server can reach its
// repository. registry may be nil.
func RegisterHealthTool(s *server.MCPServer, version string, registry *services.InstanceRegistry) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}

		if serverName := auth.GetServerNameFromContext(ctx); serverName != "" && registry != nil {
			res.Server = serverName
			inst, err := registry.Lookup(serverName)
			switch {
			case err != nil:
				res.Status = "unknown_server"
			case inst.Repository.IsActive():
				res.Repository = "ok"
			default:
				res.Status = "degraded"
				res.Repository = "unavailable"
			}
		}

		result, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return mcp.NewToolResultText(string(result)), nil
	})
}
