// Package tools provides the MCP tools of ekaya-governance.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/database"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// GovernanceToolDeps contains dependencies for governance tools.
// Scopes may be nil for the in-memory backend.
type GovernanceToolDeps struct {
	Registry *services.InstanceRegistry
	Scopes   *database.TenantScopeProvider
	Logger   *zap.Logger
}

// RegisterGovernanceTools registers the read-only governance tools.
func RegisterGovernanceTools(s *server.MCPServer, deps *GovernanceToolDeps) {
	registerFindDefinitionsTool(s, deps)
	registerGetDefinitionTool(s, deps)
	registerGetZoneDefinitionTool(s, deps)
	registerGetCertificationsTool(s, deps)
}

// toolCall is the body of a governance tool once the caller's server is
// resolved and the context carries the acting user.
type toolCall func(ctx context.Context, inst *services.ServiceInstance) (any, error)

// run resolves the server named in the caller's token, binds a tenant
// scope, and marshals fn's result. Service errors become tool results.
func (deps *GovernanceToolDeps) run(ctx context.Context, toolName string, fn toolCall) (*mcp.CallToolResult, error) {
	claims, ok := auth.GetClaims(ctx)
	if !ok || claims == nil {
		return nil, fmt.Errorf("authentication required")
	}

	inst, err := deps.Registry.Lookup(claims.ServerName)
	if err != nil {
		return serviceErrorResult(err, deps.Logger)
	}

	tenantCtx, cleanup, err := deps.Scopes.WithTenantScope(ctx, claims.ServerName)
	if err != nil {
		return serviceErrorResult(fmt.Errorf("failed to acquire tenant scope: %w", apperrors.ErrUnavailable), deps.Logger)
	}
	defer cleanup()

	tenantCtx = models.WithUser(tenantCtx, claims.ServerName, claims.Subject)
	result, err := fn(tenantCtx, inst)
	if err != nil {
		if IsInputError(err) {
			deps.Logger.Debug("Governance tool rejected input",
				zap.String("tool", toolName),
				zap.String("server", claims.ServerName),
				zap.Error(err))
		}
		return serviceErrorResult(err, deps.Logger)
	}

	jsonResult, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", toolName, err)
	}
	return mcp.NewToolResultText(string(jsonResult)), nil
}

// pageResult is the paged listing returned by search tools.
type pageResult[T any] struct {
	Items     []T `json:"items"`
	StartFrom int `json:"start_from"`
	PageSize  int `json:"page_size"`
	Count     int `json:"count"`
}

func newPageResult[T any](items []T, startFrom, pageSize int) pageResult[T] {
	if items == nil {
		items = []T{}
	}
	return pageResult[T]{Items: items, StartFrom: startFrom, PageSize: pageSize, Count: len(items)}
}

func pagingOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("start_from", mcp.Description("Index of the first result to return (default 0)")),
		mcp.WithNumber("page_size", mcp.Description("Maximum number of results (default 0 means the server maximum)")),
	}
}

func readOnlyAnnotations() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	}
}

func registerFindDefinitionsTool(s *server.MCPServer, deps *GovernanceToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Search governance definitions (drivers, policies and controls) by title. " +
				"search_pattern is a regular expression that must match the whole title; use '.*' to list all. " +
				"Inline flags like (?i) are not supported. " +
				"Set type_name to restrict results to one kind, e.g. 'GovernancePolicy' or 'CertificationType'.",
		),
		mcp.WithString("search_pattern", mcp.Required(), mcp.Description("Regular expression matched against definition titles")),
		mcp.WithString("type_name", mcp.Description("Restrict results to this governance definition type and its subtypes")),
	}
	opts = append(opts, pagingOptions()...)
	opts = append(opts, readOnlyAnnotations()...)

	s.AddTool(mcp.NewTool("find_governance_definitions", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		pattern, err := req.RequireString("search_pattern")
		if err != nil {
			return NewErrorResult(apperrors.KindInvalidParameter.Code(), err.Error()), nil
		}
		typeName := strings.TrimSpace(req.GetString("type_name", ""))
		startFrom := req.GetInt("start_from", 0)
		pageSize := req.GetInt("page_size", 0)

		return deps.run(ctx, "find_governance_definitions", func(ctx context.Context, inst *services.ServiceInstance) (any, error) {
			defs, err := inst.Definitions.FindByTitle(ctx, typeName, pattern, startFrom, pageSize)
			if err != nil {
				return nil, err
			}
			return newPageResult(defs, startFrom, pageSize), nil
		})
	})
}

func registerGetDefinitionTool(s *server.MCPServer, deps *GovernanceToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get a governance definition by GUID, including its status, scope, domain and importance.",
		),
		mcp.WithString("guid", mcp.Required(), mcp.Description("GUID of the governance definition")),
	}
	opts = append(opts, readOnlyAnnotations()...)

	s.AddTool(mcp.NewTool("get_governance_definition", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return deps.run(ctx, "get_governance_definition", func(ctx context.Context, inst *services.ServiceInstance) (any, error) {
			guid, err := services.ParseGUID(req.GetString("guid", ""), "guid", models.TypeGovernanceDefinition)
			if err != nil {
				return nil, err
			}
			return inst.Definitions.Get(ctx, guid)
		})
	})
}

func registerGetZoneDefinitionTool(s *server.MCPServer, deps *GovernanceToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"Get a governance zone with its parent zone, child zones and the governance definitions that govern it.",
		),
		mcp.WithString("guid", mcp.Required(), mcp.Description("GUID of the governance zone")),
	}
	opts = append(opts, readOnlyAnnotations()...)

	s.AddTool(mcp.NewTool("get_zone_definition", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return deps.run(ctx, "get_zone_definition", func(ctx context.Context, inst *services.ServiceInstance) (any, error) {
			guid, err := services.ParseGUID(req.GetString("guid", ""), "guid", models.TypeGovernanceZone)
			if err != nil {
				return nil, err
			}
			return inst.Zones.GetZoneDefinition(ctx, guid)
		})
	})
}

func registerGetCertificationsTool(s *server.MCPServer, deps *GovernanceToolDeps) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(
			"List the certifications held by an element, with the certification type and the certificate properties.",
		),
		mcp.WithString("element_guid", mcp.Required(), mcp.Description("GUID of the certified element")),
	}
	opts = append(opts, pagingOptions()...)
	opts = append(opts, readOnlyAnnotations()...)

	s.AddTool(mcp.NewTool("get_certifications", opts...), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		startFrom := req.GetInt("start_from", 0)
		pageSize := req.GetInt("page_size", 0)

		return deps.run(ctx, "get_certifications", func(ctx context.Context, inst *services.ServiceInstance) (any, error) {
			guid, err := services.ParseGUID(req.GetString("element_guid", ""), "element_guid", models.TypeReferenceable)
			if err != nil {
				return nil, err
			}
			certs, err := inst.Certifications.GetCertifications(ctx, guid, models.QueryOptions{StartFrom: startFrom, PageSize: pageSize})
			if err != nil {
				return nil, err
			}
			return newPageResult(certs, startFrom, pageSize), nil
		})
	})
}
