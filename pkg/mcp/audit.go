package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/audit"
	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/logging"
)

// Outcome labels of MCP tool calls.
const (
	OutcomeToolError     = "tool_error"
	OutcomeProtocolError = "protocol_error"
)

// ToolAuditor logs every MCP tool call and feeds the optional recorder.
// Methods are recorded as "mcp:<tool>".
type ToolAuditor struct {
	logger   *zap.Logger
	recorder audit.Recorder

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

// NewToolAuditor creates a ToolAuditor. recorder may be nil.
func NewToolAuditor(logger *zap.Logger, recorder audit.Recorder) *ToolAuditor {
	return &ToolAuditor{
		logger:   logger.Named("mcp_audit"),
		recorder: recorder,
	}
}

// Hooks returns mcp-go Hooks configured to capture tool call events.
func (a *ToolAuditor) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(a.beforeCallTool)
	hooks.AddAfterCallTool(a.afterCallTool)
	hooks.AddOnError(a.onError)
	return hooks
}

func (a *ToolAuditor) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	a.startTimes.Store(id, time.Now())
}

func (a *ToolAuditor) afterCallTool(ctx context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	outcome := audit.OutcomeSuccess
	if result != nil && result.IsError {
		outcome = OutcomeToolError
	}
	a.complete(ctx, id, req, outcome, nil)
}

func (a *ToolAuditor) onError(ctx context.Context, id any, method mcplib.MCPMethod, message any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	req, ok := message.(*mcplib.CallToolRequest)
	if !ok {
		return
	}
	a.complete(ctx, id, req, OutcomeProtocolError, err)
}

func (a *ToolAuditor) complete(ctx context.Context, id any, req *mcplib.CallToolRequest, outcome string, err error) {
	elapsed := time.Since(a.loadAndDeleteStart(id))

	var userID, serverName string
	if claims, ok := auth.GetClaims(ctx); ok && claims != nil {
		userID = claims.Subject
		serverName = claims.ServerName
	}

	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.String("server", serverName),
		zap.String("user_id", userID),
		zap.String("outcome", outcome),
		zap.Duration("duration", elapsed),
	}
	if args, ok := req.Params.Arguments.(map[string]any); ok {
		fields = append(fields, zap.Any("arguments", logging.SanitizeArguments(args)))
	}

	if err != nil {
		a.logger.Info("tool call failed", append(fields, zap.String("error", logging.SanitizeError(err)))...)
	} else {
		a.logger.Debug("tool call completed", fields...)
	}

	if a.recorder != nil {
		a.recorder.ObserveCall(serverName, "mcp:"+req.Params.Name, outcome, elapsed)
	}
}

func (a *ToolAuditor) loadAndDeleteStart(id any) time.Time {
	if v, ok := a.startTimes.LoadAndDelete(id); ok {
		return v.(time.Time)
	}
	return time.Now()
}
