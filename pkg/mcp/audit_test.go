package mcp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
)

type observation struct {
	server, method, outcome string
}

type fakeRecorder struct {
	mu    sync.Mutex
	calls []observation
}

func (r *fakeRecorder) ObserveCall(server, method, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, observation{server, method, outcome})
}

func newAuditedServer(t *testing.T) (*Server, *fakeRecorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	rec := &fakeRecorder{}
	auditor := NewToolAuditor(zap.New(core), rec)

	s := NewServer(ServerName, "1.0.0", zap.NewNop(), server.WithHooks(auditor.Hooks()))
	s.RegisterTool(mcplib.NewTool("ok_tool", mcplib.WithString("api_key")), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultText("{}"), nil
	})
	s.RegisterTool(mcplib.NewTool("rejecting_tool"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultError("bad input"), nil
	})
	s.RegisterTool(mcplib.NewTool("failing_tool"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return nil, errors.New("repository down: password=hunter2")
	})
	return s, rec, logs
}

func auditCtx() context.Context {
	claims := &auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "user1"}, ServerName: "cocoMDS1"}
	return auth.WithClaims(context.Background(), claims, "t")
}

func TestToolAuditor_RecordsOutcomes(t *testing.T) {
	s, rec, logs := newAuditedServer(t)

	s.MCP().HandleMessage(auditCtx(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ok_tool","arguments":{"api_key":"s3cret"}}}`))
	s.MCP().HandleMessage(auditCtx(), []byte(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"rejecting_tool"}}`))
	s.MCP().HandleMessage(auditCtx(), []byte(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"failing_tool"}}`))

	assert.Equal(t, []observation{
		{"cocoMDS1", "mcp:ok_tool", "success"},
		{"cocoMDS1", "mcp:rejecting_tool", OutcomeToolError},
		{"cocoMDS1", "mcp:failing_tool", OutcomeProtocolError},
	}, rec.calls)

	completed := logs.FilterMessage("tool call completed").All()
	require.Len(t, completed, 2)
	args, ok := completed[0].ContextMap()["arguments"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", args["api_key"])
	assert.Equal(t, "user1", completed[0].ContextMap()["user_id"])

	failed := logs.FilterMessage("tool call failed").All()
	require.Len(t, failed, 1)
	assert.NotContains(t, failed[0].ContextMap()["error"], "hunter2")
}

func TestToolAuditor_IgnoresOtherMethods(t *testing.T) {
	s, rec, logs := newAuditedServer(t)
	s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"resources/list"}`))

	assert.Empty(t, rec.calls)
	assert.Zero(t, logs.Len())
}

func TestToolAuditor_NilRecorder(t *testing.T) {
	auditor := NewToolAuditor(zap.NewNop(), nil)
	s := NewServer(ServerName, "1.0.0", zap.NewNop(), server.WithHooks(auditor.Hooks()))
	s.RegisterTool(mcplib.NewTool("ok_tool"), func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		return mcplib.NewToolResultText("{}"), nil
	})

	assert.NotPanics(t, func() {
		s.MCP().HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"ok_tool"}}`))
	})
}
