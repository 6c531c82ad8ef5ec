package tools

import (
	"encoding/json"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
)

// ErrorResponse represents a structured error in tool results.
// It is returned as a successful tool result so that the calling agent
// sees the error details rather than a bare protocol failure.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// NewErrorResult creates a tool result containing a structured error.
// Use this for errors the caller can act on (bad parameters, unknown GUIDs).
// Repository faults are returned as Go errors instead.
func NewErrorResult(code, message string) *mcp.CallToolResult {
	return NewErrorResultWithDetails(code, message, nil)
}

// NewErrorResultWithDetails creates an error result with additional context.
func NewErrorResultWithDetails(code, message string, details any) *mcp.CallToolResult {
	resp := ErrorResponse{
		Error:   true,
		Code:    code,
		Message: message,
		Details: details,
	}
	jsonBytes, _ := json.Marshal(resp)
	result := mcp.NewToolResultText(string(jsonBytes))
	result.IsError = true
	return result
}

// errorDetails are the recovery hints of a governance error.
type errorDetails struct {
	Kind         string `json:"kind"`
	SystemAction string `json:"system_action,omitempty"`
	UserAction   string `json:"user_action,omitempty"`
}

// serviceErrorResult converts a governance service error into a tool result.
// Caller errors become structured results; repository faults are logged and
// returned as a Go error that carries the summary but not the driver detail.
func serviceErrorResult(err error, logger *zap.Logger) (*mcp.CallToolResult, error) {
	classified := apperrors.Classify(err)
	if classified.Kind == apperrors.KindPropertyServer {
		logger.Error("Governance tool call failed", zap.Error(err))
		return nil, errors.New(classified.Message)
	}
	return NewErrorResultWithDetails(classified.Kind.Code(), classified.Message, errorDetails{
		Kind:         string(classified.Kind),
		SystemAction: classified.SystemAction,
		UserAction:   classified.UserAction,
	}), nil
}

// IsInputError reports whether err was caused by the caller's input rather
// than a server failure. Input errors are logged at DEBUG, not ERROR.
func IsInputError(err error) bool {
	if err == nil {
		return false
	}
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidParameter, apperrors.KindUnrecognizedGUID, apperrors.KindUserNotAuthorized:
		return true
	}
	return false
}
