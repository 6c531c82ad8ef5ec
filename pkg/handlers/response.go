package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
)

// ApiResponse is the envelope of every governance response.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse is the data of a paged list response.
type ListResponse struct {
	Items     any `json:"items"`
	StartFrom int `json:"start_from"`
	PageSize  int `json:"page_size"`
	Count     int `json:"count"`
}

// ErrorEnvelope is the fixed-shape body of a failed governance call.
type ErrorEnvelope struct {
	Success      bool   `json:"success"`
	Error        string `json:"error"`
	Message      string `json:"message"`
	Kind         string `json:"kind"`
	SystemAction string `json:"system_action,omitempty"`
	UserAction   string `json:"user_action,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperrors.KindOf(err) {
	case apperrors.KindInvalidParameter:
		return http.StatusBadRequest
	case apperrors.KindUnrecognizedGUID:
		return http.StatusNotFound
	case apperrors.KindUserNotAuthorized:
		return http.StatusForbidden
	}
	if errors.Is(err, apperrors.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeServiceError writes the error envelope for a service error.
func writeServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	classified := apperrors.Classify(err)
	status := StatusFor(classified)
	if status >= http.StatusInternalServerError {
		logger.Error("Governance call failed", zap.Error(err))
	}

	env := ErrorEnvelope{
		Error:        classified.Kind.Code(),
		Message:      classified.Message,
		Kind:         string(classified.Kind),
		SystemAction: classified.SystemAction,
		UserAction:   classified.UserAction,
	}
	// Repository faults may carry driver detail; callers see the summary only.
	if err := WriteJSON(w, status, env); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any, logger *zap.Logger) {
	if err := WriteJSON(w, status, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

func writeList[T any](w http.ResponseWriter, items []T, page paging, logger *zap.Logger) {
	if items == nil {
		items = []T{}
	}
	writeData(w, http.StatusOK, ListResponse{
		Items:     items,
		StartFrom: page.StartFrom,
		PageSize:  page.PageSize,
		Count:     len(items),
	}, logger)
}

func writeNoContent(w http.ResponseWriter, logger *zap.Logger) {
	writeData(w, http.StatusOK, nil, logger)
}
