// Package mcpauth authenticates MCP requests. Failures are answered with
// RFC 6750 Bearer token errors instead of the JSON envelope of the REST API.
package mcpauth

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
)

// Middleware authenticates MCP requests against the core auth service.
type Middleware struct {
	authService auth.AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new MCP auth middleware.
func NewMiddleware(authService auth.AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and requires its server claim to match the
// path value named pathParamName, e.g. "server" for /mcp/{server}.
func (m *Middleware) RequireAuth(pathParamName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			if err != nil {
				m.logger.Debug("MCP auth failed: invalid or missing token",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired")
				return
			}

			if err := m.authService.RequireIdentity(claims); err != nil {
				m.logger.Debug("MCP auth failed: incomplete identity",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				m.writeWWWAuthenticate(w, http.StatusUnauthorized, "invalid_token", "The access token does not name a user and server")
				return
			}

			urlServerName := r.PathValue(pathParamName)
			if urlServerName == "" {
				m.logger.Error("MCP auth failed: missing server name in URL path",
					zap.String("path", r.URL.Path),
					zap.String("path_param", pathParamName))
				m.writeWWWAuthenticate(w, http.StatusBadRequest, "invalid_request", "Missing server name in URL")
				return
			}

			if err := m.authService.ValidateServerNameMatch(claims, urlServerName); err != nil {
				m.writeWWWAuthenticate(w, http.StatusForbidden, "insufficient_scope", "The access token does not have access to this server")
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims, token)))
		})
	}
}

// writeWWWAuthenticate writes an RFC 6750 Bearer token error response.
// See: https://datatracker.ietf.org/doc/html/rfc6750#section-3
func (m *Middleware) writeWWWAuthenticate(w http.ResponseWriter, status int, errorCode, description string) {
	headerValue := `Bearer error="` + errorCode + `", error_description="` + description + `"`
	w.Header().Set("WWW-Authenticate", headerValue)
	w.WriteHeader(status)
}
