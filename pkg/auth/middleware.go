package auth

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Middleware provides HTTP authentication middleware.
// It is thin and delegates authentication logic to AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth validates the JWT and requires a user and server name in it.
// Sets claims and token in context for downstream handlers.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return m.RequireAuthWithPathValidation("")(next)
}

// RequireAuthWithPathValidation validates the JWT and matches the URL server
// name to the token. pathParamName is the name used in r.PathValue(), e.g.
// "server" for /api/servers/{server}/governance/...; empty skips the match.
func (m *Middleware) RequireAuthWithPathValidation(pathParamName string) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			claims, token, err := m.authService.ValidateRequest(r)
			if err != nil {
				m.writeError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
				return
			}

			if err := m.authService.RequireIdentity(claims); err != nil {
				m.writeError(w, http.StatusForbidden, "user_not_authorized", err.Error())
				return
			}

			if pathParamName != "" {
				if err := m.authService.ValidateServerNameMatch(claims, r.PathValue(pathParamName)); err != nil {
					m.writeError(w, http.StatusForbidden, "user_not_authorized", "Server name mismatch between token and URL")
					return
				}
			}

			next(w, r.WithContext(WithClaims(r.Context(), claims, token)))
		}
	}
}

func (m *Middleware) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   code,
		"message": message,
	})
}
