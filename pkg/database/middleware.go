package database

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
)

// WithTenantContext creates middleware that binds a connection to the server
// named in the JWT claims. It runs AFTER auth middleware, which has already
// checked the claim against the {server} path value. The connection is
// released after the handler returns.
//
// With a nil db (in-memory backend) the middleware passes requests through.
func WithTenantContext(db *DB, logger *zap.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		if db == nil {
			return next
		}
		return func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.GetClaims(r.Context())
			if !ok || claims.ServerName == "" {
				logger.Error("Missing server context in claims")
				writeError(w, http.StatusInternalServerError, "internal_error", "Missing server context")
				return
			}

			scope, err := db.WithTenant(r.Context(), claims.ServerName)
			if err != nil {
				logger.Error("Failed to acquire tenant connection",
					zap.String("server", claims.ServerName),
					zap.Error(err))
				writeError(w, http.StatusServiceUnavailable, "property_server_error", "Metadata repository unavailable")
				return
			}
			defer scope.Close()

			ctx := SetTenantScope(r.Context(), scope)
			next(w, r.WithContext(ctx))
		}
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   errorCode,
		"message": message,
	})
}
