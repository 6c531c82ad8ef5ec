// Package auth provides JWT-based authentication for ekaya-governance.
// It validates tokens using JWKS endpoints and carries the acting user and
// the addressed server name into the request context.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ClaimsKey is the context key for storing JWT claims.
	ClaimsKey contextKey = "claims"
	// TokenKey is the context key for storing the raw JWT token string.
	TokenKey contextKey = "token"
)

// Audience is the aud value tokens must carry to call the governance API.
const Audience = "governance"

// Claims represents the JWT claims structure.
// It embeds RegisteredClaims for standard JWT fields (sub, iss, exp, etc.)
// and adds the server the token is scoped to.
type Claims struct {
	jwt.RegisteredClaims
	ServerName string   `json:"srv,omitempty"`   // Governance server the token is scoped to
	Email      string   `json:"email,omitempty"` // User email address
	Roles      []string `json:"roles,omitempty"` // User roles on the server
}

// GetClaims retrieves JWT claims from the request context.
// Returns nil and false if claims are not present.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(ClaimsKey).(*Claims)
	return claims, ok
}

// GetToken retrieves the raw JWT token string from the request context.
// Returns empty string and false if token is not present.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(TokenKey).(string)
	return token, ok
}

// WithClaims returns ctx carrying claims and the raw token.
func WithClaims(ctx context.Context, claims *Claims, token string) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	return context.WithValue(ctx, TokenKey, token)
}
