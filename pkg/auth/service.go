package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrMissingSubject       = errors.New("missing subject in token")
	ErrMissingServerName    = errors.New("missing server name in token")
	ErrServerNameMismatch   = errors.New("server name mismatch between token and URL")
)

// AuthService defines the interface for authentication operations.
type AuthService interface {
	// ValidateRequest extracts and validates a JWT from the request.
	// It checks for the token in:
	//   1. Cookie named "ekaya_jwt" (browser clients)
	//   2. Authorization header with "Bearer" scheme (API clients)
	// Returns the validated claims, the raw token string, or an error.
	ValidateRequest(r *http.Request) (*Claims, string, error)

	// RequireIdentity validates that the claims name a user and a server.
	RequireIdentity(claims *Claims) error

	// ValidateServerNameMatch ensures the URL server name matches the token.
	// If urlServerName is empty, validation is skipped.
	ValidateServerNameMatch(claims *Claims, urlServerName string) error
}

type authService struct {
	jwksClient JWKSClientInterface
	logger     *zap.Logger
}

// NewAuthService creates a new AuthService with the given JWKS client and logger.
func NewAuthService(jwksClient JWKSClientInterface, logger *zap.Logger) AuthService {
	return &authService{
		jwksClient: jwksClient,
		logger:     logger.Named("auth"),
	}
}

func (s *authService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	var tokenString string
	var tokenSource string

	if cookie, err := r.Cookie("ekaya_jwt"); err == nil {
		tokenString = cookie.Value
		tokenSource = "cookie"
	} else {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.logger.Debug("No JWT found in request",
				zap.String("path", r.URL.Path),
				zap.String("method", r.Method))
			return nil, "", ErrMissingAuthorization
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			s.logger.Debug("Invalid Authorization header format",
				zap.String("path", r.URL.Path))
			return nil, "", ErrInvalidAuthFormat
		}
		tokenString = parts[1]
		tokenSource = "header"
	}

	claims, err := s.jwksClient.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("JWT validation failed",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("token_source", tokenSource))
		return nil, "", err
	}

	return claims, tokenString, nil
}

func (s *authService) RequireIdentity(claims *Claims) error {
	if claims.Subject == "" {
		return ErrMissingSubject
	}
	if claims.ServerName == "" {
		return ErrMissingServerName
	}
	return nil
}

func (s *authService) ValidateServerNameMatch(claims *Claims, urlServerName string) error {
	if urlServerName != "" && claims.ServerName != urlServerName {
		s.logger.Warn("Server name mismatch",
			zap.String("url_server", urlServerName),
			zap.String("token_server", claims.ServerName))
		return ErrServerNameMismatch
	}
	return nil
}

var _ AuthService = (*authService)(nil)
