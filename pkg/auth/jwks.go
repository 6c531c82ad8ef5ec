package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidAudience is returned for a token whose aud does not include Audience.
	ErrInvalidAudience = errors.New("token audience does not include " + Audience)
	// ErrUnknownIssuer is returned for a signed token from an issuer with no configured JWKS.
	ErrUnknownIssuer = errors.New("token issuer is not trusted")
)

// signingMethods are the algorithms governance issuers sign with.
var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384"}

// clockSkew is tolerated on exp, nbf and iat between issuers and this server.
const clockSkew = 30 * time.Second

// JWKSClientInterface validates bearer tokens presented to the governance API.
type JWKSClientInterface interface {
	// ValidateToken returns the claims of a valid token.
	ValidateToken(tokenString string) (*Claims, error)
	// Close stops any background key refresh.
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// With it off, tokens are parsed unverified (development only) but the
	// audience is still checked.
	EnableVerification bool
	// JWKSEndpoints maps trusted issuer URLs to their JWKS endpoint URLs.
	JWKSEndpoints map[string]string
}

// JWKSClient validates governance tokens against the key sets of trusted
// issuers. Key sets are refreshed in the background until Close.
type JWKSClient struct {
	verify bool
	keys   map[string]keyfunc.Keyfunc
	parser *jwt.Parser
	cancel context.CancelFunc
}

// NewJWKSClient loads the key set of every configured issuer. The key sets are
// refreshed in the background until ctx is cancelled or Close is called.
func NewJWKSClient(ctx context.Context, config *JWKSConfig) (*JWKSClient, error) {
	refreshCtx, cancel := context.WithCancel(ctx)
	client := &JWKSClient{
		verify: config.EnableVerification,
		keys:   make(map[string]keyfunc.Keyfunc, len(config.JWKSEndpoints)),
		parser: jwt.NewParser(
			jwt.WithValidMethods(signingMethods),
			jwt.WithAudience(Audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(clockSkew),
		),
		cancel: cancel,
	}
	if !client.verify {
		return client, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		kf, err := keyfunc.NewDefaultCtx(refreshCtx, []string{jwksURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.keys[issuer] = kf
	}
	return client, nil
}

// ValidateToken checks the signature, audience and lifetime of a token and
// returns its claims. With verification disabled only the audience is checked.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	if !c.verify {
		return parseUnverifiedToken(tokenString)
	}

	claims := &Claims{}
	if _, err := c.parser.ParseWithClaims(tokenString, claims, c.issuerKey); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claims, nil
}

// issuerKey resolves the verification key from the key set of the token's issuer.
func (c *JWKSClient) issuerKey(token *jwt.Token) (any, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	kf, ok := c.keys[claims.Issuer]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownIssuer, claims.Issuer)
	}
	return kf.Keyfunc(token)
}

func parseUnverifiedToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser(jwt.WithoutClaimsValidation()).ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !slices.Contains(claims.Audience, Audience) {
		return nil, ErrInvalidAudience
	}
	return claims, nil
}

// Close stops the background key refresh.
func (c *JWKSClient) Close() {
	c.cancel()
}

var _ JWKSClientInterface = (*JWKSClient)(nil)
