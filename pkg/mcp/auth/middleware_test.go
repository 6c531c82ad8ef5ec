package mcpauth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
)

type mockAuthService struct {
	claims      *auth.Claims
	token       string
	validateErr error
	identityErr error
	matchErr    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireIdentity(claims *auth.Claims) error {
	return m.identityErr
}

func (m *mockAuthService) ValidateServerNameMatch(claims *auth.Claims, urlServerName string) error {
	return m.matchErr
}

func testClaims() *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "garygeeke"},
		ServerName:       "cocoMDS1",
	}
}

func TestMiddleware_RequireAuth_Success(t *testing.T) {
	svc := &mockAuthService{claims: testClaims(), token: "test-token"}
	m := NewMiddleware(svc, zap.NewNop())

	var gotClaims *auth.Claims
	var gotToken string
	mux := http.NewServeMux()
	mux.Handle("POST /mcp/{server}", m.RequireAuth("server")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims, _ = auth.GetClaims(r.Context())
		gotToken, _ = auth.GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp/cocoMDS1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "garygeeke", gotClaims.Subject)
	assert.Equal(t, "test-token", gotToken)
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestMiddleware_RequireAuth_Failures(t *testing.T) {
	tests := []struct {
		name       string
		svc        *mockAuthService
		server     string
		wantStatus int
		wantError  string
	}{
		{"invalid token", &mockAuthService{validateErr: errors.New("expired")}, "cocoMDS1", http.StatusUnauthorized, `error="invalid_token"`},
		{"no identity", &mockAuthService{claims: testClaims(), identityErr: auth.ErrMissingSubject}, "cocoMDS1", http.StatusUnauthorized, `error="invalid_token"`},
		{"missing server in path", &mockAuthService{claims: testClaims()}, "", http.StatusBadRequest, `error="invalid_request"`},
		{"server mismatch", &mockAuthService{claims: testClaims(), matchErr: auth.ErrServerNameMismatch}, "cocoMDS2", http.StatusForbidden, `error="insufficient_scope"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewMiddleware(tt.svc, zap.NewNop()).RequireAuth("server")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
			}))

			req := httptest.NewRequest(http.MethodPost, "/mcp/x", nil)
			req.SetPathValue("server", tt.server)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.False(t, called)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Header().Get("WWW-Authenticate"), tt.wantError)
		})
	}
}
