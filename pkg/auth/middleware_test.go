package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

// mockAuthService is a mock implementation of AuthService for testing.
type mockAuthService struct {
	claims           *Claims
	token            string
	validateErr      error
	identityErr      error
	validateMatchErr error
	matchedServer    string
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*Claims, string, error) {
	if m.validateErr != nil {
		return nil, "", m.validateErr
	}
	return m.claims, m.token, nil
}

func (m *mockAuthService) RequireIdentity(claims *Claims) error {
	return m.identityErr
}

func (m *mockAuthService) ValidateServerNameMatch(claims *Claims, urlServerName string) error {
	m.matchedServer = urlServerName
	return m.validateMatchErr
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestMiddleware_RequireAuthWithPathValidation_Success(t *testing.T) {
	authService := &mockAuthService{claims: userClaims("u1", "cocoMDS1"), token: "test-token"}
	middleware := NewMiddleware(authService, zap.NewNop())

	var ctxClaims *Claims
	var ctxToken string
	handler := middleware.RequireAuthWithPathValidation("server")(func(w http.ResponseWriter, r *http.Request) {
		ctxClaims, _ = GetClaims(r.Context())
		ctxToken, _ = GetToken(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/servers/cocoMDS1/governance/definitions", nil)
	req.SetPathValue("server", "cocoMDS1")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if authService.matchedServer != "cocoMDS1" {
		t.Errorf("expected path value passed to match, got %q", authService.matchedServer)
	}
	if ctxClaims == nil || ctxClaims.ServerName != "cocoMDS1" {
		t.Error("expected claims to be set in context")
	}
	if ctxToken != "test-token" {
		t.Errorf("expected token 'test-token' in context, got %q", ctxToken)
	}
}

func TestMiddleware_RequireAuthWithPathValidation_Failures(t *testing.T) {
	tests := []struct {
		name       string
		service    *mockAuthService
		wantStatus int
		wantCode   string
	}{
		{
			name:       "unauthenticated",
			service:    &mockAuthService{validateErr: ErrMissingAuthorization},
			wantStatus: http.StatusUnauthorized,
			wantCode:   "unauthorized",
		},
		{
			name:       "no subject",
			service:    &mockAuthService{claims: userClaims("", "s"), identityErr: ErrMissingSubject},
			wantStatus: http.StatusForbidden,
			wantCode:   "user_not_authorized",
		},
		{
			name:       "server mismatch",
			service:    &mockAuthService{claims: userClaims("u", "s"), validateMatchErr: ErrServerNameMismatch},
			wantStatus: http.StatusForbidden,
			wantCode:   "user_not_authorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			middleware := NewMiddleware(tt.service, zap.NewNop())
			called := false
			handler := middleware.RequireAuthWithPathValidation("server")(func(w http.ResponseWriter, r *http.Request) {
				called = true
			})

			req := httptest.NewRequest(http.MethodGet, "/api/servers/other/governance/zones", nil)
			req.SetPathValue("server", "other")
			rec := httptest.NewRecorder()
			handler(rec, req)

			if called {
				t.Error("expected handler not to be called")
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			body := decodeError(t, rec)
			if body["error"] != tt.wantCode || body["success"] != false {
				t.Errorf("unexpected error body %v", body)
			}
		})
	}
}

func TestMiddleware_RequireAuth_SkipsServerMatch(t *testing.T) {
	authService := &mockAuthService{claims: userClaims("u1", "cocoMDS1"), validateMatchErr: ErrServerNameMismatch}
	middleware := NewMiddleware(authService, zap.NewNop())

	called := false
	handler := middleware.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/mcp", nil))

	if !called {
		t.Error("expected handler to be called")
	}
}
