package auth

import (
	"context"
	"testing"
)

func TestGetClaims(t *testing.T) {
	claims := &Claims{ServerName: "cocoMDS1"}
	claims.Subject = "user-123"

	got, ok := GetClaims(WithClaims(context.Background(), claims, "tok"))
	if !ok {
		t.Fatal("expected claims to be found")
	}
	if got.Subject != "user-123" || got.ServerName != "cocoMDS1" {
		t.Errorf("unexpected claims %+v", got)
	}

	if _, ok := GetClaims(context.Background()); ok {
		t.Error("expected claims to not be found")
	}

	wrongType := context.WithValue(context.Background(), ClaimsKey, "not-a-claims-struct")
	if _, ok := GetClaims(wrongType); ok {
		t.Error("expected claims to not be found when wrong type")
	}
}

func TestGetToken(t *testing.T) {
	got, ok := GetToken(WithClaims(context.Background(), &Claims{}, "test-token-abc123"))
	if !ok || got != "test-token-abc123" {
		t.Errorf("expected 'test-token-abc123', got %q (found=%v)", got, ok)
	}

	if _, ok := GetToken(context.WithValue(context.Background(), TokenKey, 12345)); ok {
		t.Error("expected token to not be found when wrong type")
	}
}

func TestContextHelpers(t *testing.T) {
	claims := &Claims{ServerName: "cocoMDS1"}
	claims.Subject = "garygeeke"
	ctx := WithClaims(context.Background(), claims, "tok")

	if got := GetUserIDFromContext(ctx); got != "garygeeke" {
		t.Errorf("GetUserIDFromContext = %q", got)
	}
	if got := GetServerNameFromContext(ctx); got != "cocoMDS1" {
		t.Errorf("GetServerNameFromContext = %q", got)
	}
	if _, err := RequireUserIDFromContext(ctx); err != nil {
		t.Errorf("RequireUserIDFromContext failed: %v", err)
	}

	empty := context.Background()
	if GetUserIDFromContext(empty) != "" || GetServerNameFromContext(empty) != "" {
		t.Error("expected empty values without claims")
	}
	if _, err := RequireUserIDFromContext(empty); err == nil {
		t.Error("expected error without claims")
	}
}
