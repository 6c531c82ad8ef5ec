// Package models contains domain types for the governance program service.
package models

import (
	"context"
)

// ExternalSource identifies a third-party metadata source that originated a
// change. A nil *ExternalSource means the change is locally originated.
type ExternalSource struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

// IsZero returns true when neither field is set.
func (s *ExternalSource) IsZero() bool {
	return s == nil || (s.GUID == "" && s.Name == "")
}

// Normalize returns nil for an empty source so callers can store it directly.
func (s *ExternalSource) Normalize() *ExternalSource {
	if s.IsZero() {
		return nil
	}
	out := *s
	return &out
}

// ProvenanceContext carries the acting user and the external source through
// a single governance call.
type ProvenanceContext struct {
	// UserID is the acting user. Taken from the JWT subject for HTTP and MCP calls.
	UserID string

	// ServerName is the tenant the call is addressed to.
	ServerName string

	// ExternalSource is nil for locally originated calls.
	ExternalSource *ExternalSource
}

// IsLocal returns true when the call did not come from an external source.
func (p ProvenanceContext) IsLocal() bool {
	return p.ExternalSource.IsZero()
}

// provenanceKey is the context key for storing provenance information.
type provenanceKey struct{}

// WithProvenance returns a new context with provenance information attached.
func WithProvenance(ctx context.Context, p ProvenanceContext) context.Context {
	p.ExternalSource = p.ExternalSource.Normalize()
	return context.WithValue(ctx, provenanceKey{}, p)
}

// GetProvenance retrieves provenance information from the context.
// Returns the provenance context and true if present, otherwise a zero value and false.
func GetProvenance(ctx context.Context) (ProvenanceContext, bool) {
	p, ok := ctx.Value(provenanceKey{}).(ProvenanceContext)
	return p, ok
}

// WithUser is shorthand for a locally originated call by userID.
func WithUser(ctx context.Context, serverName, userID string) context.Context {
	return WithProvenance(ctx, ProvenanceContext{UserID: userID, ServerName: serverName})
}

// WithExternalSource returns ctx with the external source replaced. The user
// and server already on ctx are kept.
func WithExternalSource(ctx context.Context, source *ExternalSource) context.Context {
	p, _ := GetProvenance(ctx)
	p.ExternalSource = source
	return WithProvenance(ctx, p)
}
