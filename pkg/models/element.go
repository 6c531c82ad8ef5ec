package models

import (
	"time"

	"github.com/google/uuid"
)

// ElementHeader is carried by every element returned to callers.
type ElementHeader struct {
	GUID           uuid.UUID       `json:"guid"`
	TypeName       string          `json:"type_name"`
	ExternalSource *ExternalSource `json:"external_source,omitempty"`
	Version        int64           `json:"version"`
	CreatedBy      string          `json:"created_by"`
	UpdatedBy      string          `json:"updated_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ElementStub is the lightweight description of the far end of a relationship.
type ElementStub struct {
	GUID          uuid.UUID `json:"guid"`
	TypeName      string    `json:"type_name"`
	QualifiedName string    `json:"qualified_name,omitempty"`
	DisplayName   string    `json:"display_name,omitempty"`
}

// QueryOptions pages a relationship listing and optionally restricts it to
// relationships effective at EffectiveTime.
type QueryOptions struct {
	StartFrom     int
	PageSize      int // 0 = unbounded
	EffectiveTime *time.Time
}

// Paginate applies offset pagination to items. pageSize 0 returns everything
// from startFrom onwards.
func Paginate[T any](items []T, startFrom, pageSize int) []T {
	if startFrom >= len(items) {
		return []T{}
	}
	end := len(items)
	if pageSize > 0 && startFrom+pageSize < end {
		end = startFrom + pageSize
	}
	return items[startFrom:end]
}
