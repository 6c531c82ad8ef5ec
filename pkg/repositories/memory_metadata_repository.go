package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// uniqueProperty is unique per entity type, matching uq_gov_entities_document_identifier.
const uniqueProperty = "documentIdentifier"

type memEntity struct {
	models.Entity
	seq int64
}

type memRelationship struct {
	models.Relationship
	seq int64
}

// MemoryMetadataRepository is an in-process MetadataRepository holding the
// elements of a single server. Stored properties go through a JSON round
// trip so readers see the same value shapes as with PostgreSQL.
type MemoryMetadataRepository struct {
	mu            sync.RWMutex
	serverName    string
	active        bool
	seq           int64
	entities      map[uuid.UUID]*memEntity
	relationships map[uuid.UUID]*memRelationship
	now           func() time.Time
}

// NewMemoryMetadataRepository creates an empty, active repository for serverName.
func NewMemoryMetadataRepository(serverName string) *MemoryMetadataRepository {
	return &MemoryMetadataRepository{
		serverName:    serverName,
		active:        true,
		entities:      make(map[uuid.UUID]*memEntity),
		relationships: make(map[uuid.UUID]*memRelationship),
		now:           func() time.Time { return time.Now().UTC() },
	}
}

var _ MetadataRepository = (*MemoryMetadataRepository)(nil)

// SetActive switches the repository on or off. An inactive repository fails
// MetadataCollection.
func (m *MemoryMetadataRepository) SetActive(active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = active
}

func (m *MemoryMetadataRepository) IsActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active
}

func (m *MemoryMetadataRepository) MetadataCollection(_ context.Context) (*models.MetadataCollection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.active {
		return nil, fmt.Errorf("memory repository for %s is not active", m.serverName)
	}
	return &models.MetadataCollection{ID: m.serverName, Name: "memory"}, nil
}

// ============================================================================
// Entities
// ============================================================================

func (m *MemoryMetadataRepository) AddEntity(_ context.Context, e *models.NewEntity) (uuid.UUID, error) {
	props, err := cloneProperties(e.Properties.Values())
	if err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if e.AnchorGUID != nil {
		if _, ok := m.entities[*e.AnchorGUID]; !ok {
			return uuid.Nil, apperrors.ErrNotFound
		}
	}
	if m.violatesUnique(uuid.Nil, e.TypeName, props) {
		return uuid.Nil, apperrors.ErrConflict
	}

	now := m.now()
	m.seq++
	ent := &memEntity{
		Entity: models.Entity{
			GUID:           uuid.New(),
			TypeName:       e.TypeName,
			Properties:     props,
			AnchorGUID:     copyGUID(e.AnchorGUID),
			ExternalSource: e.ExternalSource.Normalize(),
			Version:        1,
			CreatedBy:      e.CreatedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		seq: m.seq,
	}
	m.entities[ent.GUID] = ent
	return ent.GUID, nil
}

func (m *MemoryMetadataRepository) UpdateEntityProperties(_ context.Context, guid uuid.UUID, props *models.PropertyBag, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.entities[guid]
	if !ok {
		return apperrors.ErrNotFound
	}
	updated, err := cloneProperties(props.ApplyTo(ent.Properties))
	if err != nil {
		return err
	}
	if m.violatesUnique(guid, ent.TypeName, updated) {
		return apperrors.ErrConflict
	}

	ent.Properties = updated
	ent.Version++
	ent.UpdatedBy = updatedBy
	ent.UpdatedAt = m.now()
	return nil
}

func (m *MemoryMetadataRepository) DeleteEntity(_ context.Context, guid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entities[guid]; !ok {
		return apperrors.ErrNotFound
	}
	m.deleteEntityLocked(guid)
	return nil
}

// deleteEntityLocked removes guid, its relationships and its anchored
// entities. Caller holds the write lock.
func (m *MemoryMetadataRepository) deleteEntityLocked(guid uuid.UUID) {
	delete(m.entities, guid)
	for id, rel := range m.relationships {
		if rel.End1GUID == guid || rel.End2GUID == guid {
			delete(m.relationships, id)
		}
	}
	for id, ent := range m.entities {
		if ent.AnchorGUID != nil && *ent.AnchorGUID == guid {
			m.deleteEntityLocked(id)
		}
	}
}

func (m *MemoryMetadataRepository) GetEntity(_ context.Context, guid uuid.UUID) (*models.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ent, ok := m.entities[guid]
	if !ok {
		return nil, nil
	}
	return copyEntity(&ent.Entity)
}

func (m *MemoryMetadataRepository) FindEntities(_ context.Context, q models.EntityQuery) ([]*models.Entity, error) {
	matchers, err := compileMatches(q.Match)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*memEntity
	for _, ent := range m.entities {
		if len(q.TypeNames) > 0 && !contains(q.TypeNames, ent.TypeName) {
			continue
		}
		if q.AnchorGUID != nil && (ent.AnchorGUID == nil || *ent.AnchorGUID != *q.AnchorGUID) {
			continue
		}
		if !matchProperties(ent.Properties, matchers, q.MatchMode) {
			continue
		}
		hits = append(hits, ent)
	}

	sort.Slice(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if q.Sort == models.SortCreationRecent {
			a, b = b, a
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.seq < b.seq
	})

	page := models.Paginate(hits, q.StartFrom, q.PageSize)
	out := make([]*models.Entity, 0, len(page))
	for _, ent := range page {
		e, err := copyEntity(&ent.Entity)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ============================================================================
// Relationships
// ============================================================================

func (m *MemoryMetadataRepository) AddRelationship(_ context.Context, r *models.NewRelationship) (uuid.UUID, error) {
	props, err := cloneProperties(r.Properties.Values())
	if err != nil {
		return uuid.Nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	end1, ok1 := m.entities[r.End1GUID]
	end2, ok2 := m.entities[r.End2GUID]
	if !ok1 || !ok2 {
		return uuid.Nil, apperrors.ErrNotFound
	}

	now := m.now()
	m.seq++
	rel := &memRelationship{
		Relationship: models.Relationship{
			GUID:           uuid.New(),
			TypeName:       r.TypeName,
			End1GUID:       end1.GUID,
			End1TypeName:   end1.TypeName,
			End2GUID:       end2.GUID,
			End2TypeName:   end2.TypeName,
			Properties:     props,
			EffectiveFrom:  copyTime(r.Window.From),
			EffectiveTo:    copyTime(r.Window.To),
			ExternalSource: r.ExternalSource.Normalize(),
			Version:        1,
			CreatedBy:      r.CreatedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		seq: m.seq,
	}
	m.relationships[rel.GUID] = rel
	return rel.GUID, nil
}

func (m *MemoryMetadataRepository) UpdateRelationship(_ context.Context, guid uuid.UUID, props *models.PropertyBag, window *models.EffectivityWindow, updatedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel, ok := m.relationships[guid]
	if !ok {
		return apperrors.ErrNotFound
	}
	updated, err := cloneProperties(props.ApplyTo(rel.Properties))
	if err != nil {
		return err
	}

	rel.Properties = updated
	if window != nil {
		rel.EffectiveFrom = copyTime(window.From)
		rel.EffectiveTo = copyTime(window.To)
	}
	rel.Version++
	rel.UpdatedBy = updatedBy
	rel.UpdatedAt = m.now()
	return nil
}

func (m *MemoryMetadataRepository) RemoveRelationship(_ context.Context, guid uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.relationships[guid]; !ok {
		return apperrors.ErrNotFound
	}
	delete(m.relationships, guid)
	return nil
}

func (m *MemoryMetadataRepository) GetRelationship(_ context.Context, guid uuid.UUID) (*models.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rel, ok := m.relationships[guid]
	if !ok {
		return nil, nil
	}
	return copyRelationship(&rel.Relationship)
}

func (m *MemoryMetadataRepository) GetRelationshipsForEntity(_ context.Context, guid uuid.UUID, relType string, dir models.Direction) ([]*models.Relationship, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*memRelationship
	for _, rel := range m.relationships {
		if relType != "" && rel.TypeName != relType {
			continue
		}
		switch dir {
		case models.DirectionEnd1:
			if rel.End1GUID != guid {
				continue
			}
		case models.DirectionEnd2:
			if rel.End2GUID != guid {
				continue
			}
		default:
			if rel.End1GUID != guid && rel.End2GUID != guid {
				continue
			}
		}
		hits = append(hits, rel)
	}

	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.Before(hits[j].CreatedAt)
		}
		return hits[i].seq < hits[j].seq
	})

	out := make([]*models.Relationship, 0, len(hits))
	for _, rel := range hits {
		r, err := copyRelationship(&rel.Relationship)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// ============================================================================
// Helpers
// ============================================================================

// violatesUnique reports whether another entity of typeName (other than self)
// already carries the unique property value in props.
func (m *MemoryMetadataRepository) violatesUnique(self uuid.UUID, typeName string, props map[string]any) bool {
	v, ok := props[uniqueProperty]
	if !ok {
		return false
	}
	for id, ent := range m.entities {
		if id == self || ent.TypeName != typeName {
			continue
		}
		if other, ok := ent.Properties[uniqueProperty]; ok && jsonEqual(other, v) {
			return true
		}
	}
	return false
}

type propertyMatcher struct {
	name   string
	values []any
	re     *regexp.Regexp
}

func compileMatches(matches []models.PropertyMatch) ([]propertyMatcher, error) {
	out := make([]propertyMatcher, 0, len(matches))
	for _, m := range matches {
		pm := propertyMatcher{name: m.Name, values: m.Values}
		if m.Regex != "" {
			if err := CheckPattern(m.Regex); err != nil {
				return nil, fmt.Errorf("invalid pattern for %s: %w", m.Name, err)
			}
			re, err := regexp.Compile("^(?:" + m.Regex + ")$")
			if err != nil {
				return nil, fmt.Errorf("invalid pattern for %s: %w", m.Name, err)
			}
			pm.re = re
		}
		out = append(out, pm)
	}
	return out, nil
}

func matchProperties(props map[string]any, matchers []propertyMatcher, mode models.MatchMode) bool {
	if len(matchers) == 0 {
		return true
	}
	for _, pm := range matchers {
		ok := pm.matches(props)
		if mode == models.MatchAny && ok {
			return true
		}
		if mode == models.MatchAll && !ok {
			return false
		}
	}
	return mode == models.MatchAll
}

func (pm propertyMatcher) matches(props map[string]any) bool {
	v, present := props[pm.name]
	switch {
	case pm.re != nil:
		s, ok := v.(string)
		return ok && pm.re.MatchString(s)
	case len(pm.values) > 0:
		for _, want := range pm.values {
			if present && jsonEqual(v, want) {
				return true
			}
		}
		return false
	default:
		return present
	}
}

func jsonEqual(a, b any) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && bytes.Equal(ja, jb)
}

func cloneProperties(props map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	return decodeProperties(raw)
}

func copyEntity(e *models.Entity) (*models.Entity, error) {
	props, err := cloneProperties(e.Properties)
	if err != nil {
		return nil, err
	}
	out := *e
	out.Properties = props
	out.AnchorGUID = copyGUID(e.AnchorGUID)
	out.ExternalSource = e.ExternalSource.Normalize()
	return &out, nil
}

func copyRelationship(r *models.Relationship) (*models.Relationship, error) {
	props, err := cloneProperties(r.Properties)
	if err != nil {
		return nil, err
	}
	out := *r
	out.Properties = props
	out.EffectiveFrom = copyTime(r.EffectiveFrom)
	out.EffectiveTo = copyTime(r.EffectiveTo)
	out.ExternalSource = r.ExternalSource.Normalize()
	return &out, nil
}

func copyGUID(g *uuid.UUID) *uuid.UUID {
	if g == nil {
		return nil
	}
	out := *g
	return &out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	out := *t
	return &out
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
