package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// GovernanceZoneService manages governance zones, the zone hierarchy and the
// definitions that govern each zone. Zones form a tree: a zone has at most
// one parent.
type GovernanceZoneService interface {
	Create(ctx context.Context, props models.GovernanceZoneProperties) (uuid.UUID, error)
	Update(ctx context.Context, guid uuid.UUID, props models.GovernanceZoneProperties, isMergeUpdate bool) error
	Delete(ctx context.Context, guid uuid.UUID) error
	Get(ctx context.Context, guid uuid.UUID) (*models.GovernanceZone, error)

	// GetByName returns the zone with the qualified name, or nil.
	GetByName(ctx context.Context, qualifiedName string) (*models.GovernanceZone, error)

	// FindZones returns zones whose qualified name fully matches the regular
	// expression, oldest first.
	FindZones(ctx context.Context, searchPattern string, startFrom, pageSize int) ([]*models.GovernanceZone, error)

	// GetZonesForDomain returns the zones of a domain plus those for every
	// domain (0). domainIdentifier 0 returns every zone.
	GetZonesForDomain(ctx context.Context, domainIdentifier, startFrom, pageSize int) ([]*models.GovernanceZone, error)

	// LinkZonesInHierarchy makes parentGUID the parent of childGUID. Linking
	// the same pair again is a no-op; a child with another parent, or a link
	// that would close a cycle, is rejected.
	LinkZonesInHierarchy(ctx context.Context, parentGUID, childGUID uuid.UUID) error

	// UnlinkZonesInHierarchy removes the parent link, if any.
	UnlinkZonesInHierarchy(ctx context.Context, parentGUID, childGUID uuid.UUID) error

	// LinkDefinitionToZone records that the zone is governed by the definition.
	LinkDefinitionToZone(ctx context.Context, definitionGUID, zoneGUID uuid.UUID) error

	// UnlinkDefinitionFromZone removes the GovernedBy link, if any.
	UnlinkDefinitionFromZone(ctx context.Context, definitionGUID, zoneGUID uuid.UUID) error

	// GetZoneDefinition returns the zone with its parent, its direct children
	// and the definitions governing it.
	GetZoneDefinition(ctx context.Context, guid uuid.UUID) (*models.GovernanceZoneDefinition, error)
}

type governanceZoneService struct {
	*core
}

var _ GovernanceZoneService = (*governanceZoneService)(nil)

// NewGovernanceZoneService creates the governance zone handler of one server.
func NewGovernanceZoneService(serverName string, deps Dependencies) GovernanceZoneService {
	return &governanceZoneService{core: newCore(serverName, deps, "governance-zone-service")}
}

func (s *governanceZoneService) Create(ctx context.Context, props models.GovernanceZoneProperties) (guid uuid.UUID, err error) {
	defer s.track(ctx, "createGovernanceZone")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if err := validateName(props.QualifiedName, "qualifiedName"); err != nil {
		return uuid.Nil, err
	}
	if err := validateDomain(props.DomainIdentifier); err != nil {
		return uuid.Nil, err
	}

	release, err := s.lock(ctx, locks.QualifiedNameKey(s.serverName, models.TypeGovernanceZone, props.QualifiedName))
	if err != nil {
		return uuid.Nil, err
	}
	defer release()

	if err := s.checkNameFree(ctx, props.QualifiedName, uuid.Nil); err != nil {
		return uuid.Nil, err
	}

	guid, err = s.repo.AddEntity(ctx, &models.NewEntity{
		TypeName:       models.TypeGovernanceZone,
		Properties:     mapper.ZoneProperties(props, true),
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	if err != nil {
		return uuid.Nil, apperrors.PropertyServer(err, "failed to create governance zone %q", props.QualifiedName)
	}

	s.logger.Debug("Created governance zone",
		zap.String("guid", guid.String()),
		zap.String("qualified_name", props.QualifiedName))
	return guid, nil
}

func (s *governanceZoneService) Update(ctx context.Context, guid uuid.UUID, props models.GovernanceZoneProperties, isMergeUpdate bool) (err error) {
	defer s.track(ctx, "updateGovernanceZone")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	stored, err := s.getEntity(ctx, guid, "guid", models.TypeGovernanceZone)
	if err != nil {
		return err
	}
	if !isMergeUpdate {
		if err := validateName(props.QualifiedName, "qualifiedName"); err != nil {
			return err
		}
	}
	if err := validateDomain(props.DomainIdentifier); err != nil {
		return err
	}
	bag := mapper.ZoneProperties(props, !isMergeUpdate)
	if bag.Len() == 0 {
		return nil
	}

	if props.QualifiedName != "" && props.QualifiedName != mapper.ToGovernanceZone(stored).QualifiedName {
		release, err := s.lock(ctx, locks.QualifiedNameKey(s.serverName, models.TypeGovernanceZone, props.QualifiedName))
		if err != nil {
			return err
		}
		defer release()

		if err := s.checkNameFree(ctx, props.QualifiedName, guid); err != nil {
			return err
		}
	}

	if err := s.repo.UpdateEntityProperties(ctx, guid, bag, p.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), models.TypeGovernanceZone)
		}
		return apperrors.PropertyServer(err, "failed to update governance zone %s", guid)
	}
	return nil
}

func (s *governanceZoneService) Delete(ctx context.Context, guid uuid.UUID) (err error) {
	defer s.track(ctx, "deleteGovernanceZone")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, guid, "guid", models.TypeGovernanceZone); err != nil {
		return err
	}
	if err := s.repo.DeleteEntity(ctx, guid); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), models.TypeGovernanceZone)
		}
		return apperrors.PropertyServer(err, "failed to delete governance zone %s", guid)
	}
	return nil
}

func (s *governanceZoneService) Get(ctx context.Context, guid uuid.UUID) (zone *models.GovernanceZone, err error) {
	defer s.track(ctx, "getGovernanceZoneByGUID")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	stored, err := s.getEntity(ctx, guid, "guid", models.TypeGovernanceZone)
	if err != nil {
		return nil, err
	}
	return mapper.ToGovernanceZone(stored), nil
}

func (s *governanceZoneService) GetByName(ctx context.Context, qualifiedName string) (zone *models.GovernanceZone, err error) {
	defer s.track(ctx, "getGovernanceZoneByName")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	if err := validateName(qualifiedName, "qualifiedName"); err != nil {
		return nil, err
	}
	stored, err := s.zoneByName(ctx, qualifiedName)
	if err != nil || stored == nil {
		return nil, err
	}
	return mapper.ToGovernanceZone(stored), nil
}

func (s *governanceZoneService) FindZones(ctx context.Context, searchPattern string, startFrom, pageSize int) (zones []*models.GovernanceZone, err error) {
	defer s.track(ctx, "findGovernanceZones")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	if err := validateSearchPattern(searchPattern, "searchPattern"); err != nil {
		return nil, err
	}
	found, err := s.find(ctx, models.EntityQuery{
		TypeNames: []string{models.TypeGovernanceZone},
		Match:     []models.PropertyMatch{{Name: mapper.PropQualifiedName, Regex: searchPattern}},
		Sort:      models.SortCreationOldest,
		StartFrom: startFrom,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return toZones(found), nil
}

func (s *governanceZoneService) GetZonesForDomain(ctx context.Context, domainIdentifier, startFrom, pageSize int) (zones []*models.GovernanceZone, err error) {
	defer s.track(ctx, "getGovernanceZonesForDomain")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	if domainIdentifier < 0 {
		return nil, apperrors.InvalidParameter("domainIdentifier must not be negative")
	}
	q := models.EntityQuery{
		TypeNames: []string{models.TypeGovernanceZone},
		Sort:      models.SortCreationOldest,
		StartFrom: startFrom,
		PageSize:  pageSize,
	}
	if domainIdentifier != 0 {
		q.Match = []models.PropertyMatch{{
			Name:   mapper.PropDomainIdentifier,
			Values: []any{domainIdentifier, 0},
		}}
	}
	found, err := s.find(ctx, q)
	if err != nil {
		return nil, err
	}
	return toZones(found), nil
}

func (s *governanceZoneService) LinkZonesInHierarchy(ctx context.Context, parentGUID, childGUID uuid.UUID) (err error) {
	defer s.track(ctx, "linkZonesInHierarchy")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, parentGUID, "parentGUID", models.TypeGovernanceZone); err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, childGUID, "childGUID", models.TypeGovernanceZone); err != nil {
		return err
	}
	if parentGUID == childGUID {
		return apperrors.InvalidParameter("a governance zone cannot be its own parent")
	}

	release, err := s.lock(ctx, locks.ZoneParentKey(s.serverName, childGUID))
	if err != nil {
		return err
	}
	defer release()

	current, err := s.parentEdge(ctx, childGUID)
	if err != nil {
		return err
	}
	if current != nil {
		if current.End1GUID == parentGUID {
			return nil
		}
		return apperrors.InvalidParameter("governance zone %s already has parent %s", childGUID, current.End1GUID)
	}

	cycle, err := s.isAncestor(ctx, childGUID, parentGUID)
	if err != nil {
		return err
	}
	if cycle {
		return apperrors.InvalidParameter("governance zone %s is an ancestor of %s", childGUID, parentGUID)
	}

	_, err = s.upsertEdge(ctx, nil, &models.NewRelationship{
		TypeName:       models.RelZoneHierarchy,
		End1GUID:       parentGUID,
		End2GUID:       childGUID,
		Properties:     models.NewPropertyBag(),
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	return err
}

func (s *governanceZoneService) UnlinkZonesInHierarchy(ctx context.Context, parentGUID, childGUID uuid.UUID) (err error) {
	defer s.track(ctx, "unlinkZonesInHierarchy")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return err
	}
	if err := validateGUID(parentGUID, "parentGUID", models.TypeGovernanceZone); err != nil {
		return err
	}
	if err := validateGUID(childGUID, "childGUID", models.TypeGovernanceZone); err != nil {
		return err
	}

	release, err := s.lock(ctx, locks.ZoneParentKey(s.serverName, childGUID))
	if err != nil {
		return err
	}
	defer release()

	edges, err := s.findEdges(ctx, childGUID, models.RelZoneHierarchy, models.DirectionEnd2, func(r *models.Relationship) bool {
		return r.End1GUID == parentGUID
	})
	if err != nil {
		return err
	}
	return s.removeEdges(ctx, edges)
}

func (s *governanceZoneService) LinkDefinitionToZone(ctx context.Context, definitionGUID, zoneGUID uuid.UUID) (err error) {
	defer s.track(ctx, "linkGovernanceDefinitionToZone")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, definitionGUID, "definitionGUID", models.TypeGovernanceDefinition); err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, zoneGUID, "zoneGUID", models.TypeGovernanceZone); err != nil {
		return err
	}

	release, err := s.lock(ctx, locks.DirectedLinkKey(s.serverName, models.RelGovernedBy, definitionGUID, zoneGUID))
	if err != nil {
		return err
	}
	defer release()

	existing, err := s.findEdge(ctx, definitionGUID, models.RelGovernedBy, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == zoneGUID
	})
	if err != nil || existing != nil {
		return err
	}
	_, err = s.upsertEdge(ctx, nil, &models.NewRelationship{
		TypeName:       models.RelGovernedBy,
		End1GUID:       definitionGUID,
		End2GUID:       zoneGUID,
		Properties:     models.NewPropertyBag(),
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	return err
}

func (s *governanceZoneService) UnlinkDefinitionFromZone(ctx context.Context, definitionGUID, zoneGUID uuid.UUID) (err error) {
	defer s.track(ctx, "unlinkGovernanceDefinitionFromZone")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return err
	}
	if err := validateGUID(definitionGUID, "definitionGUID", models.TypeGovernanceDefinition); err != nil {
		return err
	}
	if err := validateGUID(zoneGUID, "zoneGUID", models.TypeGovernanceZone); err != nil {
		return err
	}

	release, err := s.lock(ctx, locks.DirectedLinkKey(s.serverName, models.RelGovernedBy, definitionGUID, zoneGUID))
	if err != nil {
		return err
	}
	defer release()

	edges, err := s.findEdges(ctx, definitionGUID, models.RelGovernedBy, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == zoneGUID
	})
	if err != nil {
		return err
	}
	return s.removeEdges(ctx, edges)
}

func (s *governanceZoneService) GetZoneDefinition(ctx context.Context, guid uuid.UUID) (def *models.GovernanceZoneDefinition, err error) {
	defer s.track(ctx, "getGovernanceZoneDefinitionByGUID")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	stored, err := s.getEntity(ctx, guid, "guid", models.TypeGovernanceZone)
	if err != nil {
		return nil, err
	}

	def = &models.GovernanceZoneDefinition{
		GovernanceZone: *mapper.ToGovernanceZone(stored),
		Children:       []models.ElementStub{},
		Definitions:    []models.DefinitionSummary{},
	}

	// The three edge kinds are independent reads; fetch them together.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, parents, err := s.linked(gctx, guid, models.RelZoneHierarchy, models.DirectionEnd2)
		if err != nil {
			return err
		}
		if len(parents) > 0 {
			stub := mapper.ToElementStub(parents[0])
			def.Parent = &stub
		}
		return nil
	})
	g.Go(func() error {
		_, children, err := s.linked(gctx, guid, models.RelZoneHierarchy, models.DirectionEnd1)
		if err != nil {
			return err
		}
		for _, c := range children {
			def.Children = append(def.Children, mapper.ToElementStub(c))
		}
		return nil
	})
	g.Go(func() error {
		_, definitions, err := s.linked(gctx, guid, models.RelGovernedBy, models.DirectionEnd2)
		if err != nil {
			return err
		}
		for _, d := range definitions {
			def.Definitions = append(def.Definitions, mapper.ToDefinitionSummary(d))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return def, nil
}

// linked returns the edges of relType at end dir of guid and their far ends.
func (s *governanceZoneService) linked(ctx context.Context, guid uuid.UUID, relType string, dir models.Direction) ([]*models.Relationship, []*models.Entity, error) {
	rels, err := s.relationships(ctx, guid, []string{relType}, dir, models.QueryOptions{})
	if err != nil {
		return nil, nil, err
	}
	return s.farEnds(ctx, guid, rels)
}

// parentEdge returns the ZoneHierarchy edge above zone, or nil for a root.
func (s *governanceZoneService) parentEdge(ctx context.Context, zone uuid.UUID) (*models.Relationship, error) {
	return s.findEdge(ctx, zone, models.RelZoneHierarchy, models.DirectionEnd2, func(*models.Relationship) bool {
		return true
	})
}

// isAncestor reports whether ancestor is zone or sits above it.
func (s *governanceZoneService) isAncestor(ctx context.Context, ancestor, zone uuid.UUID) (bool, error) {
	seen := make(map[uuid.UUID]bool)
	for current := zone; !seen[current]; {
		if current == ancestor {
			return true, nil
		}
		seen[current] = true
		edge, err := s.parentEdge(ctx, current)
		if err != nil {
			return false, err
		}
		if edge == nil {
			return false, nil
		}
		current = edge.End1GUID
	}
	return false, nil
}

func (s *governanceZoneService) zoneByName(ctx context.Context, qualifiedName string) (*models.Entity, error) {
	found, err := s.repo.FindEntities(ctx, models.EntityQuery{
		TypeNames: []string{models.TypeGovernanceZone},
		Match:     []models.PropertyMatch{{Name: mapper.PropQualifiedName, Values: []any{qualifiedName}}},
		Sort:      models.SortCreationOldest,
		PageSize:  1,
	})
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to look up governance zone %q", qualifiedName)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// checkNameFree fails when a zone other than self carries qualifiedName.
func (s *governanceZoneService) checkNameFree(ctx context.Context, qualifiedName string, self uuid.UUID) error {
	existing, err := s.zoneByName(ctx, qualifiedName)
	if err != nil {
		return err
	}
	if existing != nil && existing.GUID != self {
		return apperrors.InvalidParameter("qualifiedName %q is already used by governance zone %s", qualifiedName, existing.GUID)
	}
	return nil
}

func toZones(entities []*models.Entity) []*models.GovernanceZone {
	out := make([]*models.GovernanceZone, 0, len(entities))
	for _, e := range entities {
		out = append(out, mapper.ToGovernanceZone(e))
	}
	return out
}
