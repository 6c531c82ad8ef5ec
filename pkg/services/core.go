package services

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/audit"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/metrics"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/repositories"
)

// core carries what every governance service of one server needs.
type core struct {
	serverName  string
	repo        repositories.MetadataRepository
	schema      *models.TypeSchema
	locker      locks.Locker
	auditor     *audit.CallAuditor
	metrics     *metrics.CallMetrics
	maxPageSize int
	logger      *zap.Logger
}

func newCore(serverName string, deps Dependencies, component string) *core {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locker := deps.Locker
	if locker == nil {
		locker = locks.NewLocalLocker()
	}
	return &core{
		serverName:  serverName,
		repo:        deps.Repository,
		schema:      deps.Schema,
		locker:      locker,
		auditor:     deps.Auditor,
		metrics:     deps.Metrics,
		maxPageSize: deps.MaxPageSize,
		logger:      logger.Named(component).With(zap.String("server", serverName)),
	}
}

// track audits one call and classifies its final error. Use with a named
// error result:
//
//	defer s.track(ctx, "certify")(&err)
func (c *core) track(ctx context.Context, method string) func(*error) {
	done := c.auditor.Start(ctx, method)
	return func(errp *error) {
		if *errp != nil {
			classified := apperrors.Classify(*errp)
			if classified.Kind == apperrors.KindPropertyServer {
				c.logger.Error("Metadata repository fault",
					zap.String("method", method),
					zap.Error(*errp))
			}
			*errp = classified
		}
		done(*errp)
	}
}

// prepare validates the acting user and the repository before any work.
func (c *core) prepare(ctx context.Context) (models.ProvenanceContext, error) {
	p, _ := models.GetProvenance(ctx)
	if err := validateUserID(p.UserID); err != nil {
		return p, err
	}
	if err := validateRepositoryConnector(ctx, c.repo); err != nil {
		return p, err
	}
	return p, nil
}

// isA reports whether typeName satisfies expectedType. Every stored entity is
// Referenceable, including types this service does not declare.
func (c *core) isA(typeName, expectedType string) bool {
	if expectedType == "" || expectedType == models.TypeReferenceable {
		return true
	}
	return c.schema.IsSubtypeOf(typeName, expectedType)
}

// getEntity fetches guid and checks its type. A missing entity or one of the
// wrong type is an UnrecognizedGUID for paramName.
func (c *core) getEntity(ctx context.Context, guid uuid.UUID, paramName, expectedType string) (*models.Entity, error) {
	if err := validateGUID(guid, paramName, expectedType); err != nil {
		return nil, err
	}
	e, err := c.repo.GetEntity(ctx, guid)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to retrieve %s %s", paramName, guid)
	}
	if e == nil || !c.isA(e.TypeName, expectedType) {
		return nil, apperrors.UnrecognizedGUID(paramName, guid.String(), expectedType)
	}
	return e, nil
}

// getRelationship fetches a relationship of relType. missingOK returns nil
// instead of an UnrecognizedGUID when nothing is stored under guid.
func (c *core) getRelationship(ctx context.Context, guid uuid.UUID, paramName, relType string, missingOK bool) (*models.Relationship, error) {
	if err := validateGUID(guid, paramName, relType); err != nil {
		return nil, err
	}
	r, err := c.repo.GetRelationship(ctx, guid)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to retrieve %s %s", paramName, guid)
	}
	if r == nil {
		if missingOK {
			return nil, nil
		}
		return nil, apperrors.UnrecognizedGUID(paramName, guid.String(), relType)
	}
	if r.TypeName != relType {
		return nil, apperrors.UnrecognizedGUID(paramName, guid.String(), relType)
	}
	return r, nil
}

// lock takes the upsert lock for key.
func (c *core) lock(ctx context.Context, key string) (func(), error) {
	release, err := c.locker.Acquire(ctx, key)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to serialize the update")
	}
	return release, nil
}

// relationships lists the edges of guid at end dir whose type is one of
// relTypes, restricted to opts.EffectiveTime and paged by opts.
func (c *core) relationships(ctx context.Context, guid uuid.UUID, relTypes []string, dir models.Direction, opts models.QueryOptions) ([]*models.Relationship, error) {
	if err := validatePaging(opts.StartFrom, opts.PageSize, c.maxPageSize); err != nil {
		return nil, err
	}
	relType := ""
	if len(relTypes) == 1 {
		relType = relTypes[0]
	}
	rels, err := c.repo.GetRelationshipsForEntity(ctx, guid, relType, dir)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to list relationships of %s", guid)
	}

	filtered := make([]*models.Relationship, 0, len(rels))
	for _, r := range rels {
		if len(relTypes) > 1 && !slices.Contains(relTypes, r.TypeName) {
			continue
		}
		if opts.EffectiveTime != nil && !r.IsEffectiveAt(*opts.EffectiveTime) {
			continue
		}
		filtered = append(filtered, r)
	}
	return models.Paginate(filtered, opts.StartFrom, opts.PageSize), nil
}

// findEdge returns the first edge of relType at end dir of guid that satisfies
// match, or nil.
func (c *core) findEdge(ctx context.Context, guid uuid.UUID, relType string, dir models.Direction, match func(*models.Relationship) bool) (*models.Relationship, error) {
	edges, err := c.findEdges(ctx, guid, relType, dir, match)
	if err != nil || len(edges) == 0 {
		return nil, err
	}
	return edges[0], nil
}

func (c *core) findEdges(ctx context.Context, guid uuid.UUID, relType string, dir models.Direction, match func(*models.Relationship) bool) ([]*models.Relationship, error) {
	rels, err := c.repo.GetRelationshipsForEntity(ctx, guid, relType, dir)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to list %s relationships of %s", relType, guid)
	}
	var out []*models.Relationship
	for _, r := range rels {
		if match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// upsertEdge updates the existing edge with the new properties and window, or
// adds rel when there is none. Callers hold the lock for the pair.
func (c *core) upsertEdge(ctx context.Context, existing *models.Relationship, rel *models.NewRelationship) (uuid.UUID, error) {
	if existing != nil {
		window := rel.Window
		if err := c.repo.UpdateRelationship(ctx, existing.GUID, rel.Properties, &window, rel.CreatedBy); err != nil {
			return uuid.Nil, apperrors.PropertyServer(err, "failed to update %s relationship %s", rel.TypeName, existing.GUID)
		}
		c.observeLinkUpsert(rel.TypeName, false)
		return existing.GUID, nil
	}

	guid, err := c.repo.AddRelationship(ctx, rel)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return uuid.Nil, apperrors.UnrecognizedGUID("guid", rel.End1GUID.String()+" or "+rel.End2GUID.String(), "")
		}
		return uuid.Nil, apperrors.PropertyServer(err, "failed to add %s relationship", rel.TypeName)
	}
	c.observeLinkUpsert(rel.TypeName, true)
	return guid, nil
}

// removeEdges removes every edge in rels. An edge removed concurrently is not
// an error.
func (c *core) removeEdges(ctx context.Context, rels []*models.Relationship) error {
	for _, r := range rels {
		if err := c.repo.RemoveRelationship(ctx, r.GUID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.PropertyServer(err, "failed to remove %s relationship %s", r.TypeName, r.GUID)
		}
	}
	return nil
}

// farEnds fetches the entity at the other end of each relationship, in
// order. Edges whose far end has gone are dropped.
func (c *core) farEnds(ctx context.Context, guid uuid.UUID, rels []*models.Relationship) ([]*models.Relationship, []*models.Entity, error) {
	keptRels := make([]*models.Relationship, 0, len(rels))
	ends := make([]*models.Entity, 0, len(rels))
	for _, r := range rels {
		otherGUID, _ := r.OtherEnd(guid)
		e, err := c.repo.GetEntity(ctx, otherGUID)
		if err != nil {
			return nil, nil, apperrors.PropertyServer(err, "failed to retrieve related element %s", otherGUID)
		}
		if e == nil {
			continue
		}
		keptRels = append(keptRels, r)
		ends = append(ends, e)
	}
	return keptRels, ends, nil
}

// find runs an entity query after validating its paging.
func (c *core) find(ctx context.Context, q models.EntityQuery) ([]*models.Entity, error) {
	if err := validatePaging(q.StartFrom, q.PageSize, c.maxPageSize); err != nil {
		return nil, err
	}
	entities, err := c.repo.FindEntities(ctx, q)
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to search %v", q.TypeNames)
	}
	return entities, nil
}

func (c *core) observeLinkUpsert(relationship string, created bool) {
	if c.metrics != nil {
		c.metrics.ObserveLinkUpsert(relationship, created)
	}
}

// mergeWindow overlays the supplied bounds on the stored window under a merge
// update, or returns the supplied window under a replace update.
func mergeWindow(stored, supplied models.EffectivityWindow, isMergeUpdate bool) models.EffectivityWindow {
	if !isMergeUpdate {
		return supplied
	}
	out := stored
	if supplied.From != nil {
		out.From = supplied.From
	}
	if supplied.To != nil {
		out.To = supplied.To
	}
	return out
}
