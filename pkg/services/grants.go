package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// grantHandler manages the edges that grant an element a certification or a
// license: end1 is the element, end2 the certification or license type.
// Duplicate grants of the same type to the same element are allowed.
type grantHandler struct {
	*core
	relType   string
	typeName  string
	typeParam string
}

// grant is one stored edge with both ends resolved.
type grant struct {
	rel     *models.Relationship
	element *models.Entity
	kind    *models.Entity
}

func (g *grantHandler) add(ctx context.Context, method string, elementGUID, typeGUID uuid.UUID, props *models.PropertyBag, window models.EffectivityWindow) (guid uuid.UUID, err error) {
	defer g.track(ctx, method)(&err)

	p, err := g.prepare(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if err := validateWindow(window); err != nil {
		return uuid.Nil, err
	}
	element, err := g.getEntity(ctx, elementGUID, "elementGUID", models.TypeReferenceable)
	if err != nil {
		return uuid.Nil, err
	}
	kind, err := g.getEntity(ctx, typeGUID, g.typeParam, g.typeName)
	if err != nil {
		return uuid.Nil, err
	}
	if element.GUID == kind.GUID {
		return uuid.Nil, apperrors.InvalidParameter("a %s cannot be granted to itself", g.typeName)
	}

	guid, err = g.repo.AddRelationship(ctx, &models.NewRelationship{
		TypeName:       g.relType,
		End1GUID:       elementGUID,
		End2GUID:       typeGUID,
		Properties:     props,
		Window:         window,
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return uuid.Nil, apperrors.UnrecognizedGUID("elementGUID", elementGUID.String(), "")
		}
		return uuid.Nil, apperrors.PropertyServer(err, "failed to add %s relationship", g.relType)
	}

	g.logger.Debug("Added grant",
		zap.String("relationship_type", g.relType),
		zap.String("relationship_guid", guid.String()),
		zap.String("element_guid", elementGUID.String()),
		zap.String("type_guid", typeGUID.String()))
	return guid, nil
}

// update rewrites the properties and window of an existing edge. Under a
// merge update an unsupplied window bound keeps its stored value.
func (g *grantHandler) update(ctx context.Context, method string, relGUID uuid.UUID, props *models.PropertyBag, supplied models.EffectivityWindow, isMergeUpdate bool) (err error) {
	defer g.track(ctx, method)(&err)

	p, err := g.prepare(ctx)
	if err != nil {
		return err
	}
	stored, err := g.getRelationship(ctx, relGUID, "relationshipGUID", g.relType, false)
	if err != nil {
		return err
	}
	window := mergeWindow(models.EffectivityWindow{From: stored.EffectiveFrom, To: stored.EffectiveTo}, supplied, isMergeUpdate)
	if err := validateWindow(window); err != nil {
		return err
	}
	if err := g.repo.UpdateRelationship(ctx, relGUID, props, &window, p.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("relationshipGUID", relGUID.String(), g.relType)
		}
		return apperrors.PropertyServer(err, "failed to update %s relationship %s", g.relType, relGUID)
	}
	return nil
}

// remove deletes the edge. A missing edge is not an error; an edge of
// another type is.
func (g *grantHandler) remove(ctx context.Context, method string, relGUID uuid.UUID) (err error) {
	defer g.track(ctx, method)(&err)

	if _, err := g.prepare(ctx); err != nil {
		return err
	}
	stored, err := g.getRelationship(ctx, relGUID, "relationshipGUID", g.relType, true)
	if err != nil || stored == nil {
		return err
	}
	return g.removeEdges(ctx, []*models.Relationship{stored})
}

// forElement lists the grants held by an element.
func (g *grantHandler) forElement(ctx context.Context, method string, elementGUID uuid.UUID, opts models.QueryOptions) (grants []grant, err error) {
	defer g.track(ctx, method)(&err)

	if _, err := g.prepare(ctx); err != nil {
		return nil, err
	}
	element, err := g.getEntity(ctx, elementGUID, "elementGUID", models.TypeReferenceable)
	if err != nil {
		return nil, err
	}
	rels, err := g.relationships(ctx, elementGUID, []string{g.relType}, models.DirectionEnd1, opts)
	if err != nil {
		return nil, err
	}
	rels, kinds, err := g.farEnds(ctx, elementGUID, rels)
	if err != nil {
		return nil, err
	}
	grants = make([]grant, 0, len(rels))
	for i, r := range rels {
		grants = append(grants, grant{rel: r, element: element, kind: kinds[i]})
	}
	return grants, nil
}

// forType lists the grants made under a certification or license type.
func (g *grantHandler) forType(ctx context.Context, method string, typeGUID uuid.UUID, opts models.QueryOptions) (grants []grant, err error) {
	defer g.track(ctx, method)(&err)

	if _, err := g.prepare(ctx); err != nil {
		return nil, err
	}
	kind, err := g.getEntity(ctx, typeGUID, g.typeParam, g.typeName)
	if err != nil {
		return nil, err
	}
	rels, err := g.relationships(ctx, typeGUID, []string{g.relType}, models.DirectionEnd2, opts)
	if err != nil {
		return nil, err
	}
	rels, elements, err := g.farEnds(ctx, typeGUID, rels)
	if err != nil {
		return nil, err
	}
	grants = make([]grant, 0, len(rels))
	for i, r := range rels {
		grants = append(grants, grant{rel: r, element: elements[i], kind: kind})
	}
	return grants, nil
}
