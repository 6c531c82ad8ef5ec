package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// ExternalReferenceService manages references to resources outside the
// metadata repository and their attachments to elements.
type ExternalReferenceService interface {
	// Create stores a reference. typeName may be empty for ExternalReference.
	// With anchorGUID the reference is owned by the anchor: it is attached to
	// it and deleted with it.
	Create(ctx context.Context, typeName string, props models.ExternalReferenceProperties, anchorGUID *uuid.UUID) (uuid.UUID, error)

	Update(ctx context.Context, guid uuid.UUID, props models.ExternalReferenceProperties, isMergeUpdate bool) error
	Delete(ctx context.Context, guid uuid.UUID) error
	Get(ctx context.Context, guid uuid.UUID) (*models.ExternalReference, error)

	// LinkToElement attaches the reference to an element. Attaching an
	// attached pair again updates the link properties.
	LinkToElement(ctx context.Context, elementGUID, referenceGUID uuid.UUID, props models.ExternalReferenceLinkProperties) error

	// UnlinkFromElement removes the attachment. When the element is the
	// reference's anchor the reference is deleted too.
	UnlinkFromElement(ctx context.Context, elementGUID, referenceGUID uuid.UUID) error

	// FindByResourceID returns references whose qualified name fully matches
	// the regular expression, most recently created first.
	FindByResourceID(ctx context.Context, searchPattern string, startFrom, pageSize int) ([]*models.ExternalReference, error)

	// GetExternalReferencesForElement lists the references attached to an element.
	GetExternalReferencesForElement(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) ([]models.ExternalReferenceAttachment, error)

	// GetElementsForExternalReference lists the elements a reference is attached to.
	GetElementsForExternalReference(ctx context.Context, referenceGUID uuid.UUID, opts models.QueryOptions) ([]models.ExternalReferenceAttachment, error)
}

type externalReferenceService struct {
	*core
}

var _ ExternalReferenceService = (*externalReferenceService)(nil)

// NewExternalReferenceService creates the external reference handler of one server.
func NewExternalReferenceService(serverName string, deps Dependencies) ExternalReferenceService {
	return &externalReferenceService{core: newCore(serverName, deps, "external-reference-service")}
}

func (s *externalReferenceService) Create(ctx context.Context, typeName string, props models.ExternalReferenceProperties, anchorGUID *uuid.UUID) (guid uuid.UUID, err error) {
	defer s.track(ctx, "createExternalReference")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if typeName == "" {
		typeName = models.TypeExternalReference
	}
	if !s.schema.IsSubtypeOf(typeName, models.TypeExternalReference) {
		return uuid.Nil, apperrors.InvalidParameter("typeName %q is not an external reference type", typeName)
	}
	if err := validateName(props.QualifiedName, "qualifiedName"); err != nil {
		return uuid.Nil, err
	}
	if anchorGUID != nil {
		if _, err := s.getEntity(ctx, *anchorGUID, "anchorGUID", models.TypeReferenceable); err != nil {
			return uuid.Nil, err
		}
	}

	guid, err = s.repo.AddEntity(ctx, &models.NewEntity{
		TypeName:       typeName,
		Properties:     mapper.ExternalReferenceProperties(props, true),
		AnchorGUID:     anchorGUID,
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	if err != nil {
		if anchorGUID != nil && errors.Is(err, apperrors.ErrNotFound) {
			return uuid.Nil, apperrors.UnrecognizedGUID("anchorGUID", anchorGUID.String(), "")
		}
		return uuid.Nil, apperrors.PropertyServer(err, "failed to create %s", typeName)
	}

	if anchorGUID != nil {
		_, err := s.repo.AddRelationship(ctx, &models.NewRelationship{
			TypeName:       models.RelExternalReferenceLink,
			End1GUID:       *anchorGUID,
			End2GUID:       guid,
			Properties:     models.NewPropertyBag(),
			ExternalSource: p.ExternalSource,
			CreatedBy:      p.UserID,
		})
		if err != nil {
			// Undo the create so a failed call leaves nothing behind.
			if delErr := s.repo.DeleteEntity(ctx, guid); delErr != nil {
				s.logger.Error("Failed to remove external reference after attach failure",
					zap.String("guid", guid.String()),
					zap.Error(delErr))
			}
			if errors.Is(err, apperrors.ErrNotFound) {
				return uuid.Nil, apperrors.UnrecognizedGUID("anchorGUID", anchorGUID.String(), "")
			}
			return uuid.Nil, apperrors.PropertyServer(err, "failed to attach external reference to its anchor")
		}
	}

	s.logger.Debug("Created external reference",
		zap.String("guid", guid.String()),
		zap.String("qualified_name", props.QualifiedName))
	return guid, nil
}

func (s *externalReferenceService) Update(ctx context.Context, guid uuid.UUID, props models.ExternalReferenceProperties, isMergeUpdate bool) (err error) {
	defer s.track(ctx, "updateExternalReference")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, guid, "guid", models.TypeExternalReference); err != nil {
		return err
	}
	if !isMergeUpdate {
		if err := validateName(props.QualifiedName, "qualifiedName"); err != nil {
			return err
		}
	}
	bag := mapper.ExternalReferenceProperties(props, !isMergeUpdate)
	if bag.Len() == 0 {
		return nil
	}
	if err := s.repo.UpdateEntityProperties(ctx, guid, bag, p.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), models.TypeExternalReference)
		}
		return apperrors.PropertyServer(err, "failed to update external reference %s", guid)
	}
	return nil
}

func (s *externalReferenceService) Delete(ctx context.Context, guid uuid.UUID) (err error) {
	defer s.track(ctx, "deleteExternalReference")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, guid, "guid", models.TypeExternalReference); err != nil {
		return err
	}
	if err := s.repo.DeleteEntity(ctx, guid); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), models.TypeExternalReference)
		}
		return apperrors.PropertyServer(err, "failed to delete external reference %s", guid)
	}
	return nil
}

func (s *externalReferenceService) Get(ctx context.Context, guid uuid.UUID) (ref *models.ExternalReference, err error) {
	defer s.track(ctx, "getExternalReferenceByGUID")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	stored, err := s.getEntity(ctx, guid, "guid", models.TypeExternalReference)
	if err != nil {
		return nil, err
	}
	return mapper.ToExternalReference(stored), nil
}

func (s *externalReferenceService) LinkToElement(ctx context.Context, elementGUID, referenceGUID uuid.UUID, props models.ExternalReferenceLinkProperties) (err error) {
	defer s.track(ctx, "linkExternalReferenceToElement")(&err)

	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, elementGUID, "elementGUID", models.TypeReferenceable); err != nil {
		return err
	}
	if _, err := s.getEntity(ctx, referenceGUID, "referenceGUID", models.TypeExternalReference); err != nil {
		return err
	}
	if elementGUID == referenceGUID {
		return apperrors.InvalidParameter("an external reference cannot be attached to itself")
	}

	release, err := s.lock(ctx, locks.DirectedLinkKey(s.serverName, models.RelExternalReferenceLink, elementGUID, referenceGUID))
	if err != nil {
		return err
	}
	defer release()

	existing, err := s.findEdge(ctx, elementGUID, models.RelExternalReferenceLink, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == referenceGUID
	})
	if err != nil {
		return err
	}
	_, err = s.upsertEdge(ctx, existing, &models.NewRelationship{
		TypeName:       models.RelExternalReferenceLink,
		End1GUID:       elementGUID,
		End2GUID:       referenceGUID,
		Properties:     mapper.ExternalReferenceLinkProperties(props, true),
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	return err
}

func (s *externalReferenceService) UnlinkFromElement(ctx context.Context, elementGUID, referenceGUID uuid.UUID) (err error) {
	defer s.track(ctx, "unlinkExternalReferenceFromElement")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return err
	}
	if err := validateGUID(elementGUID, "elementGUID", models.TypeReferenceable); err != nil {
		return err
	}
	if err := validateGUID(referenceGUID, "referenceGUID", models.TypeExternalReference); err != nil {
		return err
	}

	release, err := s.lock(ctx, locks.DirectedLinkKey(s.serverName, models.RelExternalReferenceLink, elementGUID, referenceGUID))
	if err != nil {
		return err
	}
	defer release()

	ref, err := s.repo.GetEntity(ctx, referenceGUID)
	if err != nil {
		return apperrors.PropertyServer(err, "failed to retrieve external reference %s", referenceGUID)
	}
	if ref == nil {
		return nil
	}
	if !s.isA(ref.TypeName, models.TypeExternalReference) {
		return apperrors.UnrecognizedGUID("referenceGUID", referenceGUID.String(), models.TypeExternalReference)
	}

	if ref.AnchorGUID != nil && *ref.AnchorGUID == elementGUID {
		// Removing the anchor's attachment removes the reference it owns.
		if err := s.repo.DeleteEntity(ctx, referenceGUID); err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.PropertyServer(err, "failed to delete anchored external reference %s", referenceGUID)
		}
		s.logger.Debug("Deleted anchored external reference",
			zap.String("guid", referenceGUID.String()),
			zap.String("anchor_guid", elementGUID.String()))
		return nil
	}

	edges, err := s.findEdges(ctx, elementGUID, models.RelExternalReferenceLink, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == referenceGUID
	})
	if err != nil {
		return err
	}
	return s.removeEdges(ctx, edges)
}

func (s *externalReferenceService) FindByResourceID(ctx context.Context, searchPattern string, startFrom, pageSize int) (refs []*models.ExternalReference, err error) {
	defer s.track(ctx, "findExternalReferencesById")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	if err := validateSearchPattern(searchPattern, "searchPattern"); err != nil {
		return nil, err
	}
	found, err := s.find(ctx, models.EntityQuery{
		TypeNames: []string{models.TypeExternalReference},
		Match:     []models.PropertyMatch{{Name: mapper.PropQualifiedName, Regex: searchPattern}},
		Sort:      models.SortCreationRecent,
		StartFrom: startFrom,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, err
	}
	refs = make([]*models.ExternalReference, 0, len(found))
	for _, e := range found {
		refs = append(refs, mapper.ToExternalReference(e))
	}
	return refs, nil
}

func (s *externalReferenceService) GetExternalReferencesForElement(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) (out []models.ExternalReferenceAttachment, err error) {
	defer s.track(ctx, "getExternalReferencesForElement")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	element, err := s.getEntity(ctx, elementGUID, "elementGUID", models.TypeReferenceable)
	if err != nil {
		return nil, err
	}
	rels, err := s.relationships(ctx, elementGUID, []string{models.RelExternalReferenceLink}, models.DirectionEnd1, opts)
	if err != nil {
		return nil, err
	}
	rels, refs, err := s.farEnds(ctx, elementGUID, rels)
	if err != nil {
		return nil, err
	}
	stub := mapper.ToElementStub(element)
	out = make([]models.ExternalReferenceAttachment, 0, len(rels))
	for i, r := range rels {
		out = append(out, toAttachment(r, stub, refs[i]))
	}
	return out, nil
}

func (s *externalReferenceService) GetElementsForExternalReference(ctx context.Context, referenceGUID uuid.UUID, opts models.QueryOptions) (out []models.ExternalReferenceAttachment, err error) {
	defer s.track(ctx, "getElementsForExternalReference")(&err)

	if _, err := s.prepare(ctx); err != nil {
		return nil, err
	}
	ref, err := s.getEntity(ctx, referenceGUID, "referenceGUID", models.TypeExternalReference)
	if err != nil {
		return nil, err
	}
	rels, err := s.relationships(ctx, referenceGUID, []string{models.RelExternalReferenceLink}, models.DirectionEnd2, opts)
	if err != nil {
		return nil, err
	}
	rels, elements, err := s.farEnds(ctx, referenceGUID, rels)
	if err != nil {
		return nil, err
	}
	out = make([]models.ExternalReferenceAttachment, 0, len(rels))
	for i, r := range rels {
		out = append(out, toAttachment(r, mapper.ToElementStub(elements[i]), ref))
	}
	return out, nil
}

func toAttachment(r *models.Relationship, element models.ElementStub, ref *models.Entity) models.ExternalReferenceAttachment {
	return models.ExternalReferenceAttachment{
		RelationshipGUID: r.GUID,
		Element:          element,
		Reference:        mapper.ToExternalReference(ref),
		LinkProperties:   mapper.ToExternalReferenceLinkProperties(r),
		ExternalSource:   r.ExternalSource,
	}
}
