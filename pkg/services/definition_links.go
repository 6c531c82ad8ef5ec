package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

func (h *definitionHandler) LinkPeer(ctx context.Context, guid1, guid2 uuid.UUID, relationshipName, description string, window models.EffectivityWindow) (err error) {
	defer h.track(ctx, "linkPeerDefinitions")(&err)

	p, err := h.prepare(ctx)
	if err != nil {
		return err
	}
	kind, err := peerKind(relationshipName)
	if err != nil {
		return err
	}
	if err := validateWindow(window); err != nil {
		return err
	}
	end1, err := h.getEntity(ctx, guid1, "guid1", kind)
	if err != nil {
		return err
	}
	end2, err := h.getEntity(ctx, guid2, "guid2", kind)
	if err != nil {
		return err
	}
	if guid1 == guid2 {
		return apperrors.InvalidParameter("a definition cannot be linked to itself")
	}
	// Peers share one kind exactly; a subtype does not qualify.
	if end1.TypeName != kind {
		return apperrors.UnrecognizedGUID("guid1", guid1.String(), kind)
	}
	if end2.TypeName != kind {
		return apperrors.UnrecognizedGUID("guid2", guid2.String(), kind)
	}
	if !h.schema.CanLink(relationshipName, end1.TypeName, end2.TypeName) {
		return apperrors.InvalidParameter("%s cannot join %s to %s", relationshipName, end1.TypeName, end2.TypeName)
	}

	release, err := h.lock(ctx, locks.PeerLinkKey(h.serverName, relationshipName, guid1, guid2))
	if err != nil {
		return err
	}
	defer release()

	existing, err := h.findEdge(ctx, guid1, relationshipName, models.DirectionAny, func(r *models.Relationship) bool {
		return r.Connects(guid1, guid2)
	})
	if err != nil {
		return err
	}
	_, err = h.upsertEdge(ctx, existing, &models.NewRelationship{
		TypeName:       relationshipName,
		End1GUID:       guid1,
		End2GUID:       guid2,
		Properties:     mapper.PeerLinkProperties(description),
		Window:         window,
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	return err
}

func (h *definitionHandler) UnlinkPeer(ctx context.Context, guid1, guid2 uuid.UUID, relationshipName string) (err error) {
	defer h.track(ctx, "unlinkPeerDefinitions")(&err)

	if _, err := h.prepare(ctx); err != nil {
		return err
	}
	kind, err := peerKind(relationshipName)
	if err != nil {
		return err
	}
	if err := validateGUID(guid1, "guid1", kind); err != nil {
		return err
	}
	if err := validateGUID(guid2, "guid2", kind); err != nil {
		return err
	}

	release, err := h.lock(ctx, locks.PeerLinkKey(h.serverName, relationshipName, guid1, guid2))
	if err != nil {
		return err
	}
	defer release()

	edges, err := h.findEdges(ctx, guid1, relationshipName, models.DirectionAny, func(r *models.Relationship) bool {
		return r.Connects(guid1, guid2)
	})
	if err != nil {
		return err
	}
	return h.removeEdges(ctx, edges)
}

func (h *definitionHandler) LinkSupporting(ctx context.Context, guid, supportingGUID uuid.UUID, relationshipName, rationale string, window models.EffectivityWindow) (err error) {
	defer h.track(ctx, "setupSupportingDefinition")(&err)

	p, err := h.prepare(ctx)
	if err != nil {
		return err
	}
	rule, err := supportingRule(relationshipName)
	if err != nil {
		return err
	}
	if err := validateWindow(window); err != nil {
		return err
	}
	from, err := h.getEntity(ctx, guid, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		return err
	}
	to, err := h.getEntity(ctx, supportingGUID, "supportingGUID", models.TypeGovernanceDefinition)
	if err != nil {
		return err
	}
	if tierOf(from.TypeName) != rule.FromTier {
		return apperrors.UnrecognizedGUID("guid", guid.String(), tierName(rule.FromTier))
	}
	if tierOf(to.TypeName) != rule.ToTier {
		return apperrors.UnrecognizedGUID("supportingGUID", supportingGUID.String(), tierName(rule.ToTier))
	}
	if !h.schema.CanLink(relationshipName, from.TypeName, to.TypeName) {
		return apperrors.InvalidParameter("%s cannot join %s to %s", relationshipName, from.TypeName, to.TypeName)
	}

	release, err := h.lock(ctx, locks.DirectedLinkKey(h.serverName, relationshipName, guid, supportingGUID))
	if err != nil {
		return err
	}
	defer release()

	existing, err := h.findEdge(ctx, guid, relationshipName, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == supportingGUID
	})
	if err != nil {
		return err
	}
	_, err = h.upsertEdge(ctx, existing, &models.NewRelationship{
		TypeName:       relationshipName,
		End1GUID:       guid,
		End2GUID:       supportingGUID,
		Properties:     mapper.SupportingLinkProperties(rationale),
		Window:         window,
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	return err
}

func (h *definitionHandler) UnlinkSupporting(ctx context.Context, guid, supportingGUID uuid.UUID, relationshipName string) (err error) {
	defer h.track(ctx, "clearSupportingDefinition")(&err)

	if _, err := h.prepare(ctx); err != nil {
		return err
	}
	if _, err := supportingRule(relationshipName); err != nil {
		return err
	}
	if err := validateGUID(guid, "guid", models.TypeGovernanceDefinition); err != nil {
		return err
	}
	if err := validateGUID(supportingGUID, "supportingGUID", models.TypeGovernanceDefinition); err != nil {
		return err
	}

	release, err := h.lock(ctx, locks.DirectedLinkKey(h.serverName, relationshipName, guid, supportingGUID))
	if err != nil {
		return err
	}
	defer release()

	edges, err := h.findEdges(ctx, guid, relationshipName, models.DirectionEnd1, func(r *models.Relationship) bool {
		return r.End2GUID == supportingGUID
	})
	if err != nil {
		return err
	}
	return h.removeEdges(ctx, edges)
}

func (h *definitionHandler) GetPeers(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) (links []models.PeerDefinitionLink, err error) {
	defer h.track(ctx, "getPeerDefinitions")(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	def, err := h.getEntity(ctx, guid, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		return nil, err
	}
	kind, _ := models.LookupDefinitionKind(def.TypeName)
	rels, err := h.relationships(ctx, guid, []string{kind.PeerRelationship}, models.DirectionAny, opts)
	if err != nil {
		return nil, err
	}
	rels, others, err := h.farEnds(ctx, guid, rels)
	if err != nil {
		return nil, err
	}
	links = make([]models.PeerDefinitionLink, 0, len(rels))
	for i, r := range rels {
		links = append(links, mapper.ToPeerLink(r, others[i]))
	}
	return links, nil
}

func (h *definitionHandler) GetSupporting(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.SupportingDefinitionLink, error) {
	return h.supportingLinks(ctx, "getSupportingDefinitions", guid, models.DirectionEnd1, opts)
}

func (h *definitionHandler) GetSupported(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.SupportingDefinitionLink, error) {
	return h.supportingLinks(ctx, "getSupportedDefinitions", guid, models.DirectionEnd2, opts)
}

func (h *definitionHandler) supportingLinks(ctx context.Context, method string, guid uuid.UUID, dir models.Direction, opts models.QueryOptions) (links []models.SupportingDefinitionLink, err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	if _, err := h.getEntity(ctx, guid, "guid", models.TypeGovernanceDefinition); err != nil {
		return nil, err
	}
	rels, err := h.relationships(ctx, guid, models.SupportingRelationshipNames(), dir, opts)
	if err != nil {
		return nil, err
	}
	rels, others, err := h.farEnds(ctx, guid, rels)
	if err != nil {
		return nil, err
	}
	links = make([]models.SupportingDefinitionLink, 0, len(rels))
	for i, r := range rels {
		links = append(links, mapper.ToSupportingLink(r, others[i]))
	}
	return links, nil
}

func peerKind(relationshipName string) (string, error) {
	if err := validateName(relationshipName, "relationshipName"); err != nil {
		return "", err
	}
	kind, ok := models.PeerRelationshipKind(relationshipName)
	if !ok {
		return "", apperrors.InvalidParameter("relationshipName %q is not a peer definition relationship", relationshipName)
	}
	return kind, nil
}

func supportingRule(relationshipName string) (models.SupportingRule, error) {
	if err := validateName(relationshipName, "relationshipName"); err != nil {
		return models.SupportingRule{}, err
	}
	rule, ok := models.LookupSupportingRule(relationshipName)
	if !ok {
		return models.SupportingRule{}, apperrors.InvalidParameter("relationshipName %q is not a supporting definition relationship", relationshipName)
	}
	return rule, nil
}

func tierOf(typeName string) int {
	kind, ok := models.LookupDefinitionKind(typeName)
	if !ok {
		return 0
	}
	return kind.Tier
}

func tierName(tier int) string {
	switch tier {
	case models.TierDriver:
		return models.TypeGovernanceDriver
	case models.TierPolicy:
		return models.TypeGovernancePolicy
	case models.TierControl:
		return models.TypeGovernanceControl
	default:
		return fmt.Sprintf("tier %d governance definition", tier)
	}
}
