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

// GovernanceDefinitionService is the generic handler for every governance
// definition kind: drivers, policies, controls, certification types and
// license types. typeName selects the kind; where a find accepts an empty
// typeName it searches every kind.
type GovernanceDefinitionService interface {
	// Create stores a new definition in DRAFT status and returns its GUID.
	Create(ctx context.Context, typeName string, props models.GovernanceDefinitionProperties) (uuid.UUID, error)

	// Update rewrites the properties of a definition. A merge update writes
	// only the supplied fields; a replace update clears the rest. A non-empty
	// typeName must match the stored type.
	Update(ctx context.Context, guid uuid.UUID, typeName string, props models.GovernanceDefinitionProperties, isMergeUpdate bool) error

	// SetStatus sets the status unconditionally.
	SetStatus(ctx context.Context, guid uuid.UUID, status models.DefinitionStatus) error

	// Delete removes the definition and every relationship it is an end of.
	Delete(ctx context.Context, guid uuid.UUID) error

	// Get returns one definition.
	Get(ctx context.Context, guid uuid.UUID) (*models.GovernanceDefinition, error)

	// FindByDocumentID returns the definition with an exactly matching
	// document identifier, or nil when there is none.
	FindByDocumentID(ctx context.Context, typeName, documentIdentifier string) (*models.GovernanceDefinition, error)

	// FindByTitle returns definitions whose title fully matches the regular
	// expression, oldest first. pageSize 0 returns all remaining.
	FindByTitle(ctx context.Context, typeName, searchPattern string, startFrom, pageSize int) ([]*models.GovernanceDefinition, error)

	// FindByDomain returns definitions of the domain plus those tagged for
	// every domain (0). domainIdentifier 0 returns every definition.
	FindByDomain(ctx context.Context, typeName string, domainIdentifier, startFrom, pageSize int) ([]*models.GovernanceDefinition, error)

	// LinkPeer links two definitions of the kind relationshipName is bound to.
	// Linking an already linked pair updates the existing edge.
	LinkPeer(ctx context.Context, guid1, guid2 uuid.UUID, relationshipName, description string, window models.EffectivityWindow) error

	// UnlinkPeer removes the peer edge between the pair, if any.
	UnlinkPeer(ctx context.Context, guid1, guid2 uuid.UUID, relationshipName string) error

	// LinkSupporting links guid to a definition one tier below that supports
	// it. Linking an already linked pair updates the existing edge.
	LinkSupporting(ctx context.Context, guid, supportingGUID uuid.UUID, relationshipName, rationale string, window models.EffectivityWindow) error

	// UnlinkSupporting removes the supporting edge, if any.
	UnlinkSupporting(ctx context.Context, guid, supportingGUID uuid.UUID, relationshipName string) error

	// GetPeers lists the peer links of a definition in both directions.
	GetPeers(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.PeerDefinitionLink, error)

	// GetSupporting lists the definitions that support guid.
	GetSupporting(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.SupportingDefinitionLink, error)

	// GetSupported lists the definitions guid supports.
	GetSupported(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.SupportingDefinitionLink, error)
}

// definitionHandler implements the definition operations once for every
// kind. The unexported methods take boundType, the type a GUID argument must
// satisfy, so the typed services can share them.
type definitionHandler struct {
	*core
}

var _ GovernanceDefinitionService = (*definitionHandler)(nil)

// NewGovernanceDefinitionService creates the generic definition handler of one server.
func NewGovernanceDefinitionService(serverName string, deps Dependencies) GovernanceDefinitionService {
	return newDefinitionHandler(serverName, deps)
}

func newDefinitionHandler(serverName string, deps Dependencies) *definitionHandler {
	return &definitionHandler{core: newCore(serverName, deps, "governance-definition-service")}
}

func (h *definitionHandler) Create(ctx context.Context, typeName string, props models.GovernanceDefinitionProperties) (uuid.UUID, error) {
	return h.create(ctx, "createGovernanceDefinition", typeName, props)
}

func (h *definitionHandler) Update(ctx context.Context, guid uuid.UUID, typeName string, props models.GovernanceDefinitionProperties, isMergeUpdate bool) error {
	return h.update(ctx, "updateGovernanceDefinition", models.TypeGovernanceDefinition, guid, typeName, props, isMergeUpdate)
}

func (h *definitionHandler) SetStatus(ctx context.Context, guid uuid.UUID, status models.DefinitionStatus) error {
	return h.setStatus(ctx, "setGovernanceDefinitionStatus", models.TypeGovernanceDefinition, guid, status)
}

func (h *definitionHandler) Delete(ctx context.Context, guid uuid.UUID) error {
	return h.delete(ctx, "deleteGovernanceDefinition", models.TypeGovernanceDefinition, guid)
}

func (h *definitionHandler) Get(ctx context.Context, guid uuid.UUID) (*models.GovernanceDefinition, error) {
	return h.get(ctx, "getGovernanceDefinitionByGUID", models.TypeGovernanceDefinition, guid)
}

func (h *definitionHandler) FindByDocumentID(ctx context.Context, typeName, documentIdentifier string) (*models.GovernanceDefinition, error) {
	return h.findByDocumentID(ctx, "getGovernanceDefinitionByDocId", typeName, documentIdentifier)
}

func (h *definitionHandler) FindByTitle(ctx context.Context, typeName, searchPattern string, startFrom, pageSize int) ([]*models.GovernanceDefinition, error) {
	return h.findByTitle(ctx, "findGovernanceDefinitions", typeName, searchPattern, startFrom, pageSize)
}

func (h *definitionHandler) FindByDomain(ctx context.Context, typeName string, domainIdentifier, startFrom, pageSize int) ([]*models.GovernanceDefinition, error) {
	return h.findByDomain(ctx, "getGovernanceDefinitionsForDomain", typeName, domainIdentifier, startFrom, pageSize)
}

// ============================================================================
// Shared implementation, also used by the typed services
// ============================================================================

func (h *definitionHandler) create(ctx context.Context, method, typeName string, props models.GovernanceDefinitionProperties) (guid uuid.UUID, err error) {
	defer h.track(ctx, method)(&err)

	p, err := h.prepare(ctx)
	if err != nil {
		return uuid.Nil, err
	}
	if err := validateKind(typeName); err != nil {
		return uuid.Nil, err
	}
	if err := validateName(props.DocumentIdentifier, "documentIdentifier"); err != nil {
		return uuid.Nil, err
	}
	if err := validateName(props.Title, "title"); err != nil {
		return uuid.Nil, err
	}
	if err := validateDefinitionProperties(props); err != nil {
		return uuid.Nil, err
	}

	release, err := h.lock(ctx, locks.DocumentKey(h.serverName, typeName, props.DocumentIdentifier))
	if err != nil {
		return uuid.Nil, err
	}
	defer release()

	existing, err := h.entityByDocumentID(ctx, []string{typeName}, props.DocumentIdentifier)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return uuid.Nil, documentCollision(typeName, props.DocumentIdentifier, existing.GUID)
	}

	bag := mapper.DefinitionProperties(props, true)
	bag.Set(mapper.PropStatus, string(models.StatusDraft))

	guid, err = h.repo.AddEntity(ctx, &models.NewEntity{
		TypeName:       typeName,
		Properties:     bag,
		ExternalSource: p.ExternalSource,
		CreatedBy:      p.UserID,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			return uuid.Nil, apperrors.InvalidParameter("documentIdentifier %q is already used by another %s", props.DocumentIdentifier, typeName)
		}
		return uuid.Nil, apperrors.PropertyServer(err, "failed to create %s", typeName)
	}

	h.logger.Debug("Created governance definition",
		zap.String("type_name", typeName),
		zap.String("guid", guid.String()),
		zap.String("document_identifier", props.DocumentIdentifier))
	return guid, nil
}

func (h *definitionHandler) update(ctx context.Context, method, boundType string, guid uuid.UUID, typeName string, props models.GovernanceDefinitionProperties, isMergeUpdate bool) (err error) {
	defer h.track(ctx, method)(&err)

	p, err := h.prepare(ctx)
	if err != nil {
		return err
	}
	stored, err := h.getEntity(ctx, guid, "guid", boundType)
	if err != nil {
		return err
	}
	if typeName != "" && typeName != stored.TypeName {
		return apperrors.InvalidParameter("typeName cannot be changed from %s to %s", stored.TypeName, typeName)
	}
	if !isMergeUpdate {
		if err := validateName(props.DocumentIdentifier, "documentIdentifier"); err != nil {
			return err
		}
		if err := validateName(props.Title, "title"); err != nil {
			return err
		}
	}
	current := mapper.ToGovernanceDefinition(stored)
	supplied := models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo}
	storedWindow := models.EffectivityWindow{From: current.EffectiveFrom, To: current.EffectiveTo}
	if err := validateWindow(mergeWindow(storedWindow, supplied, isMergeUpdate)); err != nil {
		return err
	}
	if err := validateDomain(props.DomainIdentifier); err != nil {
		return err
	}

	bag := mapper.DefinitionProperties(props, !isMergeUpdate)
	if bag.Len() == 0 {
		return nil
	}

	if props.DocumentIdentifier != "" && props.DocumentIdentifier != current.DocumentIdentifier {
		release, err := h.lock(ctx, locks.DocumentKey(h.serverName, stored.TypeName, props.DocumentIdentifier))
		if err != nil {
			return err
		}
		defer release()

		existing, err := h.entityByDocumentID(ctx, []string{stored.TypeName}, props.DocumentIdentifier)
		if err != nil {
			return err
		}
		if existing != nil && existing.GUID != guid {
			return documentCollision(stored.TypeName, props.DocumentIdentifier, existing.GUID)
		}
	}

	if err := h.repo.UpdateEntityProperties(ctx, guid, bag, p.UserID); err != nil {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			return apperrors.UnrecognizedGUID("guid", guid.String(), stored.TypeName)
		case errors.Is(err, apperrors.ErrConflict):
			return apperrors.InvalidParameter("documentIdentifier %q is already used by another %s", props.DocumentIdentifier, stored.TypeName)
		}
		return apperrors.PropertyServer(err, "failed to update %s %s", stored.TypeName, guid)
	}
	return nil
}

func (h *definitionHandler) setStatus(ctx context.Context, method, boundType string, guid uuid.UUID, status models.DefinitionStatus) (err error) {
	defer h.track(ctx, method)(&err)

	p, err := h.prepare(ctx)
	if err != nil {
		return err
	}
	if err := validateStatus(status, "status"); err != nil {
		return err
	}
	stored, err := h.getEntity(ctx, guid, "guid", boundType)
	if err != nil {
		return err
	}
	if err := h.repo.UpdateEntityProperties(ctx, guid, mapper.StatusProperties(status), p.UserID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), stored.TypeName)
		}
		return apperrors.PropertyServer(err, "failed to set the status of %s %s", stored.TypeName, guid)
	}
	return nil
}

func (h *definitionHandler) delete(ctx context.Context, method, boundType string, guid uuid.UUID) (err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return err
	}
	stored, err := h.getEntity(ctx, guid, "guid", boundType)
	if err != nil {
		return err
	}
	if err := h.repo.DeleteEntity(ctx, guid); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.UnrecognizedGUID("guid", guid.String(), stored.TypeName)
		}
		return apperrors.PropertyServer(err, "failed to delete %s %s", stored.TypeName, guid)
	}

	h.logger.Debug("Deleted governance definition",
		zap.String("type_name", stored.TypeName),
		zap.String("guid", guid.String()))
	return nil
}

func (h *definitionHandler) get(ctx context.Context, method, boundType string, guid uuid.UUID) (def *models.GovernanceDefinition, err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	stored, err := h.getEntity(ctx, guid, "guid", boundType)
	if err != nil {
		return nil, err
	}
	return mapper.ToGovernanceDefinition(stored), nil
}

func (h *definitionHandler) findByDocumentID(ctx context.Context, method, typeName, documentIdentifier string) (def *models.GovernanceDefinition, err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	if err := validateName(documentIdentifier, "documentIdentifier"); err != nil {
		return nil, err
	}
	typeNames, err := kindsFor(typeName)
	if err != nil {
		return nil, err
	}
	stored, err := h.entityByDocumentID(ctx, typeNames, documentIdentifier)
	if err != nil || stored == nil {
		return nil, err
	}
	return mapper.ToGovernanceDefinition(stored), nil
}

func (h *definitionHandler) findByTitle(ctx context.Context, method, typeName, searchPattern string, startFrom, pageSize int) (defs []*models.GovernanceDefinition, err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	if err := validateSearchPattern(searchPattern, "searchPattern"); err != nil {
		return nil, err
	}
	typeNames, err := kindsFor(typeName)
	if err != nil {
		return nil, err
	}
	found, err := h.find(ctx, models.EntityQuery{
		TypeNames: typeNames,
		Match:     []models.PropertyMatch{{Name: mapper.PropTitle, Regex: searchPattern}},
		Sort:      models.SortCreationOldest,
		StartFrom: startFrom,
		PageSize:  pageSize,
	})
	if err != nil {
		return nil, err
	}
	return toDefinitions(found), nil
}

func (h *definitionHandler) findByDomain(ctx context.Context, method, typeName string, domainIdentifier, startFrom, pageSize int) (defs []*models.GovernanceDefinition, err error) {
	defer h.track(ctx, method)(&err)

	if _, err := h.prepare(ctx); err != nil {
		return nil, err
	}
	if domainIdentifier < 0 {
		return nil, apperrors.InvalidParameter("domainIdentifier must not be negative")
	}
	typeNames, err := kindsFor(typeName)
	if err != nil {
		return nil, err
	}
	q := models.EntityQuery{
		TypeNames: typeNames,
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
	found, err := h.find(ctx, q)
	if err != nil {
		return nil, err
	}
	return toDefinitions(found), nil
}

// entityByDocumentID returns the oldest definition of typeNames carrying
// documentIdentifier, or nil.
func (h *definitionHandler) entityByDocumentID(ctx context.Context, typeNames []string, documentIdentifier string) (*models.Entity, error) {
	found, err := h.repo.FindEntities(ctx, models.EntityQuery{
		TypeNames: typeNames,
		Match:     []models.PropertyMatch{{Name: mapper.PropDocumentIdentifier, Values: []any{documentIdentifier}}},
		Sort:      models.SortCreationOldest,
		PageSize:  1,
	})
	if err != nil {
		return nil, apperrors.PropertyServer(err, "failed to look up documentIdentifier %q", documentIdentifier)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return found[0], nil
}

// ============================================================================
// Helpers
// ============================================================================

func validateKind(typeName string) error {
	if err := validateName(typeName, "typeName"); err != nil {
		return err
	}
	if _, ok := models.LookupDefinitionKind(typeName); !ok {
		return apperrors.InvalidParameter("typeName %q is not a governance definition type", typeName)
	}
	return nil
}

// kindsFor returns the type names a find searches: typeName, or every kind
// when it is empty.
func kindsFor(typeName string) ([]string, error) {
	if typeName == "" {
		return models.DefinitionTypeNames(), nil
	}
	if err := validateKind(typeName); err != nil {
		return nil, err
	}
	return []string{typeName}, nil
}

func validateDefinitionProperties(props models.GovernanceDefinitionProperties) error {
	if err := validateDomain(props.DomainIdentifier); err != nil {
		return err
	}
	return validateWindow(models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo})
}

func documentCollision(typeName, documentIdentifier string, owner uuid.UUID) error {
	return apperrors.InvalidParameter("documentIdentifier %q is already used by %s %s", documentIdentifier, typeName, owner)
}

func toDefinitions(entities []*models.Entity) []*models.GovernanceDefinition {
	out := make([]*models.GovernanceDefinition, 0, len(entities))
	for _, e := range entities {
		out = append(out, mapper.ToGovernanceDefinition(e))
	}
	return out
}
