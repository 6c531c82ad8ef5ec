package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// TypedDefinitionService is the definition handler bound to one kind, as
// used for certification types and license types. A GUID of another kind is
// an UnrecognizedGUID.
type TypedDefinitionService interface {
	TypeName() string
	Create(ctx context.Context, props models.GovernanceDefinitionProperties) (uuid.UUID, error)
	Update(ctx context.Context, guid uuid.UUID, props models.GovernanceDefinitionProperties, isMergeUpdate bool) error
	SetStatus(ctx context.Context, guid uuid.UUID, status models.DefinitionStatus) error
	Delete(ctx context.Context, guid uuid.UUID) error
	Get(ctx context.Context, guid uuid.UUID) (*models.GovernanceDefinition, error)
	FindByDocumentID(ctx context.Context, documentIdentifier string) (*models.GovernanceDefinition, error)
	FindByTitle(ctx context.Context, searchPattern string, startFrom, pageSize int) ([]*models.GovernanceDefinition, error)
	FindByDomain(ctx context.Context, domainIdentifier, startFrom, pageSize int) ([]*models.GovernanceDefinition, error)
}

type typedDefinitionService struct {
	h        *definitionHandler
	typeName string
}

var _ TypedDefinitionService = (*typedDefinitionService)(nil)

func newTypedDefinitionService(h *definitionHandler, typeName string) *typedDefinitionService {
	return &typedDefinitionService{h: h, typeName: typeName}
}

func (s *typedDefinitionService) TypeName() string {
	return s.typeName
}

// method names the audited operation, e.g. createCertificationType.
func (s *typedDefinitionService) method(verb string) string {
	return verb + s.typeName
}

func (s *typedDefinitionService) Create(ctx context.Context, props models.GovernanceDefinitionProperties) (uuid.UUID, error) {
	return s.h.create(ctx, s.method("create"), s.typeName, props)
}

func (s *typedDefinitionService) Update(ctx context.Context, guid uuid.UUID, props models.GovernanceDefinitionProperties, isMergeUpdate bool) error {
	return s.h.update(ctx, s.method("update"), s.typeName, guid, s.typeName, props, isMergeUpdate)
}

func (s *typedDefinitionService) SetStatus(ctx context.Context, guid uuid.UUID, status models.DefinitionStatus) error {
	return s.h.setStatus(ctx, s.method("setStatusOf"), s.typeName, guid, status)
}

func (s *typedDefinitionService) Delete(ctx context.Context, guid uuid.UUID) error {
	return s.h.delete(ctx, s.method("delete"), s.typeName, guid)
}

func (s *typedDefinitionService) Get(ctx context.Context, guid uuid.UUID) (*models.GovernanceDefinition, error) {
	return s.h.get(ctx, s.method("get"), s.typeName, guid)
}

func (s *typedDefinitionService) FindByDocumentID(ctx context.Context, documentIdentifier string) (*models.GovernanceDefinition, error) {
	return s.h.findByDocumentID(ctx, s.method("find")+"ByDocId", s.typeName, documentIdentifier)
}

func (s *typedDefinitionService) FindByTitle(ctx context.Context, searchPattern string, startFrom, pageSize int) ([]*models.GovernanceDefinition, error) {
	return s.h.findByTitle(ctx, s.method("find")+"ByTitle", s.typeName, searchPattern, startFrom, pageSize)
}

func (s *typedDefinitionService) FindByDomain(ctx context.Context, domainIdentifier, startFrom, pageSize int) ([]*models.GovernanceDefinition, error) {
	return s.h.findByDomain(ctx, s.method("find")+"ByDomain", s.typeName, domainIdentifier, startFrom, pageSize)
}
