package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// CertificationService manages certification types and the Certification
// edges that certify an element against one.
type CertificationService interface {
	// Types is the definition handler bound to CertificationType.
	Types() TypedDefinitionService

	// Certify certifies an element and returns the relationship GUID. The
	// same element may hold several certifications of one type.
	Certify(ctx context.Context, elementGUID, certificationTypeGUID uuid.UUID, props models.CertificationProperties) (uuid.UUID, error)

	// UpdateCertification rewrites the properties of a certification.
	UpdateCertification(ctx context.Context, certificationGUID uuid.UUID, props models.CertificationProperties, isMergeUpdate bool) error

	// Decertify removes a certification. A certification that does not
	// exist is not an error.
	Decertify(ctx context.Context, certificationGUID uuid.UUID) error

	// GetCertifications lists the certifications an element holds.
	GetCertifications(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) ([]models.Certification, error)

	// GetCertifiedElements lists the certifications made under a certification type.
	GetCertifiedElements(ctx context.Context, certificationTypeGUID uuid.UUID, opts models.QueryOptions) ([]models.Certification, error)
}

type certificationService struct {
	types  *typedDefinitionService
	grants *grantHandler
}

var _ CertificationService = (*certificationService)(nil)

// NewCertificationService creates the certification handler of one server.
func NewCertificationService(serverName string, deps Dependencies) CertificationService {
	return &certificationService{
		types: newTypedDefinitionService(
			&definitionHandler{core: newCore(serverName, deps, "certification-type-service")},
			models.TypeCertificationType),
		grants: &grantHandler{
			core:      newCore(serverName, deps, "certification-service"),
			relType:   models.RelCertification,
			typeName:  models.TypeCertificationType,
			typeParam: "certificationTypeGUID",
		},
	}
}

func (s *certificationService) Types() TypedDefinitionService {
	return s.types
}

func (s *certificationService) Certify(ctx context.Context, elementGUID, certificationTypeGUID uuid.UUID, props models.CertificationProperties) (uuid.UUID, error) {
	return s.grants.add(ctx, "certifyElement", elementGUID, certificationTypeGUID,
		mapper.CertificationProperties(props, true),
		models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo})
}

func (s *certificationService) UpdateCertification(ctx context.Context, certificationGUID uuid.UUID, props models.CertificationProperties, isMergeUpdate bool) error {
	return s.grants.update(ctx, "updateCertification", certificationGUID,
		mapper.CertificationProperties(props, !isMergeUpdate),
		models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo},
		isMergeUpdate)
}

func (s *certificationService) Decertify(ctx context.Context, certificationGUID uuid.UUID) error {
	return s.grants.remove(ctx, "decertifyElement", certificationGUID)
}

func (s *certificationService) GetCertifications(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) ([]models.Certification, error) {
	grants, err := s.grants.forElement(ctx, "getCertifications", elementGUID, opts)
	if err != nil {
		return nil, err
	}
	return toCertifications(grants), nil
}

func (s *certificationService) GetCertifiedElements(ctx context.Context, certificationTypeGUID uuid.UUID, opts models.QueryOptions) ([]models.Certification, error) {
	grants, err := s.grants.forType(ctx, "getCertifiedElements", certificationTypeGUID, opts)
	if err != nil {
		return nil, err
	}
	return toCertifications(grants), nil
}

func toCertifications(grants []grant) []models.Certification {
	out := make([]models.Certification, 0, len(grants))
	for _, g := range grants {
		out = append(out, models.Certification{
			RelationshipGUID:  g.rel.GUID,
			Element:           mapper.ToElementStub(g.element),
			CertificationType: mapper.ToDefinitionSummary(g.kind),
			Properties:        mapper.ToCertificationProperties(g.rel),
			ExternalSource:    g.rel.ExternalSource,
			CreatedBy:         g.rel.CreatedBy,
			CreatedAt:         g.rel.CreatedAt,
			UpdatedAt:         g.rel.UpdatedAt,
		})
	}
	return out
}
