package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/mapper"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
)

// LicenseService manages license types and the License edges that license
// an element under one.
type LicenseService interface {
	// Types is the definition handler bound to LicenseType.
	Types() TypedDefinitionService

	// LicenseElement licenses an element and returns the relationship GUID.
	LicenseElement(ctx context.Context, elementGUID, licenseTypeGUID uuid.UUID, props models.LicenseProperties) (uuid.UUID, error)

	// UpdateLicense rewrites the properties of a license.
	UpdateLicense(ctx context.Context, licenseGUID uuid.UUID, props models.LicenseProperties, isMergeUpdate bool) error

	// UnlicenseElement removes a license. A license that does not exist is
	// not an error.
	UnlicenseElement(ctx context.Context, licenseGUID uuid.UUID) error

	// GetLicenses lists the licenses an element holds.
	GetLicenses(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) ([]models.License, error)

	// GetLicensedElements lists the licenses granted under a license type.
	GetLicensedElements(ctx context.Context, licenseTypeGUID uuid.UUID, opts models.QueryOptions) ([]models.License, error)
}

type licenseService struct {
	types  *typedDefinitionService
	grants *grantHandler
}

var _ LicenseService = (*licenseService)(nil)

// NewLicenseService creates the license handler of one server.
func NewLicenseService(serverName string, deps Dependencies) LicenseService {
	return &licenseService{
		types: newTypedDefinitionService(
			&definitionHandler{core: newCore(serverName, deps, "license-type-service")},
			models.TypeLicenseType),
		grants: &grantHandler{
			core:      newCore(serverName, deps, "license-service"),
			relType:   models.RelLicense,
			typeName:  models.TypeLicenseType,
			typeParam: "licenseTypeGUID",
		},
	}
}

func (s *licenseService) Types() TypedDefinitionService {
	return s.types
}

func (s *licenseService) LicenseElement(ctx context.Context, elementGUID, licenseTypeGUID uuid.UUID, props models.LicenseProperties) (uuid.UUID, error) {
	return s.grants.add(ctx, "licenseElement", elementGUID, licenseTypeGUID,
		mapper.LicenseProperties(props, true),
		models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo})
}

func (s *licenseService) UpdateLicense(ctx context.Context, licenseGUID uuid.UUID, props models.LicenseProperties, isMergeUpdate bool) error {
	return s.grants.update(ctx, "updateLicense", licenseGUID,
		mapper.LicenseProperties(props, !isMergeUpdate),
		models.EffectivityWindow{From: props.EffectiveFrom, To: props.EffectiveTo},
		isMergeUpdate)
}

func (s *licenseService) UnlicenseElement(ctx context.Context, licenseGUID uuid.UUID) error {
	return s.grants.remove(ctx, "unlicenseElement", licenseGUID)
}

func (s *licenseService) GetLicenses(ctx context.Context, elementGUID uuid.UUID, opts models.QueryOptions) ([]models.License, error) {
	grants, err := s.grants.forElement(ctx, "getLicenses", elementGUID, opts)
	if err != nil {
		return nil, err
	}
	return toLicenses(grants), nil
}

func (s *licenseService) GetLicensedElements(ctx context.Context, licenseTypeGUID uuid.UUID, opts models.QueryOptions) ([]models.License, error) {
	grants, err := s.grants.forType(ctx, "getLicensedElements", licenseTypeGUID, opts)
	if err != nil {
		return nil, err
	}
	return toLicenses(grants), nil
}

func toLicenses(grants []grant) []models.License {
	out := make([]models.License, 0, len(grants))
	for _, g := range grants {
		out = append(out, models.License{
			RelationshipGUID: g.rel.GUID,
			Element:          mapper.ToElementStub(g.element),
			LicenseType:      mapper.ToDefinitionSummary(g.kind),
			Properties:       mapper.ToLicenseProperties(g.rel),
			ExternalSource:   g.rel.ExternalSource,
			CreatedBy:        g.rel.CreatedBy,
			CreatedAt:        g.rel.CreatedAt,
			UpdatedAt:        g.rel.UpdatedAt,
		})
	}
	return out
}
