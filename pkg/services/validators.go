package services

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/repositories"
)

// Parameter validators shared by every governance service. Each returns a
// typed *apperrors.Error on failure and has no side effects.

func validateUserID(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.UserNotAuthorized("no acting user supplied")
	}
	return nil
}

func validateGUID(guid uuid.UUID, paramName, expectedType string) error {
	if guid == uuid.Nil {
		return apperrors.UnrecognizedGUID(paramName, "", expectedType)
	}
	return nil
}

// ParseGUID parses a caller-supplied identifier. An empty or malformed value
// is an UnrecognizedGUID for paramName.
func ParseGUID(raw, paramName, expectedType string) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, apperrors.UnrecognizedGUID(paramName, raw, expectedType)
	}
	guid, err := uuid.Parse(raw)
	if err != nil || guid == uuid.Nil {
		return uuid.Nil, apperrors.UnrecognizedGUID(paramName, raw, expectedType)
	}
	return guid, nil
}

func validateName(name, paramName string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.InvalidParameter("%s must not be empty", paramName)
	}
	return nil
}

func validateStatus(status models.DefinitionStatus, paramName string) error {
	if status == "" {
		return apperrors.InvalidParameter("%s must not be empty", paramName)
	}
	if !status.IsValid() {
		return apperrors.InvalidParameter("%s %q is not a recognized status", paramName, status)
	}
	return nil
}

// validateRepositoryConnector fails when the repository is missing or
// inactive, or when it cannot name its metadata collection.
func validateRepositoryConnector(ctx context.Context, repo repositories.MetadataRepository) error {
	if repo == nil || !repo.IsActive() {
		return apperrors.PropertyServer(apperrors.ErrUnavailable, "the metadata repository is not available")
	}
	if _, err := repo.MetadataCollection(ctx); err != nil {
		return apperrors.PropertyServer(err, "the metadata repository could not be reached")
	}
	return nil
}

func validateWindow(w models.EffectivityWindow) error {
	if !w.Valid() {
		return apperrors.InvalidParameter("effectiveFrom must not be after effectiveTo")
	}
	return nil
}

func validateSearchPattern(pattern, paramName string) error {
	if err := validateName(pattern, paramName); err != nil {
		return err
	}
	if err := repositories.CheckPattern(pattern); err != nil {
		return apperrors.InvalidParameter("%s is not a supported regular expression: %v", paramName, err)
	}
	return nil
}

func validateDomain(domainIdentifier *int) error {
	if domainIdentifier != nil && *domainIdentifier < 0 {
		return apperrors.InvalidParameter("domainIdentifier must not be negative")
	}
	return nil
}

// validatePaging rejects negative offsets and page sizes above maxPageSize.
// maxPageSize 0 disables the cap. pageSize 0 means all remaining results.
func validatePaging(startFrom, pageSize, maxPageSize int) error {
	if startFrom < 0 {
		return apperrors.InvalidParameter("startFrom must not be negative")
	}
	if pageSize < 0 {
		return apperrors.InvalidParameter("pageSize must not be negative")
	}
	if maxPageSize > 0 && pageSize > maxPageSize {
		return apperrors.InvalidParameter("pageSize %d exceeds the maximum of %d", pageSize, maxPageSize)
	}
	return nil
}
