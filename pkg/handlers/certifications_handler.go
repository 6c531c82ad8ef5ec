package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// CertifyRequest is the body of POST .../elements/{element}/certifications.
type CertifyRequest struct {
	sourced
	CertificationTypeGUID string                         `json:"certification_type_guid"`
	Properties            models.CertificationProperties `json:"properties"`
}

// UpdateCertificationRequest is the body of PUT .../certifications/{guid}.
type UpdateCertificationRequest struct {
	sourced
	Properties models.CertificationProperties `json:"properties"`
}

// LicenseRequest is the body of POST .../elements/{element}/licenses.
type LicenseRequest struct {
	sourced
	LicenseTypeGUID string                   `json:"license_type_guid"`
	Properties      models.LicenseProperties `json:"properties"`
}

// UpdateLicenseRequest is the body of PUT .../licenses/{guid}.
type UpdateLicenseRequest struct {
	sourced
	Properties models.LicenseProperties `json:"properties"`
}

// certify handles POST /elements/{element}/certifications
// An element may hold several certifications of the same type.
func (h *GovernanceHandler) certify(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	elementGUID, err := parseGUIDParam(r, "element", models.TypeReferenceable)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req CertifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	typeGUID, err := services.ParseGUID(req.CertificationTypeGUID, "certification_type_guid", models.TypeCertificationType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	guid, err := inst.Certifications.Certify(req.apply(r.Context()), elementGUID, typeGUID, req.Properties)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, h.logger)
}

func (h *GovernanceHandler) getCertifications(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listCertifications(w, r, "element", models.TypeReferenceable, inst.Certifications.GetCertifications)
}

func (h *GovernanceHandler) getCertifiedElements(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listCertifications(w, r, "guid", models.TypeCertificationType, inst.Certifications.GetCertifiedElements)
}

func (h *GovernanceHandler) listCertifications(w http.ResponseWriter, r *http.Request, param, expectedType string,
	list func(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.Certification, error),
) {
	guid, err := parseGUIDParam(r, param, expectedType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	certs, err := list(r.Context(), guid, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, certs, page, h.logger)
}

// updateCertification handles PUT /certifications/{guid}?is_merge_update=true|false
func (h *GovernanceHandler) updateCertification(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.RelCertification)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req UpdateCertificationRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Certifications.UpdateCertification(req.apply(r.Context()), guid, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) decertify(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.RelCertification)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Certifications.Decertify(r.Context(), guid); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// licenseElement handles POST /elements/{element}/licenses
func (h *GovernanceHandler) licenseElement(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	elementGUID, err := parseGUIDParam(r, "element", models.TypeReferenceable)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req LicenseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	typeGUID, err := services.ParseGUID(req.LicenseTypeGUID, "license_type_guid", models.TypeLicenseType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	guid, err := inst.Licenses.LicenseElement(req.apply(r.Context()), elementGUID, typeGUID, req.Properties)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, h.logger)
}

func (h *GovernanceHandler) getLicenses(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listLicenses(w, r, "element", models.TypeReferenceable, inst.Licenses.GetLicenses)
}

func (h *GovernanceHandler) getLicensedElements(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listLicenses(w, r, "guid", models.TypeLicenseType, inst.Licenses.GetLicensedElements)
}

func (h *GovernanceHandler) listLicenses(w http.ResponseWriter, r *http.Request, param, expectedType string,
	list func(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.License, error),
) {
	guid, err := parseGUIDParam(r, param, expectedType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	licenses, err := list(r.Context(), guid, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, licenses, page, h.logger)
}

// updateLicense handles PUT /licenses/{guid}?is_merge_update=true|false
func (h *GovernanceHandler) updateLicense(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.RelLicense)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req UpdateLicenseRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Licenses.UpdateLicense(req.apply(r.Context()), guid, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) unlicenseElement(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.RelLicense)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Licenses.UnlicenseElement(r.Context(), guid); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}
