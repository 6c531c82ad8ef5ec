package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// CreateExternalReferenceRequest is the body of POST .../external-references.
// When AnchorGUID is set the reference is owned by, linked to and deleted
// with that element.
type CreateExternalReferenceRequest struct {
	sourced
	TypeName   string                             `json:"type_name,omitempty"`
	AnchorGUID string                             `json:"anchor_guid,omitempty"`
	Properties models.ExternalReferenceProperties `json:"properties"`
}

// UpdateExternalReferenceRequest is the body of PUT .../external-references/{guid}.
type UpdateExternalReferenceRequest struct {
	sourced
	Properties models.ExternalReferenceProperties `json:"properties"`
}

// LinkExternalReferenceRequest is the body of
// POST .../elements/{element}/external-references/{guid}.
type LinkExternalReferenceRequest struct {
	sourced
	models.ExternalReferenceLinkProperties
}

// createExternalReference handles POST /external-references
func (h *GovernanceHandler) createExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	var req CreateExternalReferenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var anchor *uuid.UUID
	if req.AnchorGUID != "" {
		a, err := services.ParseGUID(req.AnchorGUID, "anchor_guid", models.TypeReferenceable)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		anchor = &a
	}

	guid, err := inst.ExternalReferences.Create(req.apply(r.Context()), req.TypeName, req.Properties, anchor)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, h.logger)
}

// findExternalReferences handles GET /external-references?resource_id=...
// Results are ordered most recently created first.
func (h *GovernanceHandler) findExternalReferences(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	refs, err := inst.ExternalReferences.FindByResourceID(r.Context(), r.URL.Query().Get("resource_id"), page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, refs, page, h.logger)
}

func (h *GovernanceHandler) getExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeExternalReference)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	ref, err := inst.ExternalReferences.Get(r.Context(), guid)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, ref, h.logger)
}

func (h *GovernanceHandler) updateExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeExternalReference)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req UpdateExternalReferenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.ExternalReferences.Update(req.apply(r.Context()), guid, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) deleteExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeExternalReference)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.ExternalReferences.Delete(r.Context(), guid); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) getElementsForExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeExternalReference)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	attachments, err := inst.ExternalReferences.GetElementsForExternalReference(r.Context(), guid, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, attachments, page, h.logger)
}

func (h *GovernanceHandler) getExternalReferencesForElement(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	elementGUID, err := parseGUIDParam(r, "element", models.TypeReferenceable)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	attachments, err := inst.ExternalReferences.GetExternalReferencesForElement(r.Context(), elementGUID, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, attachments, page, h.logger)
}

// linkExternalReference handles POST /elements/{element}/external-references/{guid}
// Relinking the same pair replaces the link properties.
func (h *GovernanceHandler) linkExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	elementGUID, refGUID, ok := h.guidPair(w, r, "element", models.TypeReferenceable, "guid", models.TypeExternalReference)
	if !ok {
		return
	}
	var req LinkExternalReferenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.ExternalReferences.LinkToElement(req.apply(r.Context()), elementGUID, refGUID, req.ExternalReferenceLinkProperties); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// unlinkExternalReference handles DELETE /elements/{element}/external-references/{guid}
// Unlinking a reference from its anchor deletes the reference.
func (h *GovernanceHandler) unlinkExternalReference(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	elementGUID, refGUID, ok := h.guidPair(w, r, "element", models.TypeReferenceable, "guid", models.TypeExternalReference)
	if !ok {
		return
	}

	if err := inst.ExternalReferences.UnlinkFromElement(r.Context(), elementGUID, refGUID); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}
