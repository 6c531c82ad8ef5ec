package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// CreateDefinitionRequest is the body of POST .../definitions.
type CreateDefinitionRequest struct {
	sourced
	TypeName   string                                `json:"type_name"`
	Properties models.GovernanceDefinitionProperties `json:"properties"`
}

// UpdateDefinitionRequest is the body of PUT .../definitions/{guid}.
type UpdateDefinitionRequest struct {
	sourced
	TypeName   string                                `json:"type_name,omitempty"`
	Properties models.GovernanceDefinitionProperties `json:"properties"`
}

// SetStatusRequest is the body of PUT .../{guid}/status.
type SetStatusRequest struct {
	sourced
	Status models.DefinitionStatus `json:"status"`
}

// LinkDefinitionsRequest is the body of a peer or supporting link request.
// Description applies to peer links, Rationale to supporting links.
type LinkDefinitionsRequest struct {
	sourced
	RelationshipName string     `json:"relationship_name"`
	Description      string     `json:"description,omitempty"`
	Rationale        string     `json:"rationale,omitempty"`
	EffectiveFrom    *time.Time `json:"effective_from,omitempty"`
	EffectiveTo      *time.Time `json:"effective_to,omitempty"`
}

func (req LinkDefinitionsRequest) window() models.EffectivityWindow {
	return models.EffectivityWindow{From: req.EffectiveFrom, To: req.EffectiveTo}
}

// CreatedResponse is the data of a successful create.
type CreatedResponse struct {
	GUID uuid.UUID `json:"guid"`
}

// createDefinition handles POST /definitions
func (h *GovernanceHandler) createDefinition(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	var req CreateDefinitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	guid, err := inst.Definitions.Create(req.apply(r.Context()), req.TypeName, req.Properties)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, h.logger)
}

// findDefinitionsByTitle handles GET /definitions?title=...&type_name=...
func (h *GovernanceHandler) findDefinitionsByTitle(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	q := r.URL.Query()

	defs, err := inst.Definitions.FindByTitle(r.Context(), q.Get("type_name"), q.Get("title"), page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, defs, page, h.logger)
}

// findDefinitionByDocumentID handles GET /definitions/by-document-id
// A miss returns null data rather than an error.
func (h *GovernanceHandler) findDefinitionByDocumentID(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	q := r.URL.Query()
	def, err := inst.Definitions.FindByDocumentID(r.Context(), q.Get("type_name"), q.Get("document_identifier"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, def, h.logger)
}

// findDefinitionsByDomain handles GET /definitions/by-domain
func (h *GovernanceHandler) findDefinitionsByDomain(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	domain, err := queryInt(r, "domain_identifier")
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	defs, err := inst.Definitions.FindByDomain(r.Context(), r.URL.Query().Get("type_name"), domain, page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, defs, page, h.logger)
}

func (h *GovernanceHandler) getDefinition(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	def, err := inst.Definitions.Get(r.Context(), guid)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, def, h.logger)
}

// updateDefinition handles PUT /definitions/{guid}?is_merge_update=true|false
func (h *GovernanceHandler) updateDefinition(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req UpdateDefinitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Definitions.Update(req.apply(r.Context()), guid, req.TypeName, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) setDefinitionStatus(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req SetStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Definitions.SetStatus(req.apply(r.Context()), guid, req.Status); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) deleteDefinition(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Definitions.Delete(r.Context(), guid); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) getPeers(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	links, err := inst.Definitions.GetPeers(r.Context(), guid, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, links, page, h.logger)
}

// linkPeer handles POST /definitions/{guid}/peers/{peer}
// Relinking an existing pair updates its description and window.
func (h *GovernanceHandler) linkPeer(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid1, guid2, ok := h.guidPair(w, r, "guid", models.TypeGovernanceDefinition, "peer", models.TypeGovernanceDefinition)
	if !ok {
		return
	}
	var req LinkDefinitionsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Definitions.LinkPeer(req.apply(r.Context()), guid1, guid2, req.RelationshipName, req.Description, req.window()); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// unlinkPeer handles DELETE /definitions/{guid}/peers/{peer}?relationship_name=...
func (h *GovernanceHandler) unlinkPeer(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid1, guid2, ok := h.guidPair(w, r, "guid", models.TypeGovernanceDefinition, "peer", models.TypeGovernanceDefinition)
	if !ok {
		return
	}

	if err := inst.Definitions.UnlinkPeer(r.Context(), guid1, guid2, r.URL.Query().Get("relationship_name")); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) getSupporting(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listSupportingLinks(w, r, inst.Definitions.GetSupporting)
}

func (h *GovernanceHandler) getSupported(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	h.listSupportingLinks(w, r, inst.Definitions.GetSupported)
}

func (h *GovernanceHandler) listSupportingLinks(w http.ResponseWriter, r *http.Request,
	list func(ctx context.Context, guid uuid.UUID, opts models.QueryOptions) ([]models.SupportingDefinitionLink, error),
) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceDefinition)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	opts, page, err := parseQueryOptions(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	links, err := list(r.Context(), guid, opts)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, links, page, h.logger)
}

// linkSupporting handles POST /definitions/{guid}/supporting/{supporting}
func (h *GovernanceHandler) linkSupporting(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, supporting, ok := h.guidPair(w, r, "guid", models.TypeGovernanceDefinition, "supporting", models.TypeGovernanceDefinition)
	if !ok {
		return
	}
	var req LinkDefinitionsRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Definitions.LinkSupporting(req.apply(r.Context()), guid, supporting, req.RelationshipName, req.Rationale, req.window()); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) unlinkSupporting(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, supporting, ok := h.guidPair(w, r, "guid", models.TypeGovernanceDefinition, "supporting", models.TypeGovernanceDefinition)
	if !ok {
		return
	}

	if err := inst.Definitions.UnlinkSupporting(r.Context(), guid, supporting, r.URL.Query().Get("relationship_name")); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// typedRoutes serves the definition routes of one fixed definition kind.
type typedRoutes struct {
	h     *GovernanceHandler
	typed func(*services.ServiceInstance) services.TypedDefinitionService
}

func (t typedRoutes) create(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	var req UpdateDefinitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	guid, err := t.typed(inst).Create(req.apply(r.Context()), req.Properties)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, t.h.logger)
}

func (t typedRoutes) findByTitle(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	defs, err := t.typed(inst).FindByTitle(r.Context(), r.URL.Query().Get("title"), page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeList(w, defs, page, t.h.logger)
}

func (t typedRoutes) findByDocumentID(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	def, err := t.typed(inst).FindByDocumentID(r.Context(), r.URL.Query().Get("document_identifier"))
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeData(w, http.StatusOK, def, t.h.logger)
}

func (t typedRoutes) findByDomain(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	domain, err := queryInt(r, "domain_identifier")
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	defs, err := t.typed(inst).FindByDomain(r.Context(), domain, page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeList(w, defs, page, t.h.logger)
}

func (t typedRoutes) get(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	svc := t.typed(inst)
	guid, err := parseGUIDParam(r, "guid", svc.TypeName())
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	def, err := svc.Get(r.Context(), guid)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeData(w, http.StatusOK, def, t.h.logger)
}

func (t typedRoutes) update(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	svc := t.typed(inst)
	guid, err := parseGUIDParam(r, "guid", svc.TypeName())
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	var req UpdateDefinitionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	if err := svc.Update(req.apply(r.Context()), guid, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeNoContent(w, t.h.logger)
}

func (t typedRoutes) setStatus(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	svc := t.typed(inst)
	guid, err := parseGUIDParam(r, "guid", svc.TypeName())
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	var req SetStatusRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	if err := svc.SetStatus(req.apply(r.Context()), guid, req.Status); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeNoContent(w, t.h.logger)
}

func (t typedRoutes) delete(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	svc := t.typed(inst)
	guid, err := parseGUIDParam(r, "guid", svc.TypeName())
	if err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}

	if err := svc.Delete(r.Context(), guid); err != nil {
		writeServiceError(w, err, t.h.logger)
		return
	}
	writeNoContent(w, t.h.logger)
}
