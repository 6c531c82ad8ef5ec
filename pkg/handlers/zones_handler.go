package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// ZoneRequest is the body of POST and PUT on .../zones.
type ZoneRequest struct {
	sourced
	Properties models.GovernanceZoneProperties `json:"properties"`
}

func (h *GovernanceHandler) createZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	var req ZoneRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	guid, err := inst.Zones.Create(req.apply(r.Context()), req.Properties)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusCreated, CreatedResponse{GUID: guid}, h.logger)
}

// findZones handles GET /zones?name_pattern=...
func (h *GovernanceHandler) findZones(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	page, err := parsePaging(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	zones, err := inst.Zones.FindZones(r.Context(), r.URL.Query().Get("name_pattern"), page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, zones, page, h.logger)
}

// getZoneByName handles GET /zones/by-name?qualified_name=...
// A miss returns null data.
func (h *GovernanceHandler) getZoneByName(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	zone, err := inst.Zones.GetByName(r.Context(), r.URL.Query().Get("qualified_name"))
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, zone, h.logger)
}

func (h *GovernanceHandler) getZonesForDomain(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
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

	zones, err := inst.Zones.GetZonesForDomain(r.Context(), domain, page.StartFrom, page.PageSize)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeList(w, zones, page, h.logger)
}

func (h *GovernanceHandler) getZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceZone)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	zone, err := inst.Zones.Get(r.Context(), guid)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, zone, h.logger)
}

func (h *GovernanceHandler) updateZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceZone)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	isMerge, err := parseMergeFlag(r)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	var req ZoneRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Zones.Update(req.apply(r.Context()), guid, req.Properties, isMerge); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) deleteZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceZone)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Zones.Delete(r.Context(), guid); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// getZoneDefinition handles GET /zones/{guid}/definition
// Returns the zone with its parent, children and governing definitions.
func (h *GovernanceHandler) getZoneDefinition(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	guid, err := parseGUIDParam(r, "guid", models.TypeGovernanceZone)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	def, err := inst.Zones.GetZoneDefinition(r.Context(), guid)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeData(w, http.StatusOK, def, h.logger)
}

// linkZones handles POST /zones/{guid}/children/{child}
// A zone has at most one parent.
func (h *GovernanceHandler) linkZones(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	parent, child, ok := h.guidPair(w, r, "guid", models.TypeGovernanceZone, "child", models.TypeGovernanceZone)
	if !ok {
		return
	}
	var req sourced
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Zones.LinkZonesInHierarchy(req.apply(r.Context()), parent, child); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) unlinkZones(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	parent, child, ok := h.guidPair(w, r, "guid", models.TypeGovernanceZone, "child", models.TypeGovernanceZone)
	if !ok {
		return
	}

	if err := inst.Zones.UnlinkZonesInHierarchy(r.Context(), parent, child); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

// linkDefinitionToZone handles POST /zones/{guid}/governed-by/{definition}
func (h *GovernanceHandler) linkDefinitionToZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	zone, def, ok := h.guidPair(w, r, "guid", models.TypeGovernanceZone, "definition", models.TypeGovernanceDefinition)
	if !ok {
		return
	}
	var req sourced
	if err := decodeBody(w, r, &req); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}

	if err := inst.Zones.LinkDefinitionToZone(req.apply(r.Context()), def, zone); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) unlinkDefinitionFromZone(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance) {
	zone, def, ok := h.guidPair(w, r, "guid", models.TypeGovernanceZone, "definition", models.TypeGovernanceDefinition)
	if !ok {
		return
	}

	if err := inst.Zones.UnlinkDefinitionFromZone(r.Context(), def, zone); err != nil {
		writeServiceError(w, err, h.logger)
		return
	}
	writeNoContent(w, h.logger)
}

func (h *GovernanceHandler) guidPair(w http.ResponseWriter, r *http.Request, first, firstType, second, secondType string) (uuid.UUID, uuid.UUID, bool) {
	a, err := parseGUIDParam(r, first, firstType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	b, err := parseGUIDParam(r, second, secondType)
	if err != nil {
		writeServiceError(w, err, h.logger)
		return uuid.Nil, uuid.Nil, false
	}
	return a, b, true
}
