package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/auth"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/services"
)

// TenantMiddleware binds a request to its server's repository connection.
type TenantMiddleware func(http.HandlerFunc) http.HandlerFunc

// sourced carries the optional external source of a mutating request.
type sourced struct {
	ExternalSource *models.ExternalSource `json:"external_source,omitempty"`
}

func (s sourced) apply(ctx context.Context) context.Context {
	if s.ExternalSource.IsZero() {
		return ctx
	}
	return models.WithExternalSource(ctx, s.ExternalSource)
}

// governanceFunc is a request handler that has its server's services.
type governanceFunc func(w http.ResponseWriter, r *http.Request, inst *services.ServiceInstance)

// GovernanceHandler serves the governance program REST surface.
type GovernanceHandler struct {
	registry *services.InstanceRegistry
	logger   *zap.Logger
}

// NewGovernanceHandler creates a new governance handler.
func NewGovernanceHandler(registry *services.InstanceRegistry, logger *zap.Logger) *GovernanceHandler {
	return &GovernanceHandler{
		registry: registry,
		logger:   logger.Named("governance-handler"),
	}
}

// RegisterRoutes registers every governance route on the given mux.
func (h *GovernanceHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware, tenantMiddleware TenantMiddleware) {
	base := "/api/servers/{server}/governance"

	handle := func(pattern string, fn governanceFunc) {
		method, path, _ := strings.Cut(pattern, " ")
		mux.HandleFunc(method+" "+base+path,
			authMiddleware.RequireAuthWithPathValidation("server")(tenantMiddleware(h.serve(fn))))
	}

	// Generic definitions
	handle("POST /definitions", h.createDefinition)
	handle("GET /definitions", h.findDefinitionsByTitle)
	handle("GET /definitions/by-document-id", h.findDefinitionByDocumentID)
	handle("GET /definitions/by-domain", h.findDefinitionsByDomain)
	handle("GET /definitions/{guid}", h.getDefinition)
	handle("PUT /definitions/{guid}", h.updateDefinition)
	handle("PUT /definitions/{guid}/status", h.setDefinitionStatus)
	handle("DELETE /definitions/{guid}", h.deleteDefinition)
	handle("GET /definitions/{guid}/peers", h.getPeers)
	handle("POST /definitions/{guid}/peers/{peer}", h.linkPeer)
	handle("DELETE /definitions/{guid}/peers/{peer}", h.unlinkPeer)
	handle("GET /definitions/{guid}/supporting", h.getSupporting)
	handle("GET /definitions/{guid}/supported", h.getSupported)
	handle("POST /definitions/{guid}/supporting/{supporting}", h.linkSupporting)
	handle("DELETE /definitions/{guid}/supporting/{supporting}", h.unlinkSupporting)

	// Certification and license types
	for prefix, typed := range map[string]func(*services.ServiceInstance) services.TypedDefinitionService{
		"/certification-types": func(inst *services.ServiceInstance) services.TypedDefinitionService { return inst.Certifications.Types() },
		"/license-types":       func(inst *services.ServiceInstance) services.TypedDefinitionService { return inst.Licenses.Types() },
	} {
		t := typedRoutes{h: h, typed: typed}
		handle("POST "+prefix, t.create)
		handle("GET "+prefix, t.findByTitle)
		handle("GET "+prefix+"/by-document-id", t.findByDocumentID)
		handle("GET "+prefix+"/by-domain", t.findByDomain)
		handle("GET "+prefix+"/{guid}", t.get)
		handle("PUT "+prefix+"/{guid}", t.update)
		handle("PUT "+prefix+"/{guid}/status", t.setStatus)
		handle("DELETE "+prefix+"/{guid}", t.delete)
	}

	// Certifications
	handle("POST /elements/{element}/certifications", h.certify)
	handle("GET /elements/{element}/certifications", h.getCertifications)
	handle("PUT /certifications/{guid}", h.updateCertification)
	handle("DELETE /certifications/{guid}", h.decertify)
	handle("GET /certification-types/{guid}/certified-elements", h.getCertifiedElements)

	// Licenses
	handle("POST /elements/{element}/licenses", h.licenseElement)
	handle("GET /elements/{element}/licenses", h.getLicenses)
	handle("PUT /licenses/{guid}", h.updateLicense)
	handle("DELETE /licenses/{guid}", h.unlicenseElement)
	handle("GET /license-types/{guid}/licensed-elements", h.getLicensedElements)

	// External references
	handle("POST /external-references", h.createExternalReference)
	handle("GET /external-references", h.findExternalReferences)
	handle("GET /external-references/{guid}", h.getExternalReference)
	handle("PUT /external-references/{guid}", h.updateExternalReference)
	handle("DELETE /external-references/{guid}", h.deleteExternalReference)
	handle("GET /external-references/{guid}/elements", h.getElementsForExternalReference)
	handle("GET /elements/{element}/external-references", h.getExternalReferencesForElement)
	handle("POST /elements/{element}/external-references/{guid}", h.linkExternalReference)
	handle("DELETE /elements/{element}/external-references/{guid}", h.unlinkExternalReference)

	// Governance zones
	handle("POST /zones", h.createZone)
	handle("GET /zones", h.findZones)
	handle("GET /zones/by-name", h.getZoneByName)
	handle("GET /zones/by-domain", h.getZonesForDomain)
	handle("GET /zones/{guid}", h.getZone)
	handle("PUT /zones/{guid}", h.updateZone)
	handle("DELETE /zones/{guid}", h.deleteZone)
	handle("GET /zones/{guid}/definition", h.getZoneDefinition)
	handle("POST /zones/{guid}/children/{child}", h.linkZones)
	handle("DELETE /zones/{guid}/children/{child}", h.unlinkZones)
	handle("POST /zones/{guid}/governed-by/{definition}", h.linkDefinitionToZone)
	handle("DELETE /zones/{guid}/governed-by/{definition}", h.unlinkDefinitionFromZone)
}

// serve resolves the addressed server and the acting user, then calls fn.
func (h *GovernanceHandler) serve(fn governanceFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serverName := r.PathValue("server")
		inst, err := h.registry.Lookup(serverName)
		if err != nil {
			writeServiceError(w, err, h.logger)
			return
		}
		ctx := models.WithUser(r.Context(), serverName, auth.GetUserIDFromContext(r.Context()))
		fn(w, r.WithContext(ctx), inst)
	}
}
