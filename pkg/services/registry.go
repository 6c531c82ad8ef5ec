package services

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-governance/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-governance/pkg/audit"
	"github.com/ekaya-inc/ekaya-governance/pkg/locks"
	"github.com/ekaya-inc/ekaya-governance/pkg/metrics"
	"github.com/ekaya-inc/ekaya-governance/pkg/models"
	"github.com/ekaya-inc/ekaya-governance/pkg/repositories"
)

// Dependencies are shared by every handler of a server. Repository and Schema
// are required; the rest may be nil.
type Dependencies struct {
	Repository  repositories.MetadataRepository
	Schema      *models.TypeSchema
	Locker      locks.Locker
	Auditor     *audit.CallAuditor
	Metrics     *metrics.CallMetrics
	MaxPageSize int
	Logger      *zap.Logger
}

// ServiceInstance is the set of governance handlers serving one server name.
type ServiceInstance struct {
	ServerName         string
	Repository         repositories.MetadataRepository
	Definitions        GovernanceDefinitionService
	Certifications     CertificationService
	Licenses           LicenseService
	ExternalReferences ExternalReferenceService
	Zones              GovernanceZoneService
}

// NewServiceInstance builds the handlers of one server.
func NewServiceInstance(serverName string, deps Dependencies) (*ServiceInstance, error) {
	if serverName == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if deps.Repository == nil {
		return nil, fmt.Errorf("server %q: metadata repository is required", serverName)
	}
	if deps.Schema == nil {
		return nil, fmt.Errorf("server %q: type schema is required", serverName)
	}
	return &ServiceInstance{
		ServerName:         serverName,
		Repository:         deps.Repository,
		Definitions:        NewGovernanceDefinitionService(serverName, deps),
		Certifications:     NewCertificationService(serverName, deps),
		Licenses:           NewLicenseService(serverName, deps),
		ExternalReferences: NewExternalReferenceService(serverName, deps),
		Zones:              NewGovernanceZoneService(serverName, deps),
	}, nil
}

// InstanceRegistry maps server names to their service instances. It is
// populated at startup and read concurrently by requests.
type InstanceRegistry struct {
	mu        sync.RWMutex
	instances map[string]*ServiceInstance
}

// NewInstanceRegistry registers instances. Server names must be unique.
func NewInstanceRegistry(instances ...*ServiceInstance) (*InstanceRegistry, error) {
	r := &InstanceRegistry{instances: make(map[string]*ServiceInstance, len(instances))}
	for _, inst := range instances {
		if err := r.Register(inst); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an instance.
func (r *InstanceRegistry) Register(inst *ServiceInstance) error {
	if inst == nil || inst.ServerName == "" {
		return fmt.Errorf("service instance must have a server name")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.instances[inst.ServerName]; dup {
		return fmt.Errorf("server %q is already registered", inst.ServerName)
	}
	r.instances[inst.ServerName] = inst
	return nil
}

// Lookup returns the instance for serverName. An unknown server is an
// InvalidParameter error.
func (r *InstanceRegistry) Lookup(serverName string) (*ServiceInstance, error) {
	if serverName == "" {
		return nil, apperrors.InvalidParameter("serverName must be supplied")
	}
	r.mu.RLock()
	inst, ok := r.instances[serverName]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.InvalidParameter("server %q is not hosted by this platform", serverName)
	}
	return inst, nil
}

// ServerNames returns the registered server names, sorted.
func (r *InstanceRegistry) ServerNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
