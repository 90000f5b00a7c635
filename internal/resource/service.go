package resource

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// Backend supplies the repositories of every registered type
type Backend interface {
	EntityRepository(def *schema.Definition) repository.EntityRepository
	RelationshipRepository(def *schema.Definition, rel *schema.RelationshipDescriptor) repository.RelationshipRepository
}

// Service holds one Manager per registered type
type Service struct {
	registry *schema.Registry
	managers map[string]*Manager
	logger   *zap.Logger
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithLogger sets the logger handed to every manager
func WithLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService builds a manager for every type of reg, wiring an entity
// repository and one relationship repository per descriptor from backend
func NewService(reg *schema.Registry, backend Backend, opts ...ServiceOption) *Service {
	s := &Service{
		registry: reg,
		managers: make(map[string]*Manager),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, def := range reg.Definitions() {
		relationships := make(map[string]repository.RelationshipRepository, len(def.Relationships))
		for _, rel := range def.Relationships {
			relationships[rel.Name] = backend.RelationshipRepository(def, rel)
		}
		s.managers[def.Type] = NewManager(def, backend.EntityRepository(def), relationships, s.Manager, s.logger)
	}

	s.logger.Debug("resource service ready", zap.Strings("types", reg.Types()))
	return s
}

// Manager returns the manager of typ
func (s *Service) Manager(typ string) (*Manager, error) {
	m, ok := s.managers[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrUnknownType, typ)
	}
	return m, nil
}

// Registry returns the registry the service was built from
func (s *Service) Registry() *schema.Registry {
	return s.registry
}
