package resource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// ManagerResolver returns the manager of another resource type
type ManagerResolver func(typ string) (*Manager, error)

// Manager serves the resources of one type
type Manager struct {
	def           *schema.Definition
	entities      repository.EntityRepository
	relationships map[string]repository.RelationshipRepository
	resolve       ManagerResolver
	logger        *zap.Logger
}

// NewManager creates a manager. relationships must hold a repository for
// every relationship of def; resolve finds the managers of related types.
func NewManager(
	def *schema.Definition,
	entities repository.EntityRepository,
	relationships map[string]repository.RelationshipRepository,
	resolve ManagerResolver,
	logger *zap.Logger,
) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		def:           def,
		entities:      entities,
		relationships: relationships,
		resolve:       resolve,
		logger:        logger.With(zap.String("type", def.Type)),
	}
}

// Definition returns the definition of the managed type
func (m *Manager) Definition() *schema.Definition {
	return m.def
}

// Find returns the resources matching q with their relationships populated.
// The entity query and the optional count run concurrently; resources keep
// the repository's order.
func (m *Manager) Find(ctx context.Context, q query.Query, opts FindOptions) (*ResourcesResponse, error) {
	include := q.Include()
	if err := m.validateInclude(include); err != nil {
		return nil, err
	}

	var (
		entities []*repository.Entity
		total    *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entities, err = m.entities.Find(gctx, q.WithoutInclude())
		return err
	})
	if opts.Count {
		g.Go(func() error {
			n, err := m.entities.Count(gctx, q.WithoutPage().WithoutInclude())
			if err != nil {
				return err
			}
			total = &n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resources, included, err := m.transformAll(ctx, entities, include)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("found resources", zap.Int("count", len(resources)))
	return &ResourcesResponse{
		Data:     resources,
		Included: included,
		Total:    total,
	}, nil
}

// Create stores a new resource. The entity is written first; its
// relationships are written afterwards, concurrently, and only when the
// entity write succeeded.
func (m *Manager) Create(ctx context.Context, dto CreateDto) (*ResourceResponse, error) {
	attributes, links, err := m.split(dto.Values, true)
	if err != nil {
		return nil, err
	}

	entity, err := m.entities.Create(ctx, repository.EntityCreateDto{Values: attributes, CreatedBy: dto.CreatedBy})
	if err != nil {
		return nil, err
	}
	m.logger.Debug("created entity", zap.String("id", entity.ID))

	g, gctx := errgroup.WithContext(ctx)
	for key, ids := range links {
		key, ids := key, ids
		if len(ids) == 0 {
			continue
		}
		g.Go(func() error {
			_, err := m.relationships[key].Create(gctx, entity.ID, ids, dto.CreatedBy)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resource, included, err := m.transform(ctx, entity, nil)
	if err != nil {
		return nil, err
	}
	return &ResourceResponse{Data: resource, Included: included}, nil
}

// Read returns one resource. A missing resource yields nil Data and no error.
func (m *Manager) Read(ctx context.Context, id string, opts ReadOptions) (*ResourceResponse, error) {
	if err := m.validateInclude(opts.Include); err != nil {
		return nil, err
	}

	entity, err := m.entities.Read(ctx, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		m.logger.Debug("resource not found", zap.String("id", id))
		return &ResourceResponse{}, nil
	}

	resource, included, err := m.transform(ctx, entity, opts.Include)
	if err != nil {
		return nil, err
	}
	return &ResourceResponse{Data: resource, Included: included}, nil
}

// Update changes a resource. Relationship keys in the dto replace the whole
// relationship once the entity update succeeded. A missing resource yields
// nil Data and no relationship writes.
func (m *Manager) Update(ctx context.Context, id string, dto UpdateDto) (*ResourceResponse, error) {
	attributes, links, err := m.split(dto.Values, false)
	if err != nil {
		return nil, err
	}

	entity, err := m.entities.Update(ctx, id, repository.EntityUpdateDto{Values: attributes, UpdatedBy: dto.UpdatedBy})
	if err != nil {
		return nil, err
	}
	if entity == nil {
		m.logger.Debug("resource to update not found", zap.String("id", id))
		return &ResourceResponse{}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	for key, ids := range links {
		key, ids := key, ids
		g.Go(func() error {
			_, err := m.relationships[key].Update(gctx, id, ids, dto.UpdatedBy)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resource, included, err := m.transform(ctx, entity, nil)
	if err != nil {
		return nil, err
	}
	return &ResourceResponse{Data: resource, Included: included}, nil
}

// Delete removes a resource. The repository removes every link to it.
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.entities.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.Debug("deleted resource", zap.String("id", id))
	return nil
}

// relationship returns the descriptor and repository of key
func (m *Manager) relationship(key string) (*schema.RelationshipDescriptor, repository.RelationshipRepository, error) {
	rel, ok := m.def.Relationship(key)
	if !ok {
		return nil, nil, &schema.UnknownRelationshipError{Relationship: key, Type: m.def.Type}
	}
	repo, ok := m.relationships[key]
	if !ok {
		return nil, nil, fmt.Errorf("no repository for relationship %s.%s", m.def.Type, key)
	}
	return rel, repo, nil
}

func (m *Manager) validateInclude(include []string) error {
	errs := validation.NewValidationErrors()
	for _, key := range include {
		if _, ok := m.def.Relationship(key); !ok {
			errs.AddParameter("include", fmt.Sprintf("unknown relationship %q on type %q", key, m.def.Type))
		}
	}
	return errs.ErrorOrNil()
}
