package resource

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// transformAll transforms entities concurrently. Resources come back in the
// order of entities whatever order the goroutines finish in; included
// resources are merged without duplicates.
func (m *Manager) transformAll(ctx context.Context, entities []*repository.Entity, include []string) ([]*Resource, []*Resource, error) {
	resources := make([]*Resource, len(entities))
	includes := make([][]*Resource, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range entities {
		i, entity := i, entity
		g.Go(func() error {
			resource, included, err := m.transform(gctx, entity, include)
			if err != nil {
				return err
			}
			resources[i] = resource
			includes[i] = included
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	set := newIncludedSet(resources...)
	for _, included := range includes {
		set.add(included...)
	}
	return resources, set.list(), nil
}

// transform builds the resource of entity and populates every relationship
// concurrently: keys in include are resolved to full resources, which are
// also returned as included, all others to linkage only.
func (m *Manager) transform(ctx context.Context, entity *repository.Entity, include []string) (*Resource, []*Resource, error) {
	resource := newResource(m.def.Type, entity)
	if len(m.def.Relationships) == 0 {
		return resource, nil, nil
	}

	wanted := make(map[string]bool, len(include))
	for _, key := range include {
		wanted[key] = true
	}

	linkages := make([]*Linkage, len(m.def.Relationships))
	includes := make([][]*Resource, len(m.def.Relationships))

	g, gctx := errgroup.WithContext(ctx)
	for i, rel := range m.def.Relationships {
		i, rel := i, rel
		g.Go(func() error {
			var err error
			if wanted[rel.Name] {
				linkages[i], includes[i], err = m.populateIncluded(gctx, rel, entity.ID)
			} else {
				linkages[i], err = m.populateLinkage(gctx, rel, entity.ID)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	set := newIncludedSet(resource)
	for i, rel := range m.def.Relationships {
		resource.Relationships[rel.Name] = linkages[i]
		set.add(includes[i]...)
	}
	return resource, set.list(), nil
}

func (m *Manager) populateIncluded(ctx context.Context, rel *schema.RelationshipDescriptor, id string) (*Linkage, []*Resource, error) {
	var related []*Resource
	if rel.Kind == schema.ToOne {
		res, err := m.ReadRelated(ctx, rel.Name, id)
		if err != nil {
			return nil, nil, err
		}
		if res.Data != nil {
			related = append(related, res.Data)
		}
	} else {
		res, err := m.FindRelated(ctx, rel.Name, id, query.New(), FindOptions{})
		if err != nil {
			return nil, nil, err
		}
		related = res.Data
	}

	linkage := &Linkage{Kind: rel.Kind, Data: make([]Identifier, 0, len(related))}
	for _, r := range related {
		linkage.Data = append(linkage.Data, r.Identifier())
	}
	return linkage, related, nil
}

func (m *Manager) populateLinkage(ctx context.Context, rel *schema.RelationshipDescriptor, id string) (*Linkage, error) {
	var (
		res *RelationshipResponse
		err error
	)
	if rel.Kind == schema.ToOne {
		res, err = m.ReadRelationship(ctx, rel.Name, id)
	} else {
		res, err = m.FindRelationship(ctx, rel.Name, id, query.New(), FindOptions{})
	}
	if err != nil {
		return nil, err
	}
	return &Linkage{Kind: rel.Kind, Data: res.Data}, nil
}
