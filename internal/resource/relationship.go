package resource

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/repository"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
)

// FindRelated returns the resources related to id1 through key, transformed
// by the related type's manager. Their own relationships are linkage only,
// so a query with include is rejected.
func (m *Manager) FindRelated(ctx context.Context, key, id1 string, q query.Query, opts FindOptions) (*ResourcesResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}
	if len(q.Include()) > 0 {
		errs := validation.NewValidationErrors()
		errs.AddParameter("include", "related resources carry linkage only")
		return nil, errs
	}
	related, err := m.resolve(rel.RelatedDefinition().Type)
	if err != nil {
		return nil, err
	}

	var (
		entities []*repository.Entity
		total    *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		entities, err = repo.FindRelated(gctx, id1, q)
		return err
	})
	if opts.Count {
		g.Go(func() error {
			n, err := repo.CountRelated(gctx, id1, q.WithoutPage())
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

	resources, _, err := related.transformAll(ctx, entities, nil)
	if err != nil {
		return nil, err
	}
	return &ResourcesResponse{Data: resources, Total: total}, nil
}

// ReadRelated returns the single resource related to id1 through key, or
// nil Data when there is none
func (m *Manager) ReadRelated(ctx context.Context, key, id1 string) (*ResourceResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}
	related, err := m.resolve(rel.RelatedDefinition().Type)
	if err != nil {
		return nil, err
	}

	entity, err := repo.ReadRelated(ctx, id1)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return &ResourceResponse{}, nil
	}

	resource, _, err := related.transform(ctx, entity, nil)
	if err != nil {
		return nil, err
	}
	return &ResourceResponse{Data: resource}, nil
}

// FindRelationship returns the linkage of key for id1 without loading the
// related resources
func (m *Manager) FindRelationship(ctx context.Context, key, id1 string, q query.Query, opts FindOptions) (*RelationshipResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}

	var (
		links []*repository.Relationship
		total *int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		links, err = repo.Find(gctx, id1, q)
		return err
	})
	if opts.Count {
		g.Go(func() error {
			n, err := repo.Count(gctx, id1, q.WithoutPage())
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

	return m.linkage(rel, links, total), nil
}

// ReadRelationship returns the linkage of a toOne relationship
func (m *Manager) ReadRelationship(ctx context.Context, key, id1 string) (*RelationshipResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}

	link, err := repo.Read(ctx, id1)
	if err != nil {
		return nil, err
	}

	var links []*repository.Relationship
	if link != nil {
		links = append(links, link)
	}
	return m.linkage(rel, links, nil), nil
}

// CreateRelationship links id1 to id2s and returns the resulting linkage.
// A toOne relationship takes exactly one id; anything else fails with a
// cardinality error before any write.
func (m *Manager) CreateRelationship(ctx context.Context, key, id1 string, id2s []string, createdBy string) (*RelationshipResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}
	if rel.Kind == schema.ToOne && len(id2s) != 1 {
		return nil, &repository.CardinalityError{Relationship: key, Count: len(id2s)}
	}

	links, err := repo.Create(ctx, id1, id2s, createdBy)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("created relationship", zap.String("relationship", key), zap.String("id1", id1), zap.Strings("id2", id2s))
	return m.linkage(rel, links, nil), nil
}

// UpdateRelationship replaces every link of id1 with links to id2s.
// Concurrent replacements of the same id1 are last-commit-wins.
func (m *Manager) UpdateRelationship(ctx context.Context, key, id1 string, id2s []string, updatedBy string) (*RelationshipResponse, error) {
	rel, repo, err := m.relationship(key)
	if err != nil {
		return nil, err
	}
	if rel.Kind == schema.ToOne && len(id2s) > 1 {
		return nil, &repository.CardinalityError{Relationship: key, Count: len(id2s)}
	}
	if id2s == nil {
		id2s = []string{}
	}

	links, err := repo.Update(ctx, id1, id2s, updatedBy)
	if err != nil {
		return nil, err
	}

	m.logger.Debug("replaced relationship", zap.String("relationship", key), zap.String("id1", id1), zap.Strings("id2", id2s))
	return m.linkage(rel, links, nil), nil
}

// DeleteRelationship removes the links of id1 to id2s, or all of them when
// id2s is nil
func (m *Manager) DeleteRelationship(ctx context.Context, key, id1 string, id2s []string) error {
	_, repo, err := m.relationship(key)
	if err != nil {
		return err
	}

	if err := repo.Delete(ctx, id1, id2s); err != nil {
		return err
	}

	m.logger.Debug("deleted relationship", zap.String("relationship", key), zap.String("id1", id1), zap.Strings("id2", id2s))
	return nil
}

func (m *Manager) linkage(rel *schema.RelationshipDescriptor, links []*repository.Relationship, total *int) *RelationshipResponse {
	return &RelationshipResponse{
		Kind:  rel.Kind,
		Data:  identifiers(rel.RelatedDefinition().Type, repository.IDs(links)),
		Total: total,
	}
}
