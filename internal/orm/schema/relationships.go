package schema

import (
	"fmt"
	"strings"
)

// Edge is one relationship in the resource graph
type Edge struct {
	From         string
	Relationship string
	To           string
	Kind         Kind
	Inverse      string
}

// RelationshipGraph is the directed graph of resource types linked by relationships
type RelationshipGraph struct {
	nodes []string
	edges map[string][]Edge
}

// NewRelationshipGraph builds the graph of a registry
func NewRelationshipGraph(r *Registry) *RelationshipGraph {
	g := &RelationshipGraph{
		nodes: r.Types(),
		edges: make(map[string][]Edge),
	}

	for _, def := range r.Definitions() {
		for _, rel := range def.Relationships {
			g.edges[def.Type] = append(g.edges[def.Type], Edge{
				From:         def.Type,
				Relationship: rel.Name,
				To:           rel.RelatedDefinition().Type,
				Kind:         rel.Kind,
				Inverse:      rel.Inverse,
			})
		}
	}

	return g
}

// Edges returns the outgoing edges of a type
func (g *RelationshipGraph) Edges(typ string) []Edge {
	return g.edges[typ]
}

// Unmirrored returns the edges declared without an inverse
func (g *RelationshipGraph) Unmirrored() []Edge {
	var result []Edge
	for _, node := range g.nodes {
		for _, edge := range g.edges[node] {
			if edge.Inverse == "" {
				result = append(result, edge)
			}
		}
	}
	return result
}

// String formats the graph, one edge per line
func (g *RelationshipGraph) String() string {
	var b strings.Builder
	for _, node := range g.nodes {
		b.WriteString(node)
		b.WriteString("\n")
		for _, edge := range g.Edges(node) {
			b.WriteString(fmt.Sprintf("  %s (%s) -> %s", edge.Relationship, edge.Kind, edge.To))
			if edge.Inverse != "" {
				b.WriteString(fmt.Sprintf(" <-> %s.%s", edge.To, edge.Inverse))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
