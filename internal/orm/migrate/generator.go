package migrate

import (
	"fmt"
	"strings"

	"github.com/tornermarton/nest-api/internal/orm/schema"
)

// Generator generates DDL for the tables of a registry
type Generator struct {
	dialect Dialect
}

// NewGenerator creates a new DDL generator
func NewGenerator(dialect Dialect) *Generator {
	return &Generator{dialect: dialect}
}

// CreateEntityTable generates the CREATE TABLE statement of a resource type
func (g *Generator) CreateEntityTable(def *schema.Definition) string {
	var sql strings.Builder

	sql.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(EntityTable(def))))

	columns := []string{
		fmt.Sprintf("  %s %s", QuoteIdentifier(ColumnSeq), g.dialect.SerialPrimaryKey),
		fmt.Sprintf("  %s TEXT NOT NULL UNIQUE", QuoteIdentifier(def.IDField)),
	}
	for _, attr := range def.Attributes {
		column := fmt.Sprintf("  %s %s", QuoteIdentifier(attr.Name), g.dialect.ColumnType(attr.Type))
		if !attr.Nullable {
			column += " NOT NULL"
		}
		columns = append(columns, column)
	}
	columns = append(columns, g.auditColumns()...)

	sql.WriteString(strings.Join(columns, ",\n"))
	sql.WriteString("\n)")
	return sql.String()
}

// CreateRelationshipTable generates the link table of a relationship. Both
// ends reference their entity tables; a toOne table additionally allows a
// single row per id1.
func (g *Generator) CreateRelationshipTable(def *schema.Definition, rel *schema.RelationshipDescriptor) string {
	related := rel.RelatedDefinition()

	id1 := fmt.Sprintf("  %s TEXT NOT NULL", QuoteIdentifier(ColumnID1))
	if rel.Kind == schema.ToOne {
		id1 += " UNIQUE"
	}
	id1 += fmt.Sprintf(" REFERENCES %s (%s) ON DELETE CASCADE",
		QuoteIdentifier(EntityTable(def)), QuoteIdentifier(def.IDField))

	id2 := fmt.Sprintf("  %s TEXT NOT NULL REFERENCES %s (%s) ON DELETE CASCADE",
		QuoteIdentifier(ColumnID2), QuoteIdentifier(EntityTable(related)), QuoteIdentifier(related.IDField))

	columns := []string{
		fmt.Sprintf("  %s %s", QuoteIdentifier(ColumnSeq), g.dialect.SerialPrimaryKey),
		id1,
		id2,
	}
	columns = append(columns, g.auditColumns()...)
	columns = append(columns, fmt.Sprintf("  UNIQUE (%s, %s)", QuoteIdentifier(ColumnID1), QuoteIdentifier(ColumnID2)))

	var sql strings.Builder
	sql.WriteString(fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n", QuoteIdentifier(RelationshipTable(def, rel))))
	sql.WriteString(strings.Join(columns, ",\n"))
	sql.WriteString("\n)")
	return sql.String()
}

// CreateRelationshipIndex indexes id2 so inverse lookups and cleanup on
// delete do not scan the link table
func (g *Generator) CreateRelationshipIndex(def *schema.Definition, rel *schema.RelationshipDescriptor) string {
	table := RelationshipTable(def, rel)
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		QuoteIdentifier(table+"_id2_idx"), QuoteIdentifier(table), QuoteIdentifier(ColumnID2))
}

// Plan returns the statements creating every table of the registry. Entity
// tables come first so link tables can reference them.
func (g *Generator) Plan(reg *schema.Registry) []string {
	defs := reg.Definitions()

	var stmts []string
	for _, def := range defs {
		stmts = append(stmts, g.CreateEntityTable(def))
	}
	for _, def := range defs {
		for _, rel := range def.Relationships {
			stmts = append(stmts, g.CreateRelationshipTable(def, rel), g.CreateRelationshipIndex(def, rel))
		}
	}
	return stmts
}

// DropPlan returns the statements dropping every table of the registry, link
// tables first
func (g *Generator) DropPlan(reg *schema.Registry) []string {
	defs := reg.Definitions()

	var stmts []string
	for _, def := range defs {
		for _, rel := range def.Relationships {
			stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(RelationshipTable(def, rel))))
		}
	}
	for i := len(defs) - 1; i >= 0; i-- {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(EntityTable(defs[i]))))
	}
	return stmts
}

func (g *Generator) auditColumns() []string {
	timestamp := g.dialect.ColumnType(schema.TypeTimestamp)
	return []string{
		fmt.Sprintf("  %s %s NOT NULL", QuoteIdentifier(ColumnCreatedAt), timestamp),
		fmt.Sprintf("  %s TEXT NOT NULL DEFAULT ''", QuoteIdentifier(ColumnCreatedBy)),
		fmt.Sprintf("  %s %s NOT NULL", QuoteIdentifier(ColumnUpdatedAt), timestamp),
		fmt.Sprintf("  %s TEXT NOT NULL DEFAULT ''", QuoteIdentifier(ColumnUpdatedBy)),
	}
}
