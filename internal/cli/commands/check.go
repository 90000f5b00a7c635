package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tornermarton/nest-api/internal/cli/ui"
	"github.com/tornermarton/nest-api/internal/orm/migrate"
	"github.com/tornermarton/nest-api/internal/orm/schema"
)

var checkShowSQL bool

// NewCheckCommand creates the check command
func NewCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the resource definitions",
		Long: `Load nestapi.yaml, build every resource definition and print the
relationship graph. Relationships without an inverse are listed as
warnings. The database is not contacted.`,
		Args: cobra.NoArgs,
		RunE: runCheck,
	}

	cmd.Flags().BoolVar(&checkShowSQL, "sql", false, "Print the DDL that migrate up would run")

	return cmd
}

func runCheck(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	titleColor := color.New(color.FgCyan, color.Bold)

	cfg, reg, err := loadDefinitions(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	titleColor.Fprintf(out, "Resources (%d)\n", len(reg.Types()))
	table := ui.NewTable(out, noColor, "TYPE", "ID", "ATTRIBUTES", "RELATIONSHIPS")
	for _, def := range reg.Definitions() {
		attrs := make([]string, 0, len(def.Attributes))
		for _, attr := range def.Attributes {
			name := attr.Name + ":" + attr.Type.String()
			if attr.Nullable {
				name += "?"
			}
			attrs = append(attrs, name)
		}
		table.AddRow(def.Type, def.IDField, strings.Join(attrs, ", "), strings.Join(def.RelationshipNames(), ", "))
	}
	table.Render()

	graph := schema.NewRelationshipGraph(reg)
	titleColor.Fprintln(out, "\nRelationships")
	fmt.Fprint(out, graph.String())

	for _, edge := range graph.Unmirrored() {
		fmt.Fprint(out, ui.Warning(
			fmt.Sprintf("%s.%s has no inverse; %s will not list %s linking to it", edge.From, edge.Relationship, edge.To, edge.From),
			nil, noColor))
	}

	if checkShowSQL {
		dialect, err := migrate.DialectFor(cfg.Database.Driver)
		if err != nil {
			return err
		}
		titleColor.Fprintf(out, "\nDDL (%s)\n", dialect.Name)
		fmt.Fprintln(out, strings.Join(migrate.NewGenerator(dialect).Plan(reg), ";\n")+";")
	}

	ui.WriteSuccess(out, "resource definitions are valid", noColor)
	return nil
}
