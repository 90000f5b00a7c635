package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tornermarton/nest-api/internal/cli/ui"
)

var migrateYes bool

// NewMigrateCommand creates the migrate command
func NewMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or drop the resource tables",
		Long: `Create or drop the tables of every configured resource.

Each resource type gets one table; each relationship gets one link table
named <type>__<relationship>. All statements run in a single transaction.

Available subcommands:
  up    - Create every missing table
  down  - Drop every table (asks for confirmation)`,
	}

	cmd.AddCommand(newMigrateUpCommand())
	cmd.AddCommand(newMigrateDownCommand())

	return cmd
}

func newMigrateUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Create every missing table",
		Args:  cobra.NoArgs,
		RunE:  runMigrateUp,
	}
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	infoColor := color.New(color.FgCyan)

	env, err := loadEnvironment(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	infoColor.Fprintf(cmd.OutOrStdout(), "Creating tables for %d resource types (%s)\n", len(env.registry.Types()), env.dialect.Name)
	if err := env.store.Migrate(cmd.Context()); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError(err.Error(), "The transaction was rolled back; no table was changed.", nil, noColor))
		return err
	}

	ui.WriteSuccess(cmd.OutOrStdout(), "tables are up to date", noColor)
	return nil
}

func newMigrateDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Drop every table",
		Long:  "Drop the link tables and entity tables of every configured resource, deleting all data",
		Args:  cobra.NoArgs,
		RunE:  runMigrateDown,
	}

	cmd.Flags().BoolVarP(&migrateYes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(cmd.Context(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	if !migrateYes {
		confirmed := false
		prompt := &survey.Confirm{
			Message: fmt.Sprintf("Drop the tables of %d resource types and all their data?", len(env.registry.Types())),
			Default: false,
		}
		if err := survey.AskOne(prompt, &confirmed); err != nil {
			return fmt.Errorf("confirmation failed: %w", err)
		}
		if !confirmed {
			fmt.Fprint(cmd.OutOrStdout(), ui.Info("nothing dropped", noColor))
			return nil
		}
	}

	if err := env.store.Drop(cmd.Context()); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.MigrationError(err.Error(), "The transaction was rolled back; no table was dropped.", nil, noColor))
		return err
	}

	ui.WriteSuccess(cmd.OutOrStdout(), "tables dropped", noColor)
	return nil
}
