package commands

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	ormquery "github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/orm/validation"
	"github.com/tornermarton/nest-api/internal/resource"
)

var (
	inputFile        string
	actingUser       string
	relationshipMode string
)

const (
	modeAdd     = "add"
	modeReplace = "replace"
	modeRemove  = "remove"
)

// NewCreateCommand creates the create command
func NewCreateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Create a resource from a JSON:API document",
		Example: `  nestapi create books -f book.json
  echo '{"data":{"type":"books","attributes":{"title":"Dune"}}}' | nestapi create books`,
		Args: cobra.ExactArgs(1),
		RunE: runCreate,
	}
	addWriteFlags(cmd)
	return cmd
}

// NewUpdateCommand creates the update command
func NewUpdateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <type> <id>",
		Short: "Update a resource from a JSON:API document",
		Long: `Update a resource. Only the attributes present in the document change;
every relationship present in the document is replaced as a whole.`,
		Args: cobra.ExactArgs(2),
		RunE: runUpdate,
	}
	addWriteFlags(cmd)
	return cmd
}

// NewDeleteCommand creates the delete command
func NewDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id>",
		Short: "Delete a resource and every link to it",
		Args:  cobra.ExactArgs(2),
		RunE:  runDelete,
	}
}

// NewRelationshipCommand creates the relationship command
func NewRelationshipCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relationship <type> <id> <key>",
		Short: "Change the linkage of a relationship",
		Long: `Change the linkage of a relationship from a JSON:API relationship document.

Modes:
  add      link the given resources (POST semantics)
  replace  replace the whole relationship (PATCH semantics)
  remove   unlink the given resources, or every resource without -f (DELETE semantics)`,
		Example: `  echo '{"data":[{"type":"tags","id":"t1"}]}' | nestapi relationship books 42 tags --mode add
  nestapi relationship books 42 tags --mode remove`,
		Args: cobra.ExactArgs(3),
		RunE: runRelationship,
	}
	addWriteFlags(cmd)
	cmd.Flags().StringVarP(&relationshipMode, "mode", "m", modeReplace, "One of add, replace or remove")
	return cmd
}

func addWriteFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&inputFile, "file", "f", "-", "Document to read, - for stdin")
	cmd.Flags().StringVarP(&actingUser, "user", "u", "", "User recorded as creator or updater")
}

// openInput returns the reader of the -f flag
func openInput(cmd *cobra.Command) (io.ReadCloser, error) {
	if inputFile == "" || inputFile == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(inputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", inputFile, err)
	}
	return f, nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	env, err := loadEnvironment(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.manager(args[0])
	if err != nil {
		return err
	}
	self := env.selfURL(nil, args[0])

	in, err := openInput(cmd)
	if err != nil {
		return err
	}
	defer in.Close()

	doc, err := env.parser().ParseResource(in, m.Definition())
	if err != nil {
		return printError(out, self, err)
	}
	if doc.ID != "" {
		errs := validation.NewValidationErrors()
		errs.AddPointer("id", "/data/id", "client generated ids are not supported")
		return printError(out, self, errs)
	}

	res, err := m.Create(ctx, resource.CreateDto{Values: doc.Values, CreatedBy: actingUser})
	if err != nil {
		return printError(out, self, err)
	}
	location := env.builder.ResourceURL(args[0], res.Data.ID)
	return printDocument(out, env.builder.Resource(http.StatusCreated, location, res))
}

func runUpdate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	env, err := loadEnvironment(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.manager(args[0])
	if err != nil {
		return err
	}
	self := env.selfURL(nil, args...)

	in, err := openInput(cmd)
	if err != nil {
		return err
	}
	defer in.Close()

	doc, err := env.parser().ParseResource(in, m.Definition())
	if err != nil {
		return printError(out, self, err)
	}
	if doc.ID != "" && doc.ID != args[1] {
		errs := validation.NewValidationErrors()
		errs.AddPointer("id", "/data/id", fmt.Sprintf("does not match %s", args[1]))
		return printError(out, self, errs)
	}

	res, err := m.Update(ctx, args[1], resource.UpdateDto{Values: doc.Values, UpdatedBy: actingUser})
	if err != nil {
		return printError(out, self, err)
	}
	if res.Data == nil {
		return printNotFound(out, self, args[0], args[1])
	}
	return printDocument(out, env.builder.Resource(http.StatusOK, self, res))
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	env, err := loadEnvironment(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.manager(args[0])
	if err != nil {
		return err
	}
	self := env.selfURL(nil, args...)

	if err := m.Delete(ctx, args[1]); err != nil {
		return printError(out, self, err)
	}
	return printDocument(out, env.builder.Empty(http.StatusNoContent, self))
}

func runRelationship(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	typ, id, key := args[0], args[1], args[2]

	mode := strings.ToLower(relationshipMode)
	if mode != modeAdd && mode != modeReplace && mode != modeRemove {
		return fmt.Errorf("unknown mode %q, expected add, replace or remove", relationshipMode)
	}

	env, err := loadEnvironment(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer env.Close()

	m, err := env.manager(typ)
	if err != nil {
		return err
	}
	self := env.selfURL(nil, typ, id, "relationships", key)

	rel, ok := m.Definition().Relationship(key)
	if !ok {
		return printError(out, self, &schema.UnknownRelationshipError{Relationship: key, Type: typ})
	}

	// remove without a document unlinks everything
	var ids []string
	if mode != modeRemove || cmd.Flags().Changed("file") {
		in, err := openInput(cmd)
		if err != nil {
			return err
		}
		defer in.Close()

		ids, err = env.parser().ParseRelationship(in, rel)
		if err != nil {
			return printError(out, self, err)
		}
	}

	switch mode {
	case modeAdd:
		res, err := m.CreateRelationship(ctx, key, id, ids, actingUser)
		if err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Relationship(http.StatusOK, self, ormquery.Query{}, res))
	case modeReplace:
		res, err := m.UpdateRelationship(ctx, key, id, ids, actingUser)
		if err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Relationship(http.StatusOK, self, ormquery.Query{}, res))
	default:
		if err := m.DeleteRelationship(ctx, key, id, ids); err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Empty(http.StatusNoContent, self))
	}
}
