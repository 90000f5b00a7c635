package commands

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	ormquery "github.com/tornermarton/nest-api/internal/orm/query"
	"github.com/tornermarton/nest-api/internal/orm/schema"
	"github.com/tornermarton/nest-api/internal/resource"
	webquery "github.com/tornermarton/nest-api/internal/web/query"
)

var (
	getInclude []string
	getSort    []string
	getFilter  map[string]string
	getLimit   int
	getOffset  int
	getCount   bool
	getLinkage bool
)

// NewGetCommand creates the get command
func NewGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <type> [id] [relationship]",
		Short: "Read resources as JSON:API documents",
		Long: `Read resources and print them as JSON:API documents.

  nestapi get books                      list books
  nestapi get books 42 --include author  one book with its author included
  nestapi get books 42 tags              the tags of a book
  nestapi get books 42 tags --linkage    only the identifiers of those tags`,
		Example: `  nestapi get books --filter available=true --sort -releasedAt --limit 10`,
		Args:    cobra.RangeArgs(1, 3),
		RunE:    runGet,
	}

	cmd.Flags().StringSliceVarP(&getInclude, "include", "i", nil, "Relationships to include")
	cmd.Flags().StringSliceVarP(&getSort, "sort", "s", nil, "Sort fields, prefix with - for descending")
	cmd.Flags().StringToStringVarP(&getFilter, "filter", "f", nil, "Filters as field=value; value may be a comma separated list or null")
	cmd.Flags().IntVar(&getLimit, "limit", 0, "Page size (default from config)")
	cmd.Flags().IntVar(&getOffset, "offset", 0, "Page offset")
	cmd.Flags().BoolVar(&getCount, "count", true, "Count all matches and add total and last links")
	cmd.Flags().BoolVar(&getLinkage, "linkage", false, "Print relationship linkage instead of related resources")

	return cmd
}

// queryValues renders the flags as JSON:API query parameters
func queryValues() url.Values {
	values := url.Values{}
	if len(getInclude) > 0 {
		values.Set("include", strings.Join(getInclude, ","))
	}
	if len(getSort) > 0 {
		values.Set("sort", strings.Join(getSort, ","))
	}
	for field, value := range getFilter {
		values.Set("filter["+field+"]", value)
	}
	if getLimit > 0 {
		values.Set("page[limit]", strconv.Itoa(getLimit))
	}
	if getOffset > 0 {
		values.Set("page[offset]", strconv.Itoa(getOffset))
	}
	return values
}

func runGet(cmd *cobra.Command, args []string) error {
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
	values := queryValues()
	self := env.selfURL(values, args...)

	switch len(args) {
	case 1:
		q, err := webquery.Parse(values, m.Definition(), env.pageConfig())
		if err != nil {
			return printError(out, self, err)
		}
		res, err := m.Find(ctx, q, resource.FindOptions{Count: getCount})
		if err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Resources(http.StatusOK, self, q, res))

	case 2:
		res, err := m.Read(ctx, args[1], resource.ReadOptions{Include: getInclude})
		if err != nil {
			return printError(out, self, err)
		}
		if res.Data == nil {
			return printNotFound(out, self, args[0], args[1])
		}
		return printDocument(out, env.builder.Resource(http.StatusOK, self, res))

	default:
		return getRelationship(cmd, env, m, args[1], args[2], values, self)
	}
}

func getRelationship(cmd *cobra.Command, env *environment, m *resource.Manager, id, key string, values url.Values, self string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	rel, ok := m.Definition().Relationship(key)
	if !ok {
		return printError(out, self, &schema.UnknownRelationshipError{Relationship: key, Type: m.Definition().Type})
	}

	if rel.Kind == schema.ToOne {
		if getLinkage {
			res, err := m.ReadRelationship(ctx, key, id)
			if err != nil {
				return printError(out, self, err)
			}
			return printDocument(out, env.builder.Relationship(http.StatusOK, self, ormquery.Query{}, res))
		}
		res, err := m.ReadRelated(ctx, key, id)
		if err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Resource(http.StatusOK, self, res))
	}

	var (
		q   ormquery.Query
		err error
	)
	if getLinkage {
		q, err = webquery.ParseLinkage(values, env.pageConfig())
	} else {
		q, err = webquery.Parse(values, rel.RelatedDefinition(), env.pageConfig())
	}
	if err != nil {
		return printError(out, self, err)
	}
	opts := resource.FindOptions{Count: getCount}

	if getLinkage {
		res, err := m.FindRelationship(ctx, key, id, q, opts)
		if err != nil {
			return printError(out, self, err)
		}
		return printDocument(out, env.builder.Relationship(http.StatusOK, self, q, res))
	}
	res, err := m.FindRelated(ctx, key, id, q, opts)
	if err != nil {
		return printError(out, self, err)
	}
	return printDocument(out, env.builder.Resources(http.StatusOK, self, q, res))
}
