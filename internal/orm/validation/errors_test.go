package validation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationErrors(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.HasErrors())
	assert.NoError(t, ve.ErrorOrNil())

	ve.AddPointer("title", AttributePointer("title"), "is required")
	ve.AddParameter("page[limit]", "must be a positive integer")

	require.Error(t, ve.ErrorOrNil())
	assert.Equal(t, 2, ve.Count())
	assert.Equal(t, "validation failed: title: is required; page[limit]: must be a positive integer", ve.Error())
	assert.Equal(t, "/data/attributes/title", ve.Errors[0].Source.Pointer)
	assert.Equal(t, "page[limit]", ve.Errors[1].Source.Parameter)
	assert.False(t, ve.OnlyParameters())
}

func TestValidationErrors_OnlyParameters(t *testing.T) {
	ve := NewValidationErrors()
	assert.False(t, ve.OnlyParameters())

	ve.AddParameter("sort", "unknown field")
	assert.True(t, ve.OnlyParameters())

	ve.AddPointer("title", AttributePointer("title"), "is required")
	assert.False(t, ve.OnlyParameters())
}

func TestValidationErrors_Is(t *testing.T) {
	ve := NewValidationErrors()
	ve.AddParameter("include", "unknown relationship")

	wrapped := fmt.Errorf("find authors: %w", ve)
	assert.True(t, errors.Is(wrapped, ErrValidationFailed))

	var target *ValidationErrors
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, 1, target.Count())
}

func TestEscapeJSONPointer(t *testing.T) {
	assert.Equal(t, "a~1b~0c", EscapeJSONPointer("a/b~c"))
	assert.Equal(t, "/data/relationships/co~1authors", RelationshipPointer("co/authors"))
}
