package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	def, err := Define("articles").
		ID("uuid").
		Attribute("title", TypeString).
		NullableAttribute("publishedAt", TypeTimestamp).
		ToMany("tags", func() *Definition { return nil }).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "articles", def.Type)
	assert.Equal(t, "uuid", def.IDField)
	assert.Equal(t, []string{"tags"}, def.RelationshipNames())

	attr, ok := def.Attribute("publishedAt")
	require.True(t, ok)
	assert.True(t, attr.Nullable)
	assert.Equal(t, TypeTimestamp, attr.Type)

	_, ok = def.Attribute("missing")
	assert.False(t, ok)
}

func TestBuilder_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		want    error
	}{
		{
			name:    "empty identifier",
			builder: Define("things").ID(""),
			want:    ErrMissingIdentifier,
		},
		{
			name:    "duplicate attribute",
			builder: Define("things").Attribute("name", TypeString).Attribute("name", TypeInt),
			want:    ErrDuplicateField,
		},
		{
			name: "attribute and relationship share a name",
			builder: Define("things").
				Attribute("owner", TypeString).
				ToOne("owner", func() *Definition { return nil }),
			want: ErrDuplicateField,
		},
		{
			name:    "reserved name",
			builder: Define("things").Attribute("createdAt", TypeTimestamp),
			want:    ErrReservedField,
		},
		{
			name:    "nil related reference",
			builder: Define("things").ToOne("parent", nil),
			want:    ErrUnresolvedType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuilder_CollectsAllErrors(t *testing.T) {
	_, err := Define("things").
		Attribute("id", TypeString).
		Attribute("a", TypeString).
		Attribute("a", TypeString).
		Build()

	assert.ErrorIs(t, err, ErrReservedField)
	assert.ErrorIs(t, err, ErrDuplicateField)
}

func TestBuilder_MustBuildPanics(t *testing.T) {
	assert.Panics(t, func() {
		Define("").MustBuild()
	})
}

func TestBuilder_Inverse(t *testing.T) {
	def := Define("owners").
		ToMany("pets", func() *Definition { return nil }, Inverse("owner")).
		MustBuild()

	rel, ok := def.Relationship("pets")
	require.True(t, ok)
	assert.True(t, rel.HasInverse())
	assert.Equal(t, "owner", rel.Inverse)
}
