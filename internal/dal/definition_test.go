package dal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileAppendsDefaultFields(t *testing.T) {
	def, err := Compile(newWidgetDefinition())
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "label", "enabled", "created_at", "updated_at"}, def.Fields().StorageNames())
	assert.Equal(t, "id", def.PrimaryKey().PropertyName)

	createdAt, ok := def.Fields().Get(CreatedAtProperty)
	require.True(t, ok)
	assert.True(t, createdAt.Is(Required))
	assert.Equal(t, KindDateTime, createdAt.Kind)

	updatedAt, ok := def.Fields().Get(UpdatedAtProperty)
	require.True(t, ok)
	assert.False(t, updatedAt.Is(Required))
}

func TestCompileRejectsMalformedDefinitions(t *testing.T) {
	for _, tc := range []struct {
		name   string
		entity string
		fields *FieldCollection
	}{
		{"empty name", "", NewFieldCollection(NewIDField("id", "id").AddFlags(PrimaryKey))},
		{"no fields", "x", NewFieldCollection()},
		{"no primary key", "x", NewFieldCollection(NewIDField("id", "id"))},
		{"two primary keys", "x", NewFieldCollection(
			NewIDField("id", "id").AddFlags(PrimaryKey),
			NewIDField("other_id", "otherId").AddFlags(PrimaryKey),
		)},
		{"string primary key", "x", NewFieldCollection(NewStringField("code", "code").AddFlags(PrimaryKey))},
		{"duplicate property", "x", NewFieldCollection(
			NewIDField("id", "id").AddFlags(PrimaryKey),
			NewStringField("a", "name"),
			NewStringField("b", "name"),
		)},
		{"redeclared default", "x", NewFieldCollection(
			NewIDField("id", "id").AddFlags(PrimaryKey),
			NewDateTimeField("created_at", "createdAt"),
		)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Compile(widgetDefinition{name: tc.entity, fields: tc.fields})
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestDefinitionRegistry(t *testing.T) {
	r := NewDefinitionRegistry()

	registered, err := r.Register(widgetDefinition{name: "stock_widget", fields: newWidgetDefinition().fields})
	require.NoError(t, err)
	assert.Equal(t, "stock-widget", registered.URLName())

	_, err = r.Register(widgetDefinition{name: "stock_widget", fields: newWidgetDefinition().fields})
	assert.ErrorIs(t, err, ErrDuplicateDefinition)

	got, err := r.GetByURLName("stock-widget")
	require.NoError(t, err)
	assert.Same(t, registered, got)

	_, err = r.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownEntity)

	_, err = r.Register(widgetDefinition{name: "a_first", fields: newWidgetDefinition().fields})
	require.NoError(t, err)
	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "a_first", defs[0].EntityName())
}

func TestFieldAddFlagsIsIdempotent(t *testing.T) {
	f := NewIDField("id", "id").AddFlags(Required, Required, PrimaryKey)
	assert.Equal(t, []Flag{Required, PrimaryKey}, f.Flags)
	assert.Equal(t, "id(id)", f.String())
}
