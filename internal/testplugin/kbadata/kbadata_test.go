package kbadata

import (
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kba-plugin/internal/dal"
)

type otherEntity struct {
	dal.BaseEntity
}

func (o *otherEntity) Hydrate(values map[string]any) error {
	return o.HydrateBase(values)
}

func newEntity(name string, active bool) *Entity {
	return &Entity{
		BaseEntity: dal.BaseEntity{ID: uuid.New()},
		Name:       &name,
		Active:     &active,
	}
}

func TestDefinitionCompiles(t *testing.T) {
	def, err := dal.Compile(Definition{})
	require.NoError(t, err)

	assert.Equal(t, "k_b_a_data", def.EntityName())
	assert.Equal(t, "k-b-a-data", def.URLName())
	assert.Equal(t,
		[]string{"id", "name", "description", "active", "created_at", "updated_at"},
		def.Fields().StorageNames())

	pk := def.PrimaryKey()
	assert.Equal(t, "id", pk.PropertyName)
	assert.True(t, pk.Is(dal.Required))

	createdAt, ok := def.Fields().Get(dal.CreatedAtProperty)
	require.True(t, ok)
	assert.True(t, createdAt.Is(dal.Required))

	for _, prop := range []string{"name", "description", "active", dal.UpdatedAtProperty} {
		f, ok := def.Fields().Get(prop)
		require.True(t, ok, prop)
		assert.False(t, f.Is(dal.Required), prop)
	}
}

func TestDefinitionFactories(t *testing.T) {
	assert.IsType(t, &Entity{}, Definition{}.NewEntity())
	assert.IsType(t, &Collection{}, Definition{}.NewCollection())
}

func TestEntityHydrate(t *testing.T) {
	id := uuid.New()
	created := time.Date(2024, 7, 27, 12, 0, 0, 0, time.UTC)

	e := &Entity{}
	require.NoError(t, e.Hydrate(map[string]any{
		"id":          id,
		"name":        "kba",
		"description": nil,
		"active":      true,
		"createdAt":   created,
		"updatedAt":   nil,
	}))

	assert.Equal(t, id.String(), e.UniqueIdentifier())
	assert.Equal(t, "kba", *e.Name)
	assert.Nil(t, e.Description)
	assert.True(t, e.IsActive())
	assert.Equal(t, created, e.CreatedAt)
	assert.Nil(t, e.UpdatedAt)
}

func TestEntityHydrateRequiresID(t *testing.T) {
	assert.Error(t, (&Entity{}).Hydrate(map[string]any{"name": "kba"}))
}

func TestCollectionRejectsOtherTypes(t *testing.T) {
	c := NewCollection()

	err := c.Add(&otherEntity{BaseEntity: dal.BaseEntity{ID: uuid.New()}})
	require.ErrorIs(t, err, dal.ErrUnexpectedType)

	var typeErr *dal.UnexpectedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, reflect.TypeOf(&Entity{}), typeErr.Expected)
	assert.Equal(t, reflect.TypeOf(&otherEntity{}), typeErr.Actual)

	assert.ErrorIs(t, c.Set("key", &otherEntity{}), dal.ErrUnexpectedType)
	assert.Zero(t, c.Len())
}

func TestCollectionTypedAccessors(t *testing.T) {
	on, off := newEntity("on", true), newEntity("off", false)
	unset := &Entity{BaseEntity: dal.BaseEntity{ID: uuid.New()}}
	c := NewCollection(on, nil, off, unset)

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []*Entity{on, off, unset}, c.Entities())

	got, ok := c.ByID(off.ID)
	require.True(t, ok)
	assert.Same(t, off, got)

	_, ok = c.ByID(uuid.New())
	assert.False(t, ok)

	active := c.Active()
	assert.Equal(t, []*Entity{on}, active.Entities())
	assert.Equal(t, 3, c.Len())
}

func TestFromCollection(t *testing.T) {
	c, err := FromCollection(Definition{}.NewCollection())
	require.NoError(t, err)
	assert.Zero(t, c.Len())

	_, err = FromCollection(dal.NewEntityCollection(reflect.TypeOf(&otherEntity{})))
	assert.ErrorIs(t, err, dal.ErrUnexpectedType)
}
