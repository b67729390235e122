package dal

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWidgetCollection() *EntityCollection {
	return NewEntityCollection(reflect.TypeOf((*widget)(nil)))
}

func TestEntityCollectionAddAndLookup(t *testing.T) {
	c := newWidgetCollection()
	a, b := newWidget("a"), newWidget("b")

	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))

	assert.Equal(t, 2, c.Len())
	got, ok := c.Get(a.UniqueIdentifier())
	require.True(t, ok)
	assert.Same(t, a, got)

	first, ok := c.First()
	require.True(t, ok)
	assert.Same(t, a, first)
	last, ok := c.Last()
	require.True(t, ok)
	assert.Same(t, b, last)
	assert.Equal(t, []string{a.UniqueIdentifier(), b.UniqueIdentifier()}, c.Keys())
}

func TestEntityCollectionRejectsOtherTypes(t *testing.T) {
	c := newWidgetCollection()

	err := c.Add(&gadget{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnexpectedType))

	var typeErr *UnexpectedTypeError
	require.ErrorAs(t, err, &typeErr)
	assert.Equal(t, reflect.TypeOf((*widget)(nil)), typeErr.Expected)
	assert.Equal(t, reflect.TypeOf((*gadget)(nil)), typeErr.Actual)

	assert.ErrorIs(t, c.Set("key", &gadget{}), ErrUnexpectedType)
	assert.ErrorIs(t, c.Add(nil), ErrUnexpectedType)
	assert.ErrorIs(t, c.Add((*widget)(nil)), ErrUnexpectedType)
	assert.Equal(t, 0, c.Len())
}

func TestEntityCollectionSetReplacesInPlace(t *testing.T) {
	c := newWidgetCollection()
	a, b, replacement := newWidget("a"), newWidget("b"), newWidget("a2")
	require.NoError(t, c.Add(a))
	require.NoError(t, c.Add(b))

	require.NoError(t, c.Set(a.UniqueIdentifier(), replacement))

	assert.Equal(t, 2, c.Len())
	first, _ := c.First()
	assert.Same(t, replacement, first)
}

func TestEntityCollectionEmpty(t *testing.T) {
	c := newWidgetCollection()

	_, ok := c.First()
	assert.False(t, ok)
	_, ok = c.Last()
	assert.False(t, ok)
	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Empty(t, c.Elements())
}

func TestEntityCollectionIterationOrderAndRemove(t *testing.T) {
	c := newWidgetCollection()
	ws := []*widget{newWidget("a"), newWidget("b"), newWidget("c")}
	for _, w := range ws {
		require.NoError(t, c.Add(w))
	}

	var labels []string
	for _, e := range c.All() {
		labels = append(labels, *e.(*widget).Label)
	}
	assert.Equal(t, []string{"a", "b", "c"}, labels)

	assert.True(t, c.Remove(ws[1].UniqueIdentifier()))
	assert.False(t, c.Remove(ws[1].UniqueIdentifier()))
	assert.Equal(t, []Entity{ws[0], ws[2]}, c.Elements())
}

func TestEntityCollectionFilterKeepsType(t *testing.T) {
	c := newWidgetCollection()
	require.NoError(t, c.Add(newWidget("keep")))
	require.NoError(t, c.Add(newWidget("drop")))

	filtered := c.Filter(func(e Entity) bool {
		return *e.(*widget).Label == "keep"
	})

	assert.Equal(t, 1, filtered.Len())
	assert.Equal(t, c.ExpectedType(), filtered.ExpectedType())
	assert.ErrorIs(t, filtered.Add(&gadget{}), ErrUnexpectedType)
}
