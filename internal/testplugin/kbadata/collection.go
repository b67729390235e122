package kbadata

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"kba-plugin/internal/dal"
)

var entityType = reflect.TypeOf((*Entity)(nil))

// Collection holds *Entity values only.
type Collection struct {
	*dal.EntityCollection
}

// NewCollection builds a collection from entities. nil entries are skipped;
// every other *Entity passes the type check of Add.
func NewCollection(entities ...*Entity) *Collection {
	c := &Collection{EntityCollection: dal.NewEntityCollection(entityType)}
	for _, e := range entities {
		if e == nil {
			continue
		}
		_ = c.Add(e)
	}
	return c
}

// FromCollection narrows a search result to a typed collection.
func FromCollection(c dal.Collection) (*Collection, error) {
	typed, ok := c.(*Collection)
	if !ok {
		return nil, fmt.Errorf("%w: expected %s, got %T", dal.ErrUnexpectedType, reflect.TypeOf(typed), c)
	}
	return typed, nil
}

// Entities returns the elements in insertion order.
func (c *Collection) Entities() []*Entity {
	out := make([]*Entity, 0, c.Len())
	for _, e := range c.All() {
		out = append(out, e.(*Entity))
	}
	return out
}

func (c *Collection) ByID(id uuid.UUID) (*Entity, bool) {
	e, ok := c.Get(id.String())
	if !ok {
		return nil, false
	}
	return e.(*Entity), true
}

// Active returns the entities whose active flag is set.
func (c *Collection) Active() *Collection {
	return &Collection{EntityCollection: c.Filter(func(e dal.Entity) bool {
		return e.(*Entity).IsActive()
	})}
}
