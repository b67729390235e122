// internal/dal/collection.go
package dal

import (
	"errors"
	"fmt"
	"iter"
	"reflect"
)

// ErrUnexpectedType is returned when an element of the wrong type is added
// to a collection.
var ErrUnexpectedType = errors.New("unexpected element type")

// UnexpectedTypeError names the expected and the offending type.
type UnexpectedTypeError struct {
	Expected reflect.Type
	Actual   reflect.Type
}

func (e *UnexpectedTypeError) Error() string {
	actual := "<nil>"
	if e.Actual != nil {
		actual = e.Actual.String()
	}
	return fmt.Sprintf("%s: expected %s, got %s", ErrUnexpectedType, e.Expected, actual)
}

func (e *UnexpectedTypeError) Unwrap() error {
	return ErrUnexpectedType
}

// Collection is the container a definition hands out for search results.
type Collection interface {
	Add(e Entity) error
	Set(key string, e Entity) error
	Get(key string) (Entity, bool)
	First() (Entity, bool)
	Last() (Entity, bool)
	Len() int
	Keys() []string
	Elements() []Entity
	All() iter.Seq2[string, Entity]
}

// EntityCollection is an insertion-ordered container keyed by the entity's
// unique identifier. Every element must have the expected concrete type.
type EntityCollection struct {
	expected reflect.Type
	keys     []string
	elements map[string]Entity
}

var _ Collection = (*EntityCollection)(nil)

// NewEntityCollection creates an empty collection accepting only elements of
// the given type, e.g. reflect.TypeOf((*Foo)(nil)).
func NewEntityCollection(expected reflect.Type) *EntityCollection {
	return &EntityCollection{
		expected: expected,
		elements: make(map[string]Entity),
	}
}

// ExpectedType returns the element type the collection enforces.
func (c *EntityCollection) ExpectedType() reflect.Type {
	return c.expected
}

func (c *EntityCollection) validate(e Entity) error {
	if e == nil || reflect.ValueOf(e).Kind() == reflect.Ptr && reflect.ValueOf(e).IsNil() {
		return &UnexpectedTypeError{Expected: c.expected, Actual: reflect.TypeOf(e)}
	}
	if actual := reflect.TypeOf(e); actual != c.expected {
		return &UnexpectedTypeError{Expected: c.expected, Actual: actual}
	}
	return nil
}

// Add stores e under its unique identifier.
func (c *EntityCollection) Add(e Entity) error {
	if err := c.validate(e); err != nil {
		return err
	}
	c.put(e.UniqueIdentifier(), e)
	return nil
}

// Set stores e under key, replacing any element already there.
func (c *EntityCollection) Set(key string, e Entity) error {
	if err := c.validate(e); err != nil {
		return err
	}
	c.put(key, e)
	return nil
}

func (c *EntityCollection) put(key string, e Entity) {
	if _, exists := c.elements[key]; !exists {
		c.keys = append(c.keys, key)
	}
	c.elements[key] = e
}

func (c *EntityCollection) Get(key string) (Entity, bool) {
	e, ok := c.elements[key]
	return e, ok
}

func (c *EntityCollection) Has(key string) bool {
	_, ok := c.elements[key]
	return ok
}

func (c *EntityCollection) First() (Entity, bool) {
	if len(c.keys) == 0 {
		return nil, false
	}
	return c.elements[c.keys[0]], true
}

func (c *EntityCollection) Last() (Entity, bool) {
	if len(c.keys) == 0 {
		return nil, false
	}
	return c.elements[c.keys[len(c.keys)-1]], true
}

// Remove deletes key and reports whether it was present.
func (c *EntityCollection) Remove(key string) bool {
	if _, ok := c.elements[key]; !ok {
		return false
	}
	delete(c.elements, key)
	for i, k := range c.keys {
		if k == key {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			break
		}
	}
	return true
}

func (c *EntityCollection) Len() int {
	return len(c.keys)
}

func (c *EntityCollection) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

func (c *EntityCollection) Elements() []Entity {
	out := make([]Entity, 0, len(c.keys))
	for _, k := range c.keys {
		out = append(out, c.elements[k])
	}
	return out
}

// All iterates the elements in insertion order.
func (c *EntityCollection) All() iter.Seq2[string, Entity] {
	return func(yield func(string, Entity) bool) {
		for _, k := range c.keys {
			if !yield(k, c.elements[k]) {
				return
			}
		}
	}
}

// Filter returns a new collection of the same type holding the elements
// for which keep returns true.
func (c *EntityCollection) Filter(keep func(Entity) bool) *EntityCollection {
	out := NewEntityCollection(c.expected)
	for _, k := range c.keys {
		if e := c.elements[k]; keep(e) {
			out.put(k, e)
		}
	}
	return out
}
