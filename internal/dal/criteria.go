// internal/dal/criteria.go
package dal

import "github.com/google/uuid"

type SortDirection string

const (
	Ascending  SortDirection = "ASC"
	Descending SortDirection = "DESC"
)

// Sorting orders search results by one property.
type Sorting struct {
	Property  string
	Direction SortDirection
}

// Criteria narrows a repository search. Equals maps property names to the
// value they must hold; a nil value matches NULL.
type Criteria struct {
	IDs    []uuid.UUID
	Equals map[string]any
	Sort   []Sorting
	Limit  int
	Offset int
}

// NewCriteria returns criteria matching the given ids, or everything when
// none are given.
func NewCriteria(ids ...uuid.UUID) *Criteria {
	return &Criteria{IDs: ids, Equals: make(map[string]any)}
}

// AddEquals adds an equality filter and returns the criteria for chaining.
func (c *Criteria) AddEquals(property string, value any) *Criteria {
	if c.Equals == nil {
		c.Equals = make(map[string]any)
	}
	c.Equals[property] = value
	return c
}

// AddSorting appends an ordering and returns the criteria for chaining.
func (c *Criteria) AddSorting(property string, direction SortDirection) *Criteria {
	c.Sort = append(c.Sort, Sorting{Property: property, Direction: direction})
	return c
}
