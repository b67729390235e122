// internal/dal/entity.go
package dal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Entity is a typed record hydrated by a Repository.
//
// Hydrate receives the row keyed by property name. Values are uuid.UUID,
// string, bool or time.Time, and nil for SQL NULL.
type Entity interface {
	UniqueIdentifier() string
	Hydrate(values map[string]any) error
}

// BaseEntity carries the identifier and the default timestamp fields every
// definition gets.
type BaseEntity struct {
	ID        uuid.UUID  `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

func (e *BaseEntity) UniqueIdentifier() string {
	return e.ID.String()
}

// HydrateBase fills id, createdAt and updatedAt.
func (e *BaseEntity) HydrateBase(values map[string]any) error {
	id, ok := values["id"].(uuid.UUID)
	if !ok {
		return fmt.Errorf("hydrate: id is %T, want uuid.UUID", values["id"])
	}
	e.ID = id

	if createdAt, ok := values[CreatedAtProperty].(time.Time); ok {
		e.CreatedAt = createdAt
	}
	e.UpdatedAt = TimeValue(values, UpdatedAtProperty)
	return nil
}

// StringValue returns a pointer to values[key] or nil when unset.
func StringValue(values map[string]any, key string) *string {
	if v, ok := values[key].(string); ok {
		return &v
	}
	return nil
}

// BoolValue returns a pointer to values[key] or nil when unset.
func BoolValue(values map[string]any, key string) *bool {
	if v, ok := values[key].(bool); ok {
		return &v
	}
	return nil
}

// TimeValue returns a pointer to values[key] or nil when unset.
func TimeValue(values map[string]any, key string) *time.Time {
	if v, ok := values[key].(time.Time); ok {
		return &v
	}
	return nil
}
