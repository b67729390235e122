package kbadata

import "kba-plugin/internal/dal"

// Entity is one k_b_a_data record.
type Entity struct {
	dal.BaseEntity
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Active      *bool   `json:"active"`
}

func (e *Entity) Hydrate(values map[string]any) error {
	if err := e.HydrateBase(values); err != nil {
		return err
	}
	e.Name = dal.StringValue(values, "name")
	e.Description = dal.StringValue(values, "description")
	e.Active = dal.BoolValue(values, "active")
	return nil
}

// IsActive treats an unset flag as inactive.
func (e *Entity) IsActive() bool {
	return e.Active != nil && *e.Active
}
